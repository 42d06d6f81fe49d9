package normalize

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grantline/proposal-cli/internal/model"
	"github.com/grantline/proposal-cli/internal/resilience"
	"github.com/grantline/proposal-cli/internal/schema"
	"github.com/grantline/proposal-cli/internal/store"
)

// Override records an operator decision on an eligibility item. The override
// wins over extraction until cleared.
func (n *Normalizer) Override(ctx context.Context, projectID, itemID string, fatal bool, note string) error {
	return n.mutateEligibility(ctx, projectID, itemID, func(item *model.EligibilityItem) {
		item.Override = &model.EligibilityOverride{
			Fatal: fatal,
			Note:  note,
			At:    time.Now().UTC(),
		}
	})
}

// ClearOverride removes an operator override, restoring extracted behavior.
func (n *Normalizer) ClearOverride(ctx context.Context, projectID, itemID string) error {
	return n.mutateEligibility(ctx, projectID, itemID, func(item *model.EligibilityItem) {
		item.Override = nil
	})
}

// Eligibility returns the current eligibility list.
func (n *Normalizer) Eligibility(ctx context.Context, projectID string) ([]model.EligibilityItem, error) {
	raw, _, err := n.st.GetDocField(ctx, projectID, model.DocEligibility)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	doc := &schema.Eligibility{SchemaVersion: schema.Version}
	if err := schema.Unmarshal(raw, doc); err != nil {
		return nil, eris.Wrap(err, "normalize: stored eligibility invalid")
	}
	return doc.Items, nil
}

func (n *Normalizer) mutateEligibility(ctx context.Context, projectID, itemID string, fn func(*model.EligibilityItem)) error {
	found := false
	err := resilience.Do(ctx, resilience.StaleWrites(), func(ctx context.Context) error {
		raw, version, err := n.st.GetDocField(ctx, projectID, model.DocEligibility)
		if err != nil {
			return err
		}
		doc := &schema.Eligibility{SchemaVersion: schema.Version}
		if len(raw) > 0 {
			if err := schema.Unmarshal(raw, doc); err != nil {
				return eris.Wrap(err, "normalize: stored eligibility invalid")
			}
		}

		found = false
		for i := range doc.Items {
			if doc.Items[i].ID == itemID {
				fn(&doc.Items[i])
				found = true
				break
			}
		}
		if !found {
			return nil
		}

		out, err := schema.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = n.st.PutDocField(ctx, projectID, model.DocEligibility, out, version)
		return err
	})
	if err != nil {
		return err
	}
	if !found {
		return eris.Wrapf(store.ErrNotFound, "eligibility item %s", itemID)
	}

	zap.L().Info("eligibility item updated",
		zap.String("project_id", projectID),
		zap.String("item_id", itemID),
	)
	return nil
}

package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/grantline/proposal-cli/internal/model"
)

// ErrStaleVersion is returned when a document write carries an expected
// doc_version that no longer matches the stored row. Callers re-read and
// retry; a stale write is never applied.
var ErrStaleVersion = eris.New("store: stale document version")

// ErrNotFound is returned when a project, section, or run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing workflow runs.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	ProjectID string          `json:"project_id,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the proposal pipeline.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, name string, metadata map[string]string) (*model.Project, error)
	GetProject(ctx context.Context, projectID string) (*model.Project, error)

	// Project document fields. Each named field is read and overwritten as a
	// whole JSON value; PutDocField rejects writes whose expected version is
	// stale and returns the new version on success.
	GetDocField(ctx context.Context, projectID string, field model.DocField) (json.RawMessage, int64, error)
	PutDocField(ctx context.Context, projectID string, field model.DocField, value json.RawMessage, expectVersion int64) (int64, error)

	// Upload texts
	PutUpload(ctx context.Context, projectID, uploadID, name, text string) error
	GetUpload(ctx context.Context, projectID, uploadID string) (string, error)

	// Bundle metadata (replaced wholesale after each ingestion/normalization)
	ReplaceBundle(ctx context.Context, projectID string, entries []model.BundleEntry) error
	ListBundle(ctx context.Context, projectID string) ([]model.BundleEntry, error)

	// Sections
	UpsertSection(ctx context.Context, projectID string, sec model.Section) (*model.Section, error)
	GetSection(ctx context.Context, projectID, key string) (*model.Section, error)
	ListSections(ctx context.Context, projectID string) ([]model.Section, error)
	UpdateSectionContent(ctx context.Context, projectID, key, contentMd string, format *model.FormatState) error

	// Workflow runs
	CreateRun(ctx context.Context, projectID, workflowID string, input json.RawMessage) (*model.WorkflowRun, error)
	AppendRunEvent(ctx context.Context, runID string, typ model.RunEventType, payload json.RawMessage) (int, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, result json.RawMessage, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.WorkflowRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.WorkflowRun, error)
	ActiveRun(ctx context.Context, projectID string) (*model.WorkflowRun, error)

	// Append-only fact audit log
	AppendFactEvent(ctx context.Context, projectID string, fact model.Fact) error
	ListFactEvents(ctx context.Context, projectID string) ([]model.Fact, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/grantline/proposal-cli/internal/ingest"
	"github.com/grantline/proposal-cli/internal/ledger"
	"github.com/grantline/proposal-cli/internal/store"
	"github.com/grantline/proposal-cli/internal/workflow"
	"github.com/grantline/proposal-cli/pkg/agents"
	"github.com/grantline/proposal-cli/pkg/contentgen"
	"github.com/grantline/proposal-cli/pkg/kb"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "proposal.db"
		}
		st, err := store.NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initContentGen returns nil when no API key is configured; mining and
// drafting then degrade to their metadata/placeholder paths.
func initContentGen() contentgen.Client {
	if cfg.Anthropic.Key == "" {
		return nil
	}
	opts := []contentgen.Option{
		contentgen.WithRateLimit(cfg.Anthropic.RPS),
	}
	if cfg.Anthropic.Model != "" {
		opts = append(opts, contentgen.WithModel(cfg.Anthropic.Model))
	}
	return contentgen.NewClient(cfg.Anthropic.Key, opts...)
}

// initKB returns nil when the knowledge base is not configured.
func initKB() kb.Client {
	if cfg.KB.Key == "" {
		return nil
	}
	var opts []kb.Option
	if cfg.KB.BaseURL != "" {
		opts = append(opts, kb.WithBaseURL(cfg.KB.BaseURL))
	}
	return kb.NewClient(cfg.KB.Key, opts...)
}

// initAgents returns nil when the orchestrator is not configured; every
// workflow then runs via local fallback.
func initAgents() agents.Client {
	if cfg.Agents.BaseURL == "" {
		return nil
	}
	return agents.NewClient(cfg.Agents.Key, agents.WithBaseURL(cfg.Agents.BaseURL))
}

func initRunner(st store.Store) *workflow.Runner {
	return workflow.New(st, initAgents())
}

func initIngester(st store.Store, led *ledger.Ledger) *ingest.Ingester {
	fetcher := ingest.NewFetcher(
		time.Duration(cfg.Ingest.FetchTimeoutSecs)*time.Second,
		cfg.Ingest.MaxEntryBytes,
	)
	return ingest.New(st, led, initKB(), fetcher)
}

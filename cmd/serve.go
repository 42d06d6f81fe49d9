package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/grantline/proposal-cli/internal/compliance"
	"github.com/grantline/proposal-cli/internal/coverage"
	"github.com/grantline/proposal-cli/internal/draft"
	"github.com/grantline/proposal-cli/internal/export"
	"github.com/grantline/proposal-cli/internal/facts"
	"github.com/grantline/proposal-cli/internal/ingest"
	"github.com/grantline/proposal-cli/internal/ledger"
	"github.com/grantline/proposal-cli/internal/model"
	"github.com/grantline/proposal-cli/internal/normalize"
	"github.com/grantline/proposal-cli/internal/store"
	"github.com/grantline/proposal-cli/internal/workflow"
)

var servePort int

// serveEnv bundles the pipeline services the HTTP API dispatches to.
type serveEnv struct {
	st        store.Store
	ledger    *ledger.Ledger
	ingester  *ingest.Ingester
	norm      *normalize.Normalizer
	miner     *facts.Miner
	scorer    *coverage.Scorer
	drafter   *draft.Drafter
	tightener *compliance.Tightener
	exporter  *export.Exporter
	runner    *workflow.Runner
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pipeline HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		led := ledger.New(st)
		gen := initContentGen()
		env := &serveEnv{
			st:        st,
			ledger:    led,
			ingester:  initIngester(st, led),
			norm:      normalize.New(st, led),
			miner:     facts.New(st, gen, cfg.Facts),
			scorer:    coverage.NewScorer(cfg.Coverage, st),
			drafter:   draft.New(st, gen, initKB(), cfg.Draft),
			tightener: compliance.NewTightener(compliance.NewSimulator(cfg.Compliance), st),
			exporter:  export.New(st, led),
			runner:    initRunner(st),
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: env.routes(),
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			return srv.Shutdown(context.Background())
		})
		return g.Wait()
	},
}

func (env *serveEnv) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/projects", func(r chi.Router) {
		r.Post("/", env.handleCreateProject)
		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", env.handleGetProject)
			r.Post("/ingest", env.handleIngest)
			r.Post("/normalize", env.handleNormalize)
			r.Post("/facts", env.handleFacts)
			r.Post("/coverage", env.handleCoverage)
			r.Post("/draft", env.handleDraft)
			r.Post("/tighten/{sectionKey}", env.handleTighten)
			r.Get("/export", env.handleExport)
			r.Get("/conflicts", env.handleConflicts)
			r.Post("/conflicts/{key}/resolve", env.handleResolveConflict)
			r.Get("/eligibility", env.handleEligibility)
			r.Post("/eligibility/{itemID}/override", env.handleOverride)
		})
	})

	r.Get("/runs", env.handleListRuns)
	r.Get("/runs/{runID}", env.handleGetRun)

	return r
}

func (env *serveEnv) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string            `json:"name"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	project, err := env.st.CreateProject(r.Context(), req.Name, req.Metadata)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (env *serveEnv) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := env.st.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (env *serveEnv) handleIngest(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	var req struct {
		Inputs []ingest.Input `json:"inputs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Inputs) == 0 {
		writeError(w, http.StatusBadRequest, "inputs are required")
		return
	}

	input, _ := json.Marshal(req)
	env.execute(w, r, projectID, "ingest", input, func(ctx context.Context) (json.RawMessage, error) {
		result, err := env.ingester.Ingest(ctx, projectID, req.Inputs)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
}

func (env *serveEnv) handleNormalize(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	env.execute(w, r, projectID, "normalize", nil, func(ctx context.Context) (json.RawMessage, error) {
		doc, err := env.norm.Normalize(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(doc)
	})
}

func (env *serveEnv) handleFacts(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	env.execute(w, r, projectID, "facts", nil, func(ctx context.Context) (json.RawMessage, error) {
		doc, err := env.miner.Mine(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(doc)
	})
}

func (env *serveEnv) handleCoverage(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	useSlots := r.URL.Query().Get("slots") == "true"
	env.execute(w, r, projectID, "coverage", nil, func(ctx context.Context) (json.RawMessage, error) {
		if useSlots {
			doc, err := scoreWithSlots(ctx, env.st, env.scorer, projectID)
			if err != nil {
				return nil, err
			}
			return json.Marshal(doc)
		}
		doc, err := env.scorer.Score(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(doc)
	})
}

func (env *serveEnv) handleDraft(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	var req struct {
		Sections []string `json:"sections"`
	}
	// Body is optional; empty means draft everything.
	_ = json.NewDecoder(r.Body).Decode(&req)

	input, _ := json.Marshal(req)
	env.execute(w, r, projectID, "draft", input, func(ctx context.Context) (json.RawMessage, error) {
		drafts, err := env.drafter.DraftAll(ctx, projectID, req.Sections)
		if err != nil {
			return nil, err
		}
		return json.Marshal(drafts)
	})
}

func (env *serveEnv) handleTighten(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	key := chi.URLParam(r, "sectionKey")
	var overrides model.ComplianceSettings
	_ = json.NewDecoder(r.Body).Decode(&overrides)

	input, _ := json.Marshal(map[string]any{"section": key, "overrides": overrides})
	env.execute(w, r, projectID, "tighten", input, func(ctx context.Context) (json.RawMessage, error) {
		result, err := env.tightener.Tighten(ctx, projectID, key, overrides)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
}

func (env *serveEnv) handleExport(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if r.URL.Query().Get("format") == "html" {
		doc, err := env.exporter.HTML(r.Context(), projectID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(doc))
		return
	}

	doc, err := env.exporter.Markdown(r.Context(), projectID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

func (env *serveEnv) handleConflicts(w http.ResponseWriter, r *http.Request) {
	entries, err := env.ledger.List(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (env *serveEnv) handleResolveConflict(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note string `json:"note"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	err := env.ledger.Resolve(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "key"), req.Note)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (env *serveEnv) handleEligibility(w http.ResponseWriter, r *http.Request) {
	items, err := env.norm.Eligibility(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (env *serveEnv) handleOverride(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	itemID := chi.URLParam(r, "itemID")
	var req struct {
		Fatal bool   `json:"fatal"`
		Note  string `json:"note"`
		Clear bool   `json:"clear"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	if req.Clear {
		err = env.norm.ClearOverride(r.Context(), projectID, itemID)
	} else {
		err = env.norm.Override(r.Context(), projectID, itemID, req.Fatal, req.Note)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (env *serveEnv) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := env.st.ListRuns(r.Context(), store.RunFilter{
		Status:    model.RunStatus(r.URL.Query().Get("status")),
		ProjectID: r.URL.Query().Get("project"),
		Limit:     50,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (env *serveEnv) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := env.st.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// execute dispatches one pipeline action through the workflow runner,
// mapping the one-active-run rejection to 409.
func (env *serveEnv) execute(w http.ResponseWriter, r *http.Request, projectID, workflowID string, input json.RawMessage, action workflow.Action) {
	outcome, err := env.runner.Execute(r.Context(), projectID, workflowID, input, action)
	if err != nil {
		if eris.Is(err, workflow.ErrRunActive) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	zap.L().Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

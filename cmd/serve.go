package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mapyard/marker-ingest/internal/model"
	"github.com/mapyard/marker-ingest/internal/pipeline"
	"github.com/mapyard/marker-ingest/internal/store"
	"github.com/mapyard/marker-ingest/internal/tabular"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP import API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           buildRouter(ctx, env.Store, env.Pipeline, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("serve: listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("serve: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter assembles the API. srvCtx is the server's lifetime context;
// imports accepted with 202 run on it, not on the request context, so they
// survive the response and stop at a record boundary on shutdown.
func buildRouter(srvCtx context.Context, st store.Store, p *pipeline.Pipeline, origins []string) *chi.Mux {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/runs", handleListRuns(st))
		api.Get("/runs/{id}", handleGetRun(st))
		api.Post("/imports", handleImport(srvCtx, st, p, validate))
	})
	return r
}

// requestLogger logs one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("serve: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func handleListRuns(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		runs, err := st.ListRuns(r.Context(), store.RunFilter{
			AccountID: q.Get("account"),
			MapID:     q.Get("map"),
			Status:    model.RunStatus(q.Get("status")),
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			zap.L().Error("serve: list runs failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "listing runs failed")
			return
		}
		if runs == nil {
			runs = []model.ImportRun{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func handleGetRun(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		run, err := st.GetRun(r.Context(), id)
		if err != nil {
			if store.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "run not found")
				return
			}
			zap.L().Error("serve: get run failed", zap.String("run_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "loading run failed")
			return
		}

		events, err := st.ListAuditEvents(r.Context(), id)
		if err != nil {
			zap.L().Warn("serve: failed to load audit events", zap.String("run_id", id), zap.Error(err))
		}
		writeJSON(w, http.StatusOK, runDetail{Run: run, Events: events})
	}
}

// importRequest is the POST /api/imports body.
type importRequest struct {
	AccountID string              `json:"account_id" validate:"required"`
	MapID     string              `json:"map_id" validate:"required"`
	SourceURL string              `json:"source_url" validate:"required,url"`
	Mapping   model.ColumnMapping `json:"mapping"`
	Defaults  importDefaults      `json:"defaults"`
	Source    importSource        `json:"source"`
}

type importDefaults struct {
	Type      string   `json:"type" validate:"omitempty,oneof=other food lodging shop office landmark transit"`
	Tags      []string `json:"tags"`
	GroupHint string   `json:"group_hint"`
}

type importSource struct {
	Delimiter string `json:"delimiter" validate:"omitempty,len=1"`
	Sheet     string `json:"sheet"`
	NoHeader  bool   `json:"no_header"`
	Charset   string `json:"charset"`
}

func (s importSource) options() tabular.Options {
	opts := tabular.Options{
		Sheet:    s.Sheet,
		NoHeader: s.NoHeader,
		Charset:  s.Charset,
	}
	if s.Delimiter != "" {
		opts.Delimiter = []rune(s.Delimiter)[0]
	}
	return opts
}

// handleImport accepts an import, creates the run row so the caller can poll
// it, and hands the work to a background goroutine.
func handleImport(srvCtx context.Context, st store.Store, p *pipeline.Pipeline, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req importRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		run, err := st.CreateRun(r.Context(), req.AccountID, req.MapID, 0)
		if err != nil {
			zap.L().Error("serve: create run failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "creating run failed")
			return
		}

		go runImport(srvCtx, st, p, run.ID, req)

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"run_id": run.ID,
		})
	}
}

// runImport executes an accepted import behind the 202 response.
func runImport(ctx context.Context, st store.Store, p *pipeline.Pipeline, runID string, req importRequest) {
	log := zap.L().With(
		zap.String("run_id", runID),
		zap.String("source", req.SourceURL),
	)

	table, err := tabular.Load(ctx, req.SourceURL, req.Source.options())
	if err != nil {
		log.Error("serve: source load failed", zap.Error(err))
		result := &model.RunResult{Errors: []string{err.Error()}}
		if stErr := st.CompleteRun(context.WithoutCancel(ctx), runID, model.RunStatusFailed, result); stErr != nil {
			log.Warn("serve: failed to record result", zap.Error(stErr))
		}
		return
	}

	result, err := p.Run(ctx, pipeline.Request{
		AccountID: req.AccountID,
		MapID:     req.MapID,
		RunID:     runID,
		Rows:      table.Rows,
		Mapping:   req.Mapping,
		Defaults: pipeline.MarkerDefaults{
			Type:      req.Defaults.Type,
			Tags:      req.Defaults.Tags,
			GroupHint: req.Defaults.GroupHint,
		},
	})
	if err != nil {
		log.Error("serve: import failed", zap.Error(err))
		return
	}
	log.Info("serve: import finished",
		zap.Int("added", result.MarkersAdded),
		zap.Int("duplicates", result.DuplicatesSkipped),
		zap.Int("skipped", result.RowsSkipped),
		zap.Bool("cancelled", result.Cancelled),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("serve: response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

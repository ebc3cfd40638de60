package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/mapyard/marker-ingest/internal/audit"
	"github.com/mapyard/marker-ingest/internal/pipeline"
	"github.com/mapyard/marker-ingest/internal/store"
)

// pipelineEnv holds the initialized store and pipeline needed by the run and
// serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, runs migrations, and builds the Pipeline.
// Callers should defer env.Close().
func initPipeline(ctx context.Context, opts ...pipeline.Option) (*pipelineEnv, error) {
	if err := cfg.Validate("run"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	p := pipeline.New(st, initGeocoder(), audit.NewStoreRecorder(st), opts...)

	return &pipelineEnv{
		Store:    st,
		Pipeline: p,
	}, nil
}

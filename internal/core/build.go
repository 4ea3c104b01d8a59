package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/latticehq/lattice/internal/config"
	"github.com/latticehq/lattice/internal/llm"
	"github.com/latticehq/lattice/internal/search"
	"github.com/latticehq/lattice/internal/store"
)

// Build opens the store, constructs the configured LLM clients, and
// assembles the engine. The returned func releases the store.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Lattice, func(), error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}

	remote, remoteEmbedder, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("remote llm: %w", err)
	}
	local, localEmbedder, err := llm.NewClient(ctx, cfg.LocalLLM)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("local llm: %w", err)
	}
	if remote == nil && local == nil {
		st.Close()
		return nil, nil, fmt.Errorf("no llm provider configured")
	}

	router := &llm.Router{Remote: remote, Local: local}
	embedder := remoteEmbedder
	if embedder == nil {
		embedder = localEmbedder
	}

	searchClient := remote
	if searchClient == nil {
		searchClient = local
	}
	adapter := search.NewLLMAdapter(searchClient, cfg.Search, log)

	l := New(st, router, embedder, adapter, cfg, log)
	cleanup := func() { st.Close() }
	return l, cleanup, nil
}

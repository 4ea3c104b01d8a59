// Package core wires the knowledge graph maintenance engine together:
// store, traversal, merge, pattern mining, gap detection, and the
// saturation loop.
package core

import (
	"context"

	"go.uber.org/zap"

	"github.com/latticehq/lattice/internal/config"
	"github.com/latticehq/lattice/internal/core/extraction"
	"github.com/latticehq/lattice/internal/core/ingest"
	"github.com/latticehq/lattice/internal/core/merge"
	"github.com/latticehq/lattice/internal/core/model"
	"github.com/latticehq/lattice/internal/core/patterns"
	"github.com/latticehq/lattice/internal/core/saturation"
	"github.com/latticehq/lattice/internal/core/simindex"
	"github.com/latticehq/lattice/internal/core/traversal"
	"github.com/latticehq/lattice/internal/llm"
	"github.com/latticehq/lattice/internal/search"
	"github.com/latticehq/lattice/internal/store"
)

type Lattice struct {
	Store     store.Store
	Extractor *extraction.Extractor
	Pipeline  *ingest.Pipeline
	Traversal *traversal.Engine
	Merger    *merge.Engine
	Miner     *patterns.Miner
	Detector  *patterns.Detector
	Adapter   search.Adapter
	Loop      *saturation.Loop
}

// New assembles the engine. The embedder may be nil; merge then falls back
// to the lexical similarity index regardless of configuration.
func New(s store.Store, router *llm.Router, embedder llm.EmbedderClient, adapter search.Adapter, cfg *config.Config, log *zap.Logger) *Lattice {
	if log == nil {
		log = zap.NewNop()
	}

	extractor := extraction.NewExtractor(router)
	pipeline := ingest.New(s, extractor, log)

	newIndex := func() simindex.Index { return simindex.NewLexical() }
	if cfg.Merge.UseEmbeddings && embedder != nil {
		newIndex = func() simindex.Index { return simindex.NewEmbedding(embedder) }
	}
	merger := merge.New(s, newIndex, cfg.Merge.Threshold, log)

	miner := patterns.NewMiner(s)
	detector := patterns.NewDetector(s)
	loop := saturation.New(miner, detector, merger, adapter, pipeline, saturation.Options{
		PatternThreshold: cfg.Patterns.Threshold,
		EarlyExit:        cfg.Saturation.EarlyExit,
	}, log)

	return &Lattice{
		Store:     s,
		Extractor: extractor,
		Pipeline:  pipeline,
		Traversal: traversal.New(s),
		Merger:    merger,
		Miner:     miner,
		Detector:  detector,
		Adapter:   adapter,
		Loop:      loop,
	}
}

// Ingest runs the full pipeline on one text payload.
func (l *Lattice) Ingest(ctx context.Context, text string, source model.SourceType, level model.PrivacyLevel) (*model.Document, error) {
	return l.Pipeline.Ingest(ctx, text, source, level)
}

// GraphContext returns the privacy-filtered induced subgraph around seeds.
func (l *Lattice) GraphContext(ctx context.Context, seedIDs []int64, depth int, level model.PrivacyLevel) (*traversal.GraphContext, error) {
	return l.Traversal.Expand(ctx, seedIDs, depth, level)
}

// MergeDuplicates runs one merge pass over the whole entity set.
func (l *Lattice) MergeDuplicates(ctx context.Context) (*merge.Result, error) {
	return l.Merger.Run(ctx)
}

// Saturate runs the enrichment fixpoint loop.
func (l *Lattice) Saturate(ctx context.Context, maxIterations int) (*saturation.Result, error) {
	return l.Loop.Saturate(ctx, maxIterations)
}

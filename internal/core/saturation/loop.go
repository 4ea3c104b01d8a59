// Package saturation drives autonomous enrichment to a fixpoint: mine
// patterns, detect gaps, look the gaps up externally, ingest what comes
// back, merge, repeat.
package saturation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/latticehq/lattice/internal/core/merge"
	"github.com/latticehq/lattice/internal/core/model"
	"github.com/latticehq/lattice/internal/core/patterns"
	"github.com/latticehq/lattice/internal/search"
)

// Outcome is the explicit per-entity result of one enrichment attempt.
// Partial failure is normal here: a failing entity never aborts the
// iteration, it just lands in the tally.
type Outcome int

const (
	// OutcomeIngested: the external result was ingested into the graph.
	OutcomeIngested Outcome = iota
	// OutcomeNoResult: the adapter found nothing; a dead end, accepted as
	// saturated.
	OutcomeNoResult
	// OutcomeSkipped: no query could be constructed for the entity.
	OutcomeSkipped
	// OutcomeFailed: the adapter or the ingestion pipeline errored.
	OutcomeFailed
)

type Ingestor interface {
	Ingest(ctx context.Context, text string, source model.SourceType, level model.PrivacyLevel) (*model.Document, error)
}

type Merger interface {
	Run(ctx context.Context) (*merge.Result, error)
}

type Options struct {
	// PatternThreshold is the minimum occurrence count for norm inference.
	PatternThreshold int
	// EarlyExit stops as soon as an iteration detects no gaps. When false
	// the loop always runs the full iteration budget.
	EarlyExit bool
}

type Loop struct {
	miner    *patterns.Miner
	detector *patterns.Detector
	merger   Merger
	adapter  search.Adapter
	ingestor Ingestor
	opts     Options
	log      *zap.Logger
}

func New(miner *patterns.Miner, detector *patterns.Detector, merger Merger, adapter search.Adapter, ingestor Ingestor, opts Options, log *zap.Logger) *Loop {
	if opts.PatternThreshold <= 0 {
		opts.PatternThreshold = patterns.DefaultThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{
		miner:    miner,
		detector: detector,
		merger:   merger,
		adapter:  adapter,
		ingestor: ingestor,
		opts:     opts,
		log:      log,
	}
}

type Result struct {
	// SaturatedCount is the number of entities for which a non-empty
	// external result was successfully ingested, across all iterations.
	SaturatedCount int `json:"saturated_count"`
	Iterations     int `json:"iterations"`
	NoResult       int `json:"no_result"`
	Skipped        int `json:"skipped"`
	Failed         int `json:"failed"`
	Merged         int `json:"merged"`
}

// Saturate runs at most maxIterations enrichment rounds. Adapter failures
// are per-entity outcomes, never loop aborts; store failures inside an
// iteration's mine/detect/merge phases do abort, since the graph itself is
// unreachable at that point.
func (l *Loop) Saturate(ctx context.Context, maxIterations int) (*Result, error) {
	result := &Result{}

	for iter := 0; iter < maxIterations; iter++ {
		pats, err := l.miner.CommonRelationPatterns(ctx, l.opts.PatternThreshold)
		if err != nil {
			return result, fmt.Errorf("saturation: iteration %d: %w", iter, err)
		}
		gaps, err := l.detector.MissingRelations(ctx, pats)
		if err != nil {
			return result, fmt.Errorf("saturation: iteration %d: %w", iter, err)
		}
		result.Iterations = iter + 1

		if len(gaps) == 0 && l.opts.EarlyExit {
			// Fixpoint: nothing left to fill. Accepted success even with
			// zero enrichment.
			l.log.Info("saturation fixpoint reached", zap.Int("iteration", iter))
			return result, nil
		}

		for _, gap := range gaps {
			// Cooperative cancellation between entities, never mid-operation.
			if err := ctx.Err(); err != nil {
				return result, fmt.Errorf("saturation: iteration %d: %w", iter, err)
			}
			switch l.enrich(ctx, gap) {
			case OutcomeIngested:
				result.SaturatedCount++
			case OutcomeNoResult:
				result.NoResult++
			case OutcomeSkipped:
				result.Skipped++
			case OutcomeFailed:
				result.Failed++
			}
		}

		merged, err := l.merger.Run(ctx)
		if err != nil {
			return result, fmt.Errorf("saturation: iteration %d: merge: %w", iter, err)
		}
		result.Merged += merged.Merged

		l.log.Info("saturation iteration finished",
			zap.Int("iteration", iter),
			zap.Int("gaps", len(gaps)),
			zap.Int("saturated", result.SaturatedCount),
			zap.Int("merged", merged.Merged))
	}
	return result, nil
}

func (l *Loop) enrich(ctx context.Context, gap patterns.Gap) Outcome {
	query := buildQuery(gap)
	if query == "" {
		return OutcomeSkipped
	}

	res, err := l.adapter.Search(ctx, query)
	if err != nil {
		l.log.Warn("external search failed",
			zap.Int64("entity_id", gap.Entity.ID),
			zap.String("entity", gap.Entity.Name),
			zap.Error(err))
		return OutcomeFailed
	}
	if res == nil {
		return OutcomeNoResult
	}

	// Search-derived documents inherit the gapped entity's privacy level so
	// enrichment about a PRIVATE entity never lands in the PUBLIC partition.
	text := formatDocument(gap.Entity, res)
	if _, err := l.ingestor.Ingest(ctx, text, model.SourceSearch, gap.Entity.Privacy); err != nil {
		l.log.Warn("enrichment ingest failed",
			zap.Int64("entity_id", gap.Entity.ID),
			zap.String("entity", gap.Entity.Name),
			zap.Error(err))
		return OutcomeFailed
	}
	return OutcomeIngested
}

// buildQuery renders an entity's gaps as one lookup query. Entities without
// a usable name have no constructible query.
func buildQuery(gap patterns.Gap) string {
	name := strings.TrimSpace(gap.Entity.Name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%q is a %s.", name, strings.ToLower(string(gap.Entity.Type)))
	if gap.Entity.Description != "" {
		fmt.Fprintf(&b, " Known context: %s.", gap.Entity.Description)
	}
	if len(gap.MissingOutgoing) > 0 {
		fmt.Fprintf(&b, " Find what it relates to via: %s.", joinTypes(gap.MissingOutgoing))
	}
	if len(gap.MissingIncoming) > 0 {
		fmt.Fprintf(&b, " Find what relates to it via: %s.", joinTypes(gap.MissingIncoming))
	}
	return b.String()
}

func joinTypes(types []model.RelationType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

// formatDocument shapes an external result into an ingestable text payload.
func formatDocument(e model.Entity, res *search.Result) string {
	var b strings.Builder
	if res.Title != "" {
		b.WriteString(res.Title)
		b.WriteString("\n\n")
	}
	b.WriteString(res.Content)
	fmt.Fprintf(&b, "\n\nThis information concerns %s (%s).", e.Name, e.Type)
	return b.String()
}

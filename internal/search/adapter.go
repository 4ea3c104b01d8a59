// Package search issues structured queries to an external
// information-gathering capability. A nil result means "no information
// found" and is not an error.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/latticehq/lattice/internal/apperr"
	"github.com/latticehq/lattice/internal/config"
	"github.com/latticehq/lattice/internal/core/common"
	"github.com/latticehq/lattice/internal/llm"
)

// Result is the typed answer schema every adapter must honor exactly.
type Result struct {
	Found   bool   `json:"found"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Adapter interface {
	Search(ctx context.Context, query string) (*Result, error)
}

const searchPrompt = `You are an information lookup service for a knowledge graph.
Answer the query below from your general knowledge.

Return a JSON object with exactly these fields:
{"found": true|false, "title": "...", "content": "..."}

Set "found" to false if you do not have reliable information. Do not guess.
"content" should be 1-3 factual sentences naming concrete entities.

Query: %s`

// LLMAdapter answers lookups with a language model behind a circuit
// breaker, so a misbehaving provider fails fast instead of stalling a
// saturation run.
type LLMAdapter struct {
	client  llm.LLMClient
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewLLMAdapter(client llm.LLMClient, cfg config.SearchConfig, log *zap.Logger) *LLMAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	failures := cfg.FailureThreshold
	if failures == 0 {
		failures = 5
	}
	cooldown := time.Duration(cfg.CooldownSeconds) * time.Second
	if cooldown == 0 {
		cooldown = time.Minute
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "external-search",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("search breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &LLMAdapter{client: client, breaker: breaker, log: log}
}

func (a *LLMAdapter) Search(ctx context.Context, query string) (*Result, error) {
	out, err := a.breaker.Execute(func() (interface{}, error) {
		response, err := a.client.Generate(ctx, fmt.Sprintf(searchPrompt, query))
		if err != nil {
			return nil, err
		}
		result, err := common.ParseJSON[Result](response)
		if err != nil {
			return nil, err
		}
		return &result, nil
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w: %v", apperr.ErrAdapterFailure, err)
	}
	result := out.(*Result)
	if !result.Found || strings.TrimSpace(result.Content) == "" {
		return nil, nil
	}
	return result, nil
}

// Package llm holds the language-model client interfaces and provider
// implementations. The Router selects between a remote and a local client by
// privacy level: PRIVATE payloads never leave the local model.
package llm

import (
	"context"
	"fmt"

	"github.com/latticehq/lattice/internal/core/model"
)

type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Router pairs a remote client with a locally-controlled one. Local may be
// nil only when no PRIVATE payload will ever be routed.
type Router struct {
	Remote LLMClient
	Local  LLMClient
}

// Pick returns the client allowed to see a payload at the given level.
func (r *Router) Pick(level model.PrivacyLevel) (LLMClient, error) {
	if level == model.PrivacyPrivate {
		if r.Local == nil {
			return nil, fmt.Errorf("llm: no local model configured for PRIVATE payload")
		}
		return r.Local, nil
	}
	if r.Remote != nil {
		return r.Remote, nil
	}
	return r.Local, nil
}

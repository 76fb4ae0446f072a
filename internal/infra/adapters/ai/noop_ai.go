package ai

import (
	"context"
	"fmt"

	"erp-ai-jobs/internal/domain/ports/adapter"
)

var _ adapter.AIResponder = (*NoopResponder)(nil)

// NoopResponder satisfies the executor port without calling any model.
// Useful for dev mode and smoke tests; real deployments plug their own
// inference client into the worker.
type NoopResponder struct{}

func NewNoopResponder() *NoopResponder { return &NoopResponder{} }

func (n *NoopResponder) GenerateResponse(_ context.Context, req adapter.ResponseRequest) (*adapter.ResponseResult, error) {
	return &adapter.ResponseResult{
		Text:       fmt.Sprintf("noop response for conversation %s", req.ConversationID),
		Confidence: 1.0,
	}, nil
}

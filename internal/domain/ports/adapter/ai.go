package adapter

import (
	"context"

	"erp-ai-jobs/internal/domain/model"
)

// ResponseRequest carries everything an executor needs to produce an AI
// response for a claimed job. The engine never interprets Metadata.
type ResponseRequest struct {
	JobID            string
	OrganizationID   string
	ConversationID   string
	TriggerMessageID string
	Type             model.JobType
	Metadata         map[string]string
}

// ResponseResult is the executor's output, reported back to the engine as
// a success transition. Token counts and cost are computed by the executor.
type ResponseResult struct {
	MessageID        string
	Text             string
	Confidence       float64
	FragmentsUsed    []string
	PromptTokens     int
	CompletionTokens int
	CostMicros       int64
}

// AIResponder is the inference call behind the worker runtime. The actual
// model client lives outside this module; only a noop implementation ships
// with the engine.
type AIResponder interface {
	GenerateResponse(ctx context.Context, req ResponseRequest) (*ResponseResult, error)
}

package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transition is permitted out of s.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobType is an open set; producers may enqueue types not listed here.
type JobType string

const (
	JobTypeGenerateResponse   JobType = "generate_response"
	JobTypeGenerateEmbeddings JobType = "generate_embeddings"
	JobTypeReindexKnowledge   JobType = "reindex_knowledge"
	JobTypeSummarize          JobType = "summarize"
	JobTypeClassify           JobType = "classify"
)

// Metadata keys written by the engine itself. Everything else in the bag
// belongs to producers and executors.
const (
	MetaRetryOf     = "retry_of"
	MetaRetriedBy   = "retried_by"
	MetaCancelledBy = "cancelled_by"
)

// Job is one unit of AI-response work tied to a conversation.
// Status is only ever changed through conditional updates keyed on the
// expected pre-state, so a terminal job stays terminal forever.
type Job struct {
	ID               string
	OrganizationID   string
	ConversationID   string
	TriggerMessageID string
	Type             JobType
	Status           JobStatus

	// Result fields, populated only on completion.
	ResultMessageID  string
	ResponseText     string
	ConfidenceScore  float64
	FragmentsUsed    []string
	PromptTokens     int
	CompletionTokens int
	TotalCostMicros  int64

	// Failure fields, populated when the job failed. ErrorMessage is also
	// set on cancellation to record who cancelled.
	ErrorCode    string
	ErrorMessage string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	Metadata map[string]string
}

// legalTransitions is the single source of truth for the state machine.
var legalTransitions = map[JobStatus][]JobStatus{
	JobStatusPending: {JobStatusRunning, JobStatusCancelled},
	JobStatusRunning: {JobStatusCompleted, JobStatusFailed, JobStatusCancelled},
}

// CanTransition reports whether from -> to is a legal state machine edge.
func CanTransition(from, to JobStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NewJob creates a pending job with a fresh ULID. ULIDs sort by creation
// time, so ordering by (created_at, id) gives a deterministic FIFO queue.
func NewJob(orgID, conversationID string, jobType JobType, triggerMessageID string) *Job {
	return &Job{
		ID:               ulid.Make().String(),
		OrganizationID:   orgID,
		ConversationID:   conversationID,
		TriggerMessageID: triggerMessageID,
		Type:             jobType,
		Status:           JobStatusPending,
		CreatedAt:        time.Now().UTC(),
		Metadata:         map[string]string{},
	}
}

// RetryOf returns the predecessor job id when this job is a retry.
func (j *Job) RetryOf() (string, bool) {
	id, ok := j.Metadata[MetaRetryOf]
	return id, ok && id != ""
}

// JobResult carries the executor's success report. Token counts and cost
// are computed by the executor, not by the engine.
type JobResult struct {
	ResultMessageID  string
	ResponseText     string
	ConfidenceScore  float64
	FragmentsUsed    []string
	PromptTokens     int
	CompletionTokens int
	TotalCostMicros  int64
}

// JobFailure carries the executor's failure report.
type JobFailure struct {
	Code    string
	Message string
}

// JobStats is a point-in-time status distribution for one organization.
type JobStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

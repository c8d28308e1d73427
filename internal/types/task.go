package types

import (
	"time"

	"github.com/google/uuid"
)

// Priority levels for a Task; larger values mean higher priority. The
// Broker delivers tasks in plain FIFO order and does not reorder them by
// priority.
const (
	PriorityLowest  = 1
	PriorityLow     = 3
	PriorityNormal  = 5
	PriorityHigh    = 7
	PriorityHighest = 9
)

// Task is an intent to fetch one URL, coordinated through the Broker.
type Task struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	Priority    int               `json:"priority"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   float64           `json:"timestamp"`
	Headers     map[string]string `json:"headers,omitempty"`
	Cookies     map[string]string `json:"cookies,omitempty"`
	RetryCount  int               `json:"retry_count,omitempty"`
	MaxAttempts int               `json:"max_attempts,omitempty"`
}

// NewTask creates a Task for url with the given priority and parent URL
// metadata, ready to be pushed to the Broker.
func NewTask(url string, priority int, parentURL string) *Task {
	t := &Task{
		ID:          uuid.NewString(),
		URL:         url,
		Priority:    priority,
		Timestamp:   float64(time.Now().UnixNano()) / 1e9,
		MaxAttempts: 3,
	}
	if parentURL != "" {
		t.Metadata = map[string]string{"parent_url": parentURL}
	}
	return t
}

// CanRetry reports whether the task has attempts remaining.
func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxAttempts
}

// Result is the minimal record posted to the result queue for aggregation.
// It is not the durable artifact — that is Page, saved via Storage.
type Result struct {
	TaskID    string  `json:"task_id"`
	URL       string  `json:"url"`
	Success   bool    `json:"success"`
	WorkerID  string  `json:"worker_id"`
	Timestamp float64 `json:"timestamp"`
	Error     string  `json:"error,omitempty"`
}

// NewSuccessResult builds a success Result descriptor.
func NewSuccessResult(taskID, url, workerID string) *Result {
	return &Result{
		TaskID:    taskID,
		URL:       url,
		Success:   true,
		WorkerID:  workerID,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}
}

// NewFailureResult builds a failure Result descriptor carrying an error tag.
func NewFailureResult(taskID, url, workerID, errTag string) *Result {
	return &Result{
		TaskID:    taskID,
		URL:       url,
		Success:   false,
		WorkerID:  workerID,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Error:     errTag,
	}
}

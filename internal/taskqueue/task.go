package taskqueue

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Label keys carried on task messages.
const (
	LabelRetryCount  = "_retry_count"
	LabelRetryPolicy = "retry_policy"
)

// ErrNoResult signals that a task attempt must leave no trace in the result
// backend. The retry middleware uses it to suppress intermediate failures;
// it never participates in retry accounting itself.
var ErrNoResult = errors.New("task produced no result")

// Task is one unit of work on the queue. Labels travel with the message
// across re-enqueues; Payload is opaque to the broker.
type Task struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Queue      string            `json:"queue"`
	Labels     map[string]string `json:"labels,omitempty"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

func NewTask(name, queue string, payload any) (*Task, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}

	return &Task{
		ID:      uuid.New().String(),
		Name:    name,
		Queue:   queue,
		Labels:  map[string]string{},
		Payload: raw,
	}, nil
}

// RetryCount reads the retry label; absent or malformed means first attempt.
func (t *Task) RetryCount() int {
	if t.Labels == nil {
		return 0
	}
	count, err := strconv.Atoi(t.Labels[LabelRetryCount])
	if err != nil || count < 0 {
		return 0
	}
	return count
}

func (t *Task) SetRetryCount(count int) {
	if t.Labels == nil {
		t.Labels = map[string]string{}
	}
	t.Labels[LabelRetryCount] = strconv.Itoa(count)
}

// PolicyName resolves which retry policy governs this task: an explicit
// retry_policy label wins, otherwise the queue name.
func (t *Task) PolicyName() string {
	if t.Labels != nil && t.Labels[LabelRetryPolicy] != "" {
		return t.Labels[LabelRetryPolicy]
	}
	return t.Queue
}

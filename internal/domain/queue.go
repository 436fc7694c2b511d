package domain

// QueueState describes whether a queue is accepting and draining work.
type QueueState string

const (
	QueueStateRunning QueueState = "running"
	QueueStateStopped QueueState = "stopped"
)

// QueueStatus is the operator-visible snapshot of one execution queue.
// Written by the dispatcher, read by status reporting.
type QueueStatus struct {
	Name           string     `json:"name"`
	Size           int        `json:"size"`
	Pending        int        `json:"pending"`
	MaxSize        int        `json:"max_size"`
	State          QueueState `json:"state"`
	ProcessedCount int64      `json:"processed_count"`
	ErrorCount     int64      `json:"error_count"`
}

package domain

// JobStatus is the lifecycle state of a notification job.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobDelivered JobStatus = "DELIVERED"
	JobRetrying  JobStatus = "RETRYING"
	JobFailed    JobStatus = "FAILED"
)

// NotificationJob tracks delivery of one token alert to one subscriber.
// Keyed by (token_address, user_id); created at most once per pair and
// mutated only by the dispatcher. Retained for audit and idempotence.
type NotificationJob struct {
	TokenAddress string
	UserID       int64
	Status       JobStatus
	Attempts     int
	LastError    string
	CreatedAt    int64 // unix ms
	UpdatedAt    int64 // unix ms
}

// Terminal reports whether the job needs no further delivery attempts.
func (j *NotificationJob) Terminal() bool {
	return j.Status == JobDelivered || j.Status == JobFailed
}

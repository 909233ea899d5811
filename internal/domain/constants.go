package domain

// JobKind selects the worker behavior for a SyncJob.
type JobKind string

const (
	JobKindSearch            JobKind = "search"
	JobKindSingleProfile     JobKind = "singleProfile"
	JobKindRecurringSearch   JobKind = "recurringSearch"
	JobKindExportStart       JobKind = "exportStart"
	JobKindExportStatusCheck JobKind = "exportStatusCheck"
)

// Valid reports whether k is a known job kind.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindSearch, JobKindSingleProfile, JobKindRecurringSearch, JobKindExportStart, JobKindExportStatusCheck:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a SyncJob.
type JobStatus string

const (
	JobStatusEnqueued  JobStatus = "enqueued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusDelayed   JobStatus = "delayed"
)

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job priorities map onto AMQP message priorities; higher is delivered first.
const (
	PriorityLow    uint8 = 1
	PriorityNormal uint8 = 5
	PriorityHigh   uint8 = 9
	MaxPriority    uint8 = 10
)

const (
	// DataSource tags every platform profile and sync marker written by this service.
	DataSource = "insightiq"

	// RoleInfluencer is the role given to accounts created during sync.
	RoleInfluencer = "influencer"
)

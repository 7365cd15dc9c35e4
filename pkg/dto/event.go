package dto

// JobEvent is a job lifecycle notification, published to the JOBS stream
// and broadcast to WebSocket clients. Data carries the full job snapshot.
type JobEvent struct {
	Type  string      `json:"type"`
	JobID string      `json:"job_id"`
	Data  interface{} `json:"data"`
}

// Job event types.
const (
	EventDigestProgress  = "digest_progress"
	EventDigestCompleted = "digest_completed"
	EventDigestFailed    = "digest_failed"
	EventClusterProgress = "cluster_progress"
	EventClusterDone     = "cluster_completed"
	EventClusterFailed   = "cluster_failed"
)

package dto

// DigestRequest submits a batch ingestion job. Exactly one of
// LocalDirPath or S3Bucket must be set; supplying both or neither is a
// validation error rejected before any job is created.
type DigestRequest struct {
	LocalDirPath string `json:"local_dir_path,omitempty"`
	S3Bucket     string `json:"s3_bucket,omitempty"`
	S3Prefix     string `json:"s3_prefix,omitempty"`

	GroupID    string   `json:"group_id" binding:"required"`
	Collection string   `json:"collection,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Threads    int      `json:"threads,omitempty"`
	MaxRetries *int     `json:"max_retries,omitempty"`
}

// JobAccepted is the immediate response to a job submission.
type JobAccepted struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

package models

import "time"

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status is final. Terminal jobs are never
// resumed or retried as a whole.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ImageSuccess records one image whose faces were all upserted.
type ImageSuccess struct {
	Path           string `json:"path"`
	FacesExtracted int    `json:"faces_extracted"`
	ThumbnailPath  string `json:"thumbnail_path,omitempty"`
}

// ImageNoFaces records an image with zero faces surviving the confidence
// filter. This is a semantic non-failure.
type ImageNoFaces struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ImageFailure records an image whose pipeline exhausted its retries.
type ImageFailure struct {
	Path    string `json:"path"`
	Error   string `json:"error"`
	Retries int    `json:"retries"`
}

// ThumbnailFailure records a thumbnail upload that failed. It never fails
// the image itself.
type ThumbnailFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// DigestJob is the mutable state record of one ingestion job. All
// mutations go through the job registry under the record's lock.
type DigestJob struct {
	JobID             string             `json:"job_id"`
	GroupID           string             `json:"group_id"`
	Collection        string             `json:"collection"`
	Source            string             `json:"source"`
	Status            JobStatus          `json:"status"`
	Progress          int                `json:"progress"`
	TotalImages       int                `json:"total_images"`
	FacesProcessed    int                `json:"faces_processed"`
	RetryCount        int                `json:"retry_count"`
	SuccessfulImages  []ImageSuccess     `json:"successful_images"`
	NoFacesImages     []ImageNoFaces     `json:"no_faces_images"`
	FailedImages      []ImageFailure     `json:"failed_images"`
	ThumbnailFailures []ThumbnailFailure `json:"thumbnail_failures,omitempty"`
	UpsertedIDs       []string           `json:"upserted_ids"`
	StartTime         time.Time          `json:"start_time"`
	EndTime           *time.Time         `json:"end_time"`
	ErrorMessage      string             `json:"error_message,omitempty"`
}

// ImagesDone is the number of images attempted so far, any outcome.
func (j *DigestJob) ImagesDone() int {
	return len(j.SuccessfulImages) + len(j.NoFacesImages) + len(j.FailedImages)
}

// Clone returns a deep copy safe to hand out while workers keep mutating
// the original under the registry lock.
func (j DigestJob) Clone() DigestJob {
	c := j
	c.SuccessfulImages = append([]ImageSuccess(nil), j.SuccessfulImages...)
	c.NoFacesImages = append([]ImageNoFaces(nil), j.NoFacesImages...)
	c.FailedImages = append([]ImageFailure(nil), j.FailedImages...)
	c.ThumbnailFailures = append([]ThumbnailFailure(nil), j.ThumbnailFailures...)
	c.UpsertedIDs = append([]string(nil), j.UpsertedIDs...)
	if j.EndTime != nil {
		t := *j.EndTime
		c.EndTime = &t
	}
	return c
}

// ClusterSample is one entry of the bounded per-run result preview.
type ClusterSample struct {
	PointID     string `json:"point_id"`
	PersonID    string `json:"person_id"`
	ClusterID   int    `json:"cluster_id"`
	ClusterSize int    `json:"cluster_size"`
}

// ClusterJob is the state record of one clustering run.
type ClusterJob struct {
	JobID           string          `json:"job_id"`
	GroupID         string          `json:"group_id"`
	Collection      string          `json:"collection"`
	Confidence      float64         `json:"confidence"`
	Status          JobStatus       `json:"status"`
	Message         string          `json:"message"`
	TotalFaces      int             `json:"total_faces"`
	ClustersCreated int             `json:"clusters_created"`
	FacesUpdated    int             `json:"faces_updated"`
	UpdatedFaces    []ClusterSample `json:"updated_faces"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         *time.Time      `json:"end_time"`
	ErrorMessage    string          `json:"error_message,omitempty"`
}

func (j ClusterJob) Clone() ClusterJob {
	c := j
	c.UpdatedFaces = append([]ClusterSample(nil), j.UpdatedFaces...)
	if j.EndTime != nil {
		t := *j.EndTime
		c.EndTime = &t
	}
	return c
}

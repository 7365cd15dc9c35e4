// Package digest owns the batch-ingestion pipeline: enumerate images,
// detect and embed faces with a bounded worker pool, and upsert the
// resulting points into the vector store.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/faceworker/internal/config"
	"github.com/your-org/faceworker/internal/models"
	"github.com/your-org/faceworker/internal/observability"
	"github.com/your-org/faceworker/internal/registry"
	"github.com/your-org/faceworker/internal/source"
	"github.com/your-org/faceworker/internal/vision"
	"github.com/your-org/faceworker/pkg/dto"
)

// PointStore is the slice of the vector store the pipeline writes to.
type PointStore interface {
	EnsureCollection(ctx context.Context, name string, dim int) error
	UpsertPoints(ctx context.Context, collection string, points []models.FacePoint) error
}

// ThumbnailStore uploads digest thumbnails next to S3 source images.
type ThumbnailStore interface {
	PutThumbnail(ctx context.Context, bucket, originalKey string, data []byte) (string, error)
}

// Notifier receives job lifecycle events. Implementations must not block.
type Notifier interface {
	Publish(evt dto.JobEvent)
}

// Request is a validated digest submission.
type Request struct {
	Source     source.Source
	GroupID    string
	Collection string
	// Confidence is the minimum detection confidence; nil uses the
	// configured default. Zero keeps every detected face.
	Confidence *float64
	// Threads is the worker pool size; zero uses the configured default.
	Threads int
	// MaxRetries bounds per-operation retries; nil uses the configured
	// default, zero disables retrying.
	MaxRetries *int
}

// Controller owns digest job lifecycles. Submitted jobs run on their own
// worker pool until completion; there is no mid-job cancellation, so the
// background work carries its own context.
type Controller struct {
	jobs     *registry.Registry[models.DigestJob]
	store    PointStore
	backend  vision.Backend
	enum     *source.Enumerator
	thumbs   ThumbnailStore // nil disables thumbnail uploads
	notifier Notifier       // nil disables notifications
	cfg      config.DigestConfig
}

func NewController(
	jobs *registry.Registry[models.DigestJob],
	store PointStore,
	backend vision.Backend,
	enum *source.Enumerator,
	thumbs ThumbnailStore,
	notifier Notifier,
	cfg config.DigestConfig,
) *Controller {
	return &Controller{
		jobs:     jobs,
		store:    store,
		backend:  backend,
		enum:     enum,
		thumbs:   thumbs,
		notifier: notifier,
		cfg:      cfg,
	}
}

type runParams struct {
	src        source.Source
	groupID    string
	collection string
	confidence float64
	threads    int
	maxRetries int
}

// Submit registers a new job and starts it in the background. The job is
// visible in the registry before Submit returns.
func (c *Controller) Submit(req Request) (models.DigestJob, error) {
	if req.GroupID == "" {
		return models.DigestJob{}, errors.New("group_id is required")
	}
	if req.Source == nil {
		return models.DigestJob{}, errors.New("image source is required")
	}
	if req.Confidence != nil && (*req.Confidence < 0 || *req.Confidence > 1) {
		return models.DigestJob{}, fmt.Errorf("confidence must be between 0 and 1, got %v", *req.Confidence)
	}
	if req.Threads < 0 {
		return models.DigestJob{}, fmt.Errorf("threads must be at least 1, got %d", req.Threads)
	}
	if req.MaxRetries != nil && *req.MaxRetries < 0 {
		return models.DigestJob{}, fmt.Errorf("max_retries must not be negative, got %d", *req.MaxRetries)
	}

	params := runParams{
		src:        req.Source,
		groupID:    req.GroupID,
		collection: req.Collection,
		confidence: c.cfg.Confidence,
		threads:    req.Threads,
		maxRetries: c.cfg.MaxRetries,
	}
	if params.collection == "" {
		params.collection = c.cfg.DefaultCollection
	}
	if req.Confidence != nil {
		params.confidence = *req.Confidence
	}
	if params.threads < 1 {
		params.threads = c.cfg.Threads
	}
	if req.MaxRetries != nil {
		params.maxRetries = *req.MaxRetries
	}

	jobID := "digest-" + uuid.NewString()
	job := models.DigestJob{
		JobID:            jobID,
		GroupID:          params.groupID,
		Collection:       params.collection,
		Source:           params.src.Describe(),
		Status:           models.JobQueued,
		SuccessfulImages: []models.ImageSuccess{},
		NoFacesImages:    []models.ImageNoFaces{},
		FailedImages:     []models.ImageFailure{},
		UpsertedIDs:      []string{},
		StartTime:        time.Now().UTC(),
	}
	if err := c.jobs.Create(jobID, job); err != nil {
		return models.DigestJob{}, err
	}

	go c.run(jobID, params)

	return job.Clone(), nil
}

func (c *Controller) run(jobID string, p runParams) {
	ctx := context.Background()

	observability.ActiveDigestJobs.Inc()
	defer observability.ActiveDigestJobs.Dec()

	slog.Info("digest job starting",
		"job_id", jobID, "group_id", p.groupID,
		"source", p.src.Describe(), "threads", p.threads)

	if err := c.store.EnsureCollection(ctx, p.collection, c.backend.Dimension()); err != nil {
		c.fail(jobID, fmt.Errorf("ensure collection %s: %w", p.collection, err))
		return
	}

	images, err := c.enum.Enumerate(ctx, p.src)
	if err != nil {
		c.fail(jobID, fmt.Errorf("enumerate source: %w", err))
		return
	}

	_ = c.jobs.Mutate(jobID, func(j *models.DigestJob) {
		j.TotalImages = len(images)
		j.Status = models.JobProcessing
	})

	if len(images) == 0 {
		c.complete(jobID)
		return
	}

	work := make(chan source.Image)
	var wg sync.WaitGroup
	for i := 0; i < p.threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for img := range work {
				res := c.processImage(ctx, p, img)
				c.record(jobID, len(images), res)
			}
		}()
	}
	for _, img := range images {
		work <- img
	}
	close(work)
	wg.Wait()

	c.complete(jobID)
}

type imageOutcome int

const (
	outcomeSuccess imageOutcome = iota
	outcomeNoFaces
	outcomeFailed
)

type imageResult struct {
	outcome  imageOutcome
	path     string
	faces    int
	pointIDs []string
	errMsg   string
	reason   string
	retries  int
	thumbKey string
	thumbErr string
}

// processImage runs the full per-image pipeline. Blocking calls to the
// backend and the store happen here, never under the job record's lock.
func (c *Controller) processImage(ctx context.Context, p runParams, img source.Image) imageResult {
	res := imageResult{path: img.Path}

	// Load & detect, retrying the whole step on failure.
	var (
		data    []byte
		faces   []vision.Face
		lastErr error
	)
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			res.retries++
			observability.RetriesTotal.WithLabelValues("detect").Inc()
		}
		data, lastErr = c.enum.Fetch(ctx, img)
		if lastErr != nil {
			continue
		}
		faces, lastErr = c.backend.ExtractFaces(ctx, data)
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		res.outcome = outcomeFailed
		res.errMsg = fmt.Sprintf("%v after %d retries", lastErr, res.retries)
		return res
	}

	// Thumbnails are uploaded for every readable remote image, faces or
	// not. A thumbnail failure never fails the image.
	if img.Remote && c.thumbs != nil {
		if tdata, err := vision.Thumbnail(data, c.cfg.ThumbnailMaxPx); err != nil {
			res.thumbErr = err.Error()
		} else if key, err := c.thumbs.PutThumbnail(ctx, img.Bucket, img.Key, tdata); err != nil {
			res.thumbErr = err.Error()
		} else {
			res.thumbKey = key
		}
	}

	kept := faces[:0]
	for _, f := range faces {
		if float64(f.Confidence) >= p.confidence {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		res.outcome = outcomeNoFaces
		res.reason = "No faces detected"
		return res
	}

	now := time.Now().UTC()
	points := make([]models.FacePoint, len(kept))
	for i, f := range kept {
		points[i] = models.FacePoint{
			ID:                  uuid.New(),
			Embedding:           f.Embedding,
			GroupID:             p.groupID,
			ImagePath:           img.Path,
			FaceIndex:           i,
			DetectionConfidence: f.Confidence,
			FacialArea:          f.Area,
			ThumbnailPath:       res.thumbKey,
			Timestamp:           now,
		}
	}

	// Upsert the image's faces as one unit so faces_extracted counting
	// stays atomic per image, retrying on store failure.
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			res.retries++
			observability.RetriesTotal.WithLabelValues("upsert").Inc()
		}
		if lastErr = c.store.UpsertPoints(ctx, p.collection, points); lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		res.outcome = outcomeFailed
		res.errMsg = fmt.Sprintf("upsert faces: %v after %d retries", lastErr, res.retries)
		return res
	}

	res.outcome = outcomeSuccess
	res.faces = len(points)
	res.pointIDs = make([]string, len(points))
	for i, pt := range points {
		res.pointIDs[i] = pt.ID.String()
	}
	return res
}

// record folds one image's result into the shared job record under its
// lock and publishes a progress event.
func (c *Controller) record(jobID string, total int, res imageResult) {
	_ = c.jobs.Mutate(jobID, func(j *models.DigestJob) {
		switch res.outcome {
		case outcomeSuccess:
			j.SuccessfulImages = append(j.SuccessfulImages, models.ImageSuccess{
				Path:           res.path,
				FacesExtracted: res.faces,
				ThumbnailPath:  res.thumbKey,
			})
			j.FacesProcessed += res.faces
			j.UpsertedIDs = append(j.UpsertedIDs, res.pointIDs...)
		case outcomeNoFaces:
			j.NoFacesImages = append(j.NoFacesImages, models.ImageNoFaces{
				Path:   res.path,
				Reason: res.reason,
			})
		case outcomeFailed:
			j.FailedImages = append(j.FailedImages, models.ImageFailure{
				Path:    res.path,
				Error:   res.errMsg,
				Retries: res.retries,
			})
		}
		if res.thumbErr != "" {
			j.ThumbnailFailures = append(j.ThumbnailFailures, models.ThumbnailFailure{
				Path:  res.path,
				Error: res.thumbErr,
			})
		}
		j.RetryCount += res.retries
		j.Progress = j.ImagesDone() * 100 / total
	})

	switch res.outcome {
	case outcomeSuccess:
		observability.ImagesProcessed.WithLabelValues("success").Inc()
		observability.FacesDetected.Add(float64(res.faces))
		observability.PointsUpserted.Add(float64(res.faces))
	case outcomeNoFaces:
		observability.ImagesProcessed.WithLabelValues("no_faces").Inc()
	case outcomeFailed:
		observability.ImagesProcessed.WithLabelValues("failed").Inc()
	}

	c.notify(dto.EventDigestProgress, jobID)
}

func (c *Controller) complete(jobID string) {
	now := time.Now().UTC()
	_ = c.jobs.Mutate(jobID, func(j *models.DigestJob) {
		j.Status = models.JobCompleted
		j.Progress = 100
		j.EndTime = &now
	})

	if job, err := c.jobs.Get(jobID); err == nil {
		slog.Info("digest job completed",
			"job_id", jobID,
			"total_images", job.TotalImages,
			"faces_processed", job.FacesProcessed,
			"failed_images", len(job.FailedImages),
			"retry_count", job.RetryCount)
	}
	c.notify(dto.EventDigestCompleted, jobID)
}

func (c *Controller) fail(jobID string, err error) {
	now := time.Now().UTC()
	_ = c.jobs.Mutate(jobID, func(j *models.DigestJob) {
		j.Status = models.JobFailed
		j.ErrorMessage = err.Error()
		j.EndTime = &now
	})

	slog.Error("digest job failed", "job_id", jobID, "error", err)
	c.notify(dto.EventDigestFailed, jobID)
}

func (c *Controller) notify(evtType, jobID string) {
	if c.notifier == nil {
		return
	}
	job, err := c.jobs.Get(jobID)
	if err != nil {
		return
	}
	c.notifier.Publish(dto.JobEvent{Type: evtType, JobID: jobID, Data: job})
}

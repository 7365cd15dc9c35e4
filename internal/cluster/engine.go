// Package cluster groups a group's face points by identity and tags each
// point with a stable person identifier.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/your-org/faceworker/internal/config"
	"github.com/your-org/faceworker/internal/models"
	"github.com/your-org/faceworker/internal/observability"
	"github.com/your-org/faceworker/internal/registry"
	"github.com/your-org/faceworker/pkg/dto"
)

// maxSamples bounds the per-run result preview.
const maxSamples = 50

// PointSource is the slice of the vector store the engine reads from and
// patches person ids back into.
type PointSource interface {
	ScrollGroup(ctx context.Context, collection, groupID string, limit int, afterID *uuid.UUID) ([]models.FacePoint, error)
	PatchPersonID(ctx context.Context, collection string, ids []uuid.UUID, personID string) error
}

// Notifier receives job lifecycle events. Implementations must not block.
type Notifier interface {
	Publish(evt dto.JobEvent)
}

// Request is a validated cluster submission.
type Request struct {
	GroupID    string
	Collection string
	// Confidence is the similarity threshold; nil uses the configured
	// default. eps = 1 - confidence, clamped to the [0, 2] cosine
	// distance range.
	Confidence *float64
}

// Engine runs clustering as an on-demand batch job: a single-threaded
// computation reported through the same registry surface as digest jobs.
type Engine struct {
	jobs              *registry.Registry[models.ClusterJob]
	store             PointSource
	notifier          Notifier // nil disables notifications
	cfg               config.ClusterConfig
	defaultCollection string
}

func NewEngine(
	jobs *registry.Registry[models.ClusterJob],
	store PointSource,
	notifier Notifier,
	cfg config.ClusterConfig,
	defaultCollection string,
) *Engine {
	return &Engine{
		jobs:              jobs,
		store:             store,
		notifier:          notifier,
		cfg:               cfg,
		defaultCollection: defaultCollection,
	}
}

// Submit registers a clustering run and starts it in the background.
func (e *Engine) Submit(req Request) (models.ClusterJob, error) {
	if req.GroupID == "" {
		return models.ClusterJob{}, errors.New("group_id is required")
	}
	if req.Confidence != nil && (*req.Confidence < 0 || *req.Confidence > 1) {
		return models.ClusterJob{}, fmt.Errorf("confidence must be between 0 and 1, got %v", *req.Confidence)
	}

	collection := req.Collection
	if collection == "" {
		collection = e.defaultCollection
	}
	confidence := e.cfg.Confidence
	if req.Confidence != nil {
		confidence = *req.Confidence
	}

	jobID := "cluster-" + uuid.NewString()
	job := models.ClusterJob{
		JobID:        jobID,
		GroupID:      req.GroupID,
		Collection:   collection,
		Confidence:   confidence,
		Status:       models.JobQueued,
		Message:      "Clustering queued",
		UpdatedFaces: []models.ClusterSample{},
		StartTime:    time.Now().UTC(),
	}
	if err := e.jobs.Create(jobID, job); err != nil {
		return models.ClusterJob{}, err
	}

	go e.run(jobID, req.GroupID, collection, confidence)

	return job.Clone(), nil
}

func (e *Engine) run(jobID, groupID, collection string, confidence float64) {
	ctx := context.Background()
	timer := prometheus.NewTimer(observability.ClusterDuration)
	defer timer.ObserveDuration()

	_ = e.jobs.Mutate(jobID, func(j *models.ClusterJob) {
		j.Status = models.JobProcessing
		j.Message = "Clustering in progress"
	})
	e.notify(dto.EventClusterProgress, jobID)

	points, err := e.fetchAll(ctx, collection, groupID)
	if err != nil {
		e.fail(jobID, fmt.Errorf("fetch points: %w", err))
		return
	}

	// Zero matching points is a successful empty result.
	if len(points) == 0 {
		e.finish(jobID, fmt.Sprintf("No faces found for group_id: %s", groupID), 0, 0, 0, nil)
		return
	}

	slog.Info("clustering faces",
		"job_id", jobID, "group_id", groupID,
		"faces", len(points), "confidence", confidence)

	eps := 1 - confidence
	if eps < 0 {
		eps = 0
	}
	if eps > 2 {
		eps = 2
	}

	embeddings := make([][]float32, len(points))
	for i, p := range points {
		embeddings[i] = p.Embedding
	}
	labels := dbscan(distanceMatrix(embeddings), eps, 1)

	// Labels come out in first-encounter order, so grouping by label
	// preserves the deterministic cluster ordering.
	numClusters := 0
	for _, l := range labels {
		if l+1 > numClusters {
			numClusters = l + 1
		}
	}
	members := make([][]int, numClusters)
	for idx, l := range labels {
		members[l] = append(members[l], idx)
	}

	updated := 0
	var samples []models.ClusterSample
	for c, idxs := range members {
		personID := fmt.Sprintf("person_%s_%d", groupID, c+1)

		ids := make([]uuid.UUID, len(idxs))
		for i, idx := range idxs {
			ids[i] = points[idx].ID
		}
		if err := e.store.PatchPersonID(ctx, collection, ids, personID); err != nil {
			slog.Warn("patch person_id", "job_id", jobID, "person_id", personID, "error", err)
			continue
		}
		updated += len(idxs)

		for _, idx := range idxs {
			if len(samples) >= maxSamples {
				break
			}
			// ClusterID is 1-based, matching the person_id suffix.
			samples = append(samples, models.ClusterSample{
				PointID:     points[idx].ID.String(),
				PersonID:    personID,
				ClusterID:   c + 1,
				ClusterSize: len(idxs),
			})
		}
	}

	observability.ClustersCreated.Add(float64(numClusters))

	msg := fmt.Sprintf("Successfully clustered %d faces into %d clusters", len(points), numClusters)
	e.finish(jobID, msg, len(points), numClusters, updated, samples)
}

// fetchAll pages through every point of the group, not just one page.
func (e *Engine) fetchAll(ctx context.Context, collection, groupID string) ([]models.FacePoint, error) {
	var all []models.FacePoint
	var after *uuid.UUID
	for {
		page, err := e.store.ScrollGroup(ctx, collection, groupID, e.cfg.PageSize, after)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)
		last := page[len(page)-1].ID
		after = &last
	}
}

func (e *Engine) finish(jobID, msg string, total, clusters, updated int, samples []models.ClusterSample) {
	now := time.Now().UTC()
	_ = e.jobs.Mutate(jobID, func(j *models.ClusterJob) {
		j.Status = models.JobCompleted
		j.Message = msg
		j.TotalFaces = total
		j.ClustersCreated = clusters
		j.FacesUpdated = updated
		if samples != nil {
			j.UpdatedFaces = samples
		}
		j.EndTime = &now
	})

	slog.Info("cluster job completed",
		"job_id", jobID, "total_faces", total,
		"clusters_created", clusters, "faces_updated", updated)
	e.notify(dto.EventClusterDone, jobID)
}

func (e *Engine) fail(jobID string, err error) {
	now := time.Now().UTC()
	_ = e.jobs.Mutate(jobID, func(j *models.ClusterJob) {
		j.Status = models.JobFailed
		j.Message = "Clustering failed"
		j.ErrorMessage = err.Error()
		j.EndTime = &now
	})

	slog.Error("cluster job failed", "job_id", jobID, "error", err)
	e.notify(dto.EventClusterFailed, jobID)
}

func (e *Engine) notify(evtType, jobID string) {
	if e.notifier == nil {
		return
	}
	job, err := e.jobs.Get(jobID)
	if err != nil {
		return
	}
	e.notifier.Publish(dto.JobEvent{Type: evtType, JobID: jobID, Data: job})
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/faceworker/internal/cluster"
	"github.com/your-org/faceworker/internal/models"
	"github.com/your-org/faceworker/internal/registry"
	"github.com/your-org/faceworker/internal/storage"
	"github.com/your-org/faceworker/pkg/dto"
)

// ClusterHandler exposes clustering run submission and inspection.
type ClusterHandler struct {
	engine *cluster.Engine
	jobs   *registry.Registry[models.ClusterJob]
}

func NewClusterHandler(engine *cluster.Engine, jobs *registry.Registry[models.ClusterJob]) *ClusterHandler {
	return &ClusterHandler{engine: engine, jobs: jobs}
}

// Submit handles POST /v1/cluster.
func (h *ClusterHandler) Submit(c *gin.Context) {
	var req dto.ClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Collection != "" {
		if err := storage.ValidateCollectionName(req.Collection); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	job, err := h.engine.Submit(cluster.Request{
		GroupID:    req.GroupID,
		Collection: req.Collection,
		Confidence: req.Confidence,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, dto.JobAccepted{JobID: job.JobID, Status: string(job.Status)})
}

// Get handles GET /v1/cluster/:id.
func (h *ClusterHandler) Get(c *gin.Context) {
	job, err := h.jobs.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, registry.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}

// List handles GET /v1/cluster.
func (h *ClusterHandler) List(c *gin.Context) {
	jobs := h.jobs.List()
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
}

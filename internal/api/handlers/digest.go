package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/faceworker/internal/digest"
	"github.com/your-org/faceworker/internal/models"
	"github.com/your-org/faceworker/internal/registry"
	"github.com/your-org/faceworker/internal/source"
	"github.com/your-org/faceworker/internal/storage"
	"github.com/your-org/faceworker/pkg/dto"
)

// DigestHandler exposes digest job submission and inspection.
type DigestHandler struct {
	controller *digest.Controller
	jobs       *registry.Registry[models.DigestJob]
	s3Enabled  bool
}

func NewDigestHandler(controller *digest.Controller, jobs *registry.Registry[models.DigestJob], s3Enabled bool) *DigestHandler {
	return &DigestHandler{controller: controller, jobs: jobs, s3Enabled: s3Enabled}
}

// Submit handles POST /v1/digest. The request must name exactly one
// image source; validation failures are rejected before a job exists.
func (h *DigestHandler) Submit(c *gin.Context) {
	var req dto.DigestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hasLocal := req.LocalDirPath != ""
	hasS3 := req.S3Bucket != ""
	if hasLocal == hasS3 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "exactly one of local_dir_path or s3_bucket must be provided",
		})
		return
	}
	if hasS3 && !h.s3Enabled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "s3 source requested but object storage is not configured"})
		return
	}
	if req.Collection != "" {
		if err := storage.ValidateCollectionName(req.Collection); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var src source.Source
	if hasLocal {
		src = source.LocalDir{Path: req.LocalDirPath}
	} else {
		src = source.S3Location{Bucket: req.S3Bucket, Prefix: req.S3Prefix}
	}

	job, err := h.controller.Submit(digest.Request{
		Source:     src,
		GroupID:    req.GroupID,
		Collection: req.Collection,
		Confidence: req.Confidence,
		Threads:    req.Threads,
		MaxRetries: req.MaxRetries,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, dto.JobAccepted{JobID: job.JobID, Status: string(job.Status)})
}

// Get handles GET /v1/digest/:id.
func (h *DigestHandler) Get(c *gin.Context) {
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

// List handles GET /v1/digest.
func (h *DigestHandler) List(c *gin.Context) {
	jobs := h.jobs.List()
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
}

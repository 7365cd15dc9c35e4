package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/faceworker/internal/storage"
	"github.com/your-org/faceworker/internal/vision"
	"github.com/your-org/faceworker/pkg/dto"
)

// SearchHandler answers similarity queries against a collection, either
// by raw embedding or by detecting faces in a supplied image.
type SearchHandler struct {
	store             *storage.VectorStore
	backend           vision.Backend
	defaultCollection string
	defaultConfidence float64
}

func NewSearchHandler(store *storage.VectorStore, backend vision.Backend, defaultCollection string, defaultConfidence float64) *SearchHandler {
	return &SearchHandler{
		store:             store,
		backend:           backend,
		defaultCollection: defaultCollection,
		defaultConfidence: defaultConfidence,
	}
}

type faceMatches struct {
	FaceIndex int                   `json:"face_index"`
	Matches   []storage.SearchMatch `json:"matches"`
}

// Search handles POST /v1/search.
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hasEmbedding := len(req.Embedding) > 0
	hasImage := req.ImageB64 != ""
	if hasEmbedding == hasImage {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "exactly one of embedding or image_b64 must be provided",
		})
		return
	}

	collection := req.Collection
	if collection == "" {
		collection = h.defaultCollection
	}
	if err := storage.ValidateCollectionName(collection); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	confidence := h.defaultConfidence
	if req.Confidence != nil {
		confidence = *req.Confidence
	}

	ctx := c.Request.Context()

	if hasEmbedding {
		if len(req.Embedding) != h.backend.Dimension() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "embedding has wrong dimension"})
			return
		}
		matches, err := h.store.SearchSimilar(ctx, collection, req.Embedding, req.GroupID, confidence, req.Limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": matches, "total": len(matches)})
		return
	}

	imageData, err := base64.StdEncoding.DecodeString(req.ImageB64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image_b64 is not valid base64"})
		return
	}
	faces, err := h.backend.ExtractFaces(ctx, imageData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(faces) == 0 {
		c.JSON(http.StatusOK, gin.H{"faces": []faceMatches{}, "total": 0})
		return
	}

	results := make([]faceMatches, 0, len(faces))
	for i, f := range faces {
		matches, err := h.store.SearchSimilar(ctx, collection, f.Embedding, req.GroupID, confidence, req.Limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		results = append(results, faceMatches{FaceIndex: i, Matches: matches})
	}
	c.JSON(http.StatusOK, gin.H{"faces": results, "total": len(results)})
}

package vision

import (
	"context"

	"github.com/your-org/faceworker/internal/models"
)

// Face is one detected face with its embedding, as returned by a Backend.
type Face struct {
	Embedding  []float32
	Confidence float32
	Area       models.FacialArea
}

// Backend detects faces and computes fixed-length embeddings for them.
// Implementations may fail transiently; the digest pipeline retries.
type Backend interface {
	// ExtractFaces returns every detected face in the image, in
	// detection order. An image with no faces returns an empty slice,
	// not an error.
	ExtractFaces(ctx context.Context, imageData []byte) ([]Face, error)
	// Dimension is the embedding vector length, fixed per backend.
	Dimension() int
}

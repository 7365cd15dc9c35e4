package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/your-org/faceworker/internal/config"
	"github.com/your-org/faceworker/internal/models"
)

// ONNXBackend is the in-process Backend implementation: RetinaFace
// detection followed by ArcFace embedding, both via ONNX Runtime. The
// sessions reuse fixed input/output tensors, so mu serializes inference
// across the digest worker pool.
type ONNXBackend struct {
	mu       sync.Mutex
	detector *Detector
	embedder *Embedder
}

// NewONNXBackend loads both models from cfg.ModelsDir.
func NewONNXBackend(cfg config.VisionConfig) (*ONNXBackend, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	return &ONNXBackend{detector: det, embedder: emb}, nil
}

// ExtractFaces decodes the image, detects faces and embeds each crop.
// Safe for concurrent use: inference runs under the backend's lock
// because both sessions write into shared tensors.
func (b *ONNXBackend) ExtractFaces(_ context.Context, imageData []byte) ([]Face, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	b.mu.Lock()
	defer b.mu.Unlock()

	detInput := preprocessForDetection(img, b.detector.inputW, b.detector.inputH)
	detections, err := b.detector.Detect(detInput, origW, origH)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	faces := make([]Face, 0, len(detections))
	for _, det := range detections {
		crop := cropFace(img, det.BBox)
		if crop == nil {
			continue
		}

		embInput := preprocessForEmbedding(crop, b.embedder.inputW, b.embedder.inputH)
		embedding, err := b.embedder.Extract(embInput)
		if err != nil {
			return nil, fmt.Errorf("embed: %w", err)
		}

		faces = append(faces, Face{
			Embedding:  embedding,
			Confidence: det.Confidence,
			Area:       areaFromBBox(det.BBox, origW, origH),
		})
	}

	return faces, nil
}

func (b *ONNXBackend) Dimension() int {
	return EmbeddingDim
}

// Close releases the ONNX sessions.
func (b *ONNXBackend) Close() {
	if b.detector != nil {
		b.detector.Close()
	}
	if b.embedder != nil {
		b.embedder.Close()
	}
}

// areaFromBBox converts a corner-coded box into the x/y/w/h payload form.
func areaFromBBox(bbox [4]float32, origW, origH int) models.FacialArea {
	x1 := int(clampF(bbox[0], 0, float32(origW)))
	y1 := int(clampF(bbox[1], 0, float32(origH)))
	x2 := int(clampF(bbox[2], 0, float32(origW)))
	y2 := int(clampF(bbox[3], 0, float32(origH)))
	return models.FacialArea{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

package vision

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/faceworker/internal/config"
)

func onnxLibPath() string {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}

func loadBackend(t *testing.T) *ONNXBackend {
	t.Helper()
	modelsDir := os.Getenv("FW_MODELS_DIR")
	if modelsDir == "" {
		modelsDir = filepath.Join("..", "..", "models")
	}
	if _, err := os.Stat(filepath.Join(modelsDir, "det_10g.onnx")); err != nil {
		t.Skip("model files not available")
	}

	ort.SetSharedLibraryPath(onnxLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		t.Skipf("onnx runtime not available: %v", err)
	}
	t.Cleanup(func() { ort.DestroyEnvironment() })

	backend, err := NewONNXBackend(config.VisionConfig{
		ModelsDir:          modelsDir,
		DetectionThreshold: 0.3,
	})
	require.NoError(t, err)
	t.Cleanup(backend.Close)
	return backend
}

func solidPNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 320))
	for y := 0; y < 320; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// Distinct images extracted concurrently must each produce the same
// result as a serial run; the worker pool calls a single shared backend
// from several goroutines.
func TestExtractFacesConcurrent(t *testing.T) {
	backend := loadBackend(t)
	ctx := context.Background()

	images := [][]byte{
		solidPNG(t, color.RGBA{R: 255, A: 255}),
		solidPNG(t, color.RGBA{G: 255, A: 255}),
		solidPNG(t, color.RGBA{B: 255, A: 255}),
	}

	baseline := make([]int, len(images))
	for i, data := range images {
		faces, err := backend.ExtractFaces(ctx, data)
		require.NoError(t, err)
		baseline[i] = len(faces)
	}

	const rounds = 10
	var wg sync.WaitGroup
	errs := make(chan error, len(images)*rounds)
	for r := 0; r < rounds; r++ {
		for i, data := range images {
			wg.Add(1)
			go func(i int, data []byte) {
				defer wg.Done()
				faces, err := backend.ExtractFaces(ctx, data)
				if err != nil {
					errs <- err
					return
				}
				assert.Equal(t, baseline[i], len(faces))
			}(i, data)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent extract: %v", err)
	}
}

func TestDimension(t *testing.T) {
	b := &ONNXBackend{}
	assert.Equal(t, EmbeddingDim, b.Dimension())
}

package vision

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestThumbnailDownscales(t *testing.T) {
	data, err := Thumbnail(encodePNG(t, 200, 100), 50)
	require.NoError(t, err)

	w, h := decodeSize(t, data)
	assert.Equal(t, 50, w)
	assert.Equal(t, 25, h)
}

func TestThumbnailPortrait(t *testing.T) {
	data, err := Thumbnail(encodePNG(t, 100, 400), 100)
	require.NoError(t, err)

	w, h := decodeSize(t, data)
	assert.Equal(t, 25, w)
	assert.Equal(t, 100, h)
}

func TestThumbnailNoUpscale(t *testing.T) {
	data, err := Thumbnail(encodePNG(t, 30, 20), 100)
	require.NoError(t, err)

	w, h := decodeSize(t, data)
	assert.Equal(t, 30, w)
	assert.Equal(t, 20, h)
}

func TestThumbnailInvalidData(t *testing.T) {
	_, err := Thumbnail([]byte("not an image"), 100)
	assert.Error(t, err)
}

func TestResizeImage(t *testing.T) {
	img := resizeImage(image.NewRGBA(image.Rect(0, 0, 64, 64)), 16, 8)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
}

func TestCropFace(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 100))

	crop := cropFace(src, [4]float32{40, 40, 60, 60})
	require.NotNil(t, crop)
	// 20px box plus 10% padding on each side.
	assert.Equal(t, 24, crop.Bounds().Dx())
	assert.Equal(t, 24, crop.Bounds().Dy())

	// Padding clamps at image edges.
	crop = cropFace(src, [4]float32{0, 0, 20, 20})
	require.NotNil(t, crop)
	assert.Equal(t, 22, crop.Bounds().Dx())

	// Degenerate boxes yield nothing.
	assert.Nil(t, cropFace(src, [4]float32{50, 50, 50, 50}))
	assert.Nil(t, cropFace(src, [4]float32{60, 60, 40, 40}))
}

func TestPreprocessNormalization(t *testing.T) {
	// A black image maps every channel to (0 - 127.5) / 128.
	data := preprocessForDetection(image.NewRGBA(image.Rect(0, 0, 4, 4)), 2, 2)
	require.Len(t, data, 3*2*2)
	for _, v := range data {
		assert.InDelta(t, -127.5/128.0, v, 1e-5)
	}
}

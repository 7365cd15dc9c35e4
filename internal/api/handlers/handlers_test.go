package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/faceworker/internal/cluster"
	"github.com/your-org/faceworker/internal/config"
	"github.com/your-org/faceworker/internal/digest"
	"github.com/your-org/faceworker/internal/models"
	"github.com/your-org/faceworker/internal/registry"
	"github.com/your-org/faceworker/internal/source"
	"github.com/your-org/faceworker/internal/vision"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type noopStore struct{}

func (noopStore) EnsureCollection(context.Context, string, int) error { return nil }
func (noopStore) UpsertPoints(context.Context, string, []models.FacePoint) error {
	return nil
}

type noopBackend struct{}

func (noopBackend) ExtractFaces(context.Context, []byte) ([]vision.Face, error) { return nil, nil }
func (noopBackend) Dimension() int                                              { return 4 }

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func digestRouter(t *testing.T, s3Enabled bool) (*gin.Engine, *registry.Registry[models.DigestJob]) {
	t.Helper()
	jobs := registry.New[models.DigestJob]()
	controller := digest.NewController(
		jobs, noopStore{}, noopBackend{}, source.NewEnumerator(nil), nil, nil,
		config.DigestConfig{DefaultCollection: "face_embeddings", Threads: 1, MaxRetries: 2},
	)
	h := NewDigestHandler(controller, jobs, s3Enabled)

	r := gin.New()
	r.POST("/v1/digest", h.Submit)
	r.GET("/v1/digest", h.List)
	r.GET("/v1/digest/:id", h.Get)
	return r, jobs
}

func TestDigestSubmitSourceValidation(t *testing.T) {
	r, _ := digestRouter(t, true)

	// Neither source.
	w := postJSON(t, r, "/v1/digest", gin.H{"group_id": "g"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "exactly one")

	// Both sources.
	w = postJSON(t, r, "/v1/digest", gin.H{
		"group_id":       "g",
		"local_dir_path": "/tmp/photos",
		"s3_bucket":      "pics",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "exactly one")
}

func TestDigestSubmitRequiresGroupID(t *testing.T) {
	r, _ := digestRouter(t, true)

	w := postJSON(t, r, "/v1/digest", gin.H{"local_dir_path": "/tmp/photos"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDigestSubmitS3Disabled(t *testing.T) {
	r, _ := digestRouter(t, false)

	w := postJSON(t, r, "/v1/digest", gin.H{"group_id": "g", "s3_bucket": "pics"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not configured")
}

func TestDigestSubmitOutOfRangeParams(t *testing.T) {
	r, jobs := digestRouter(t, true)

	w := postJSON(t, r, "/v1/digest", gin.H{
		"group_id":       "g",
		"local_dir_path": "/tmp/photos",
		"max_retries":    -1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "max_retries")

	w = postJSON(t, r, "/v1/digest", gin.H{
		"group_id":       "g",
		"local_dir_path": "/tmp/photos",
		"confidence":     1.5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "confidence")

	assert.Zero(t, jobs.Len())
}

func TestDigestSubmitBadCollection(t *testing.T) {
	r, _ := digestRouter(t, true)

	w := postJSON(t, r, "/v1/digest", gin.H{
		"group_id":       "g",
		"local_dir_path": "/tmp/photos",
		"collection":     "bad-name!",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid collection name")
}

func TestDigestSubmitAndInspect(t *testing.T) {
	r, _ := digestRouter(t, false)

	w := postJSON(t, r, "/v1/digest", gin.H{
		"group_id":       "g",
		"local_dir_path": t.TempDir(),
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.NotEmpty(t, accepted.JobID)
	assert.Equal(t, "queued", accepted.Status)

	w = get(r, "/v1/digest/"+accepted.JobID)
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(r, "/v1/digest")
	assert.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
}

func TestDigestGetNotFound(t *testing.T) {
	r, _ := digestRouter(t, true)

	w := get(r, "/v1/digest/digest-nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func clusterRouter(t *testing.T) *gin.Engine {
	t.Helper()
	jobs := registry.New[models.ClusterJob]()
	engine := cluster.NewEngine(jobs, nil, nil, config.ClusterConfig{Confidence: 0.8, PageSize: 100}, "face_embeddings")
	h := NewClusterHandler(engine, jobs)

	r := gin.New()
	r.POST("/v1/cluster", h.Submit)
	r.GET("/v1/cluster/:id", h.Get)
	return r
}

func TestClusterSubmitRequiresGroupID(t *testing.T) {
	r := clusterRouter(t)

	w := postJSON(t, r, "/v1/cluster", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClusterSubmitBadCollection(t *testing.T) {
	r := clusterRouter(t)

	w := postJSON(t, r, "/v1/cluster", gin.H{"group_id": "g", "collection": "no spaces"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClusterGetNotFound(t *testing.T) {
	r := clusterRouter(t)

	w := get(r, "/v1/cluster/cluster-nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func searchRouter() *gin.Engine {
	h := NewSearchHandler(nil, noopBackend{}, "face_embeddings", 0.5)
	r := gin.New()
	r.POST("/v1/search", h.Search)
	return r
}

func TestSearchQueryValidation(t *testing.T) {
	r := searchRouter()

	// Neither embedding nor image.
	w := postJSON(t, r, "/v1/search", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "exactly one")

	// Both.
	w = postJSON(t, r, "/v1/search", gin.H{
		"embedding": []float32{1, 0, 0, 0},
		"image_b64": "aGVsbG8=",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Wrong dimension.
	w = postJSON(t, r, "/v1/search", gin.H{"embedding": []float32{1, 0}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "dimension")

	// Invalid base64.
	w = postJSON(t, r, "/v1/search", gin.H{"image_b64": "!!!not-base64!!!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Bad collection.
	w = postJSON(t, r, "/v1/search", gin.H{
		"embedding":  []float32{1, 0, 0, 0},
		"collection": "bad name",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	h := NewSystemHandler(nil, nil, nil)
	r := gin.New()
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	w := get(r, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)

	// All dependencies nil: everything reports disabled but ready.
	w = get(r, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "disabled")
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error {
	return assert.AnError
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func TestReadyzFailingDependency(t *testing.T) {
	h := NewSystemHandler(okPinger{}, failingPinger{}, nil)
	r := gin.New()
	r.GET("/readyz", h.Readyz)

	w := get(r, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

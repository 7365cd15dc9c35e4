package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/faceworker/internal/api"
	"github.com/your-org/faceworker/internal/api/handlers"
	"github.com/your-org/faceworker/internal/api/ws"
	"github.com/your-org/faceworker/internal/cluster"
	"github.com/your-org/faceworker/internal/config"
	"github.com/your-org/faceworker/internal/digest"
	"github.com/your-org/faceworker/internal/models"
	"github.com/your-org/faceworker/internal/observability"
	"github.com/your-org/faceworker/internal/queue"
	"github.com/your-org/faceworker/internal/registry"
	"github.com/your-org/faceworker/internal/source"
	"github.com/your-org/faceworker/internal/storage"
	"github.com/your-org/faceworker/internal/vision"
	"github.com/your-org/faceworker/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting faceworker", "port", cfg.Server.Port)

	// Initialize ONNX Runtime
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	backend, err := vision.NewONNXBackend(cfg.Vision)
	if err != nil {
		slog.Error("load vision models", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	// Connect to Postgres
	db, err := storage.NewVectorStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO (optional: without it only local sources work)
	var objStore *storage.ObjectStore
	if cfg.MinIO.Endpoint != "" {
		objStore, err = storage.NewObjectStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("object storage disabled, s3 sources unavailable")
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to NATS (optional: without it job events stay in-process)
	var producer *queue.Producer
	if cfg.NATS.URL != "" {
		producer, err = queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		if err := producer.EnsureStreams(ctx); err != nil {
			slog.Warn("ensure nats streams", "error", err)
		}

		consumer, err := queue.NewConsumer(cfg.NATS.URL)
		if err != nil {
			slog.Error("create event consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()

		err = consumer.ConsumeJobs(ctx, "ws-bridge", func(_ context.Context, msg jetstream.Msg) error {
			var evt dto.JobEvent
			if err := json.Unmarshal(msg.Data(), &evt); err != nil {
				return err
			}
			hub.BroadcastJobEvent(&evt)
			return nil
		})
		if err != nil {
			slog.Warn("start event consumer", "error", err)
		}
	} else {
		slog.Info("nats disabled, job events delivered in-process only")
	}

	notifier := &jobEventPublisher{producer: producer, hub: hub}

	// Job pipelines
	digestJobs := registry.New[models.DigestJob]()
	clusterJobs := registry.New[models.ClusterJob]()

	var lister source.ObjectLister
	var thumbs digest.ThumbnailStore
	if objStore != nil {
		lister = objStore
		thumbs = objStore
	}
	enum := source.NewEnumerator(lister)

	controller := digest.NewController(digestJobs, db, backend, enum, thumbs, notifier, cfg.Digest)
	engine := cluster.NewEngine(clusterJobs, db, notifier, cfg.Cluster, cfg.Digest.DefaultCollection)

	// HTTP surface
	var objPinger, eventsPinger handlers.Pinger
	if objStore != nil {
		objPinger = objStore
	}
	if producer != nil {
		eventsPinger = producer
	}

	router := api.NewRouter(api.RouterConfig{
		Digest:  handlers.NewDigestHandler(controller, digestJobs, objStore != nil),
		Cluster: handlers.NewClusterHandler(engine, clusterJobs),
		Search:  handlers.NewSearchHandler(db, backend, cfg.Digest.DefaultCollection, cfg.Digest.Confidence),
		System:  handlers.NewSystemHandler(db, objPinger, eventsPinger),
		Hub:     hub,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("faceworker ready", "addr", srv.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
}

// jobEventPublisher fans job events out to NATS when configured,
// otherwise straight to the local WebSocket hub. Publishing must not
// block the job pipelines.
type jobEventPublisher struct {
	producer *queue.Producer
	hub      *ws.Hub
}

func (p *jobEventPublisher) Publish(evt dto.JobEvent) {
	if p.producer == nil {
		p.hub.BroadcastJobEvent(&evt)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.producer.PublishJobEvent(ctx, evt); err != nil {
			slog.Warn("publish job event", "job_id", evt.JobID, "error", err)
		}
	}()
}

// getONNXLibPath returns the ONNX Runtime shared library path
// based on the operating system.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}

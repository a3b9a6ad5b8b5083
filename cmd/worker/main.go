package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nfnt/resize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sefazor/ourphotos-resizer/internal/config"
	"github.com/sefazor/ourphotos-resizer/internal/metrics"
	"github.com/sefazor/ourphotos-resizer/internal/service"
	"github.com/sefazor/ourphotos-resizer/internal/worker"
	"github.com/sefazor/ourphotos-resizer/pkg/imaging"
	"github.com/sefazor/ourphotos-resizer/pkg/logger"
	"github.com/sefazor/ourphotos-resizer/pkg/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer zl.Sync()

	if err := cfg.ValidateQueue(); err != nil {
		zl.Fatal("Failed to load worker config", zap.Error(err))
	}
	if cfg.Queue.URL == "" && !cfg.Queue.Backfill {
		zl.Fatal("nothing to do: set AMQP_URL or WORKER_BACKFILL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s3Client, err := storage.NewS3Client(ctx, cfg.Storage)
	if err != nil {
		zl.Fatal("Failed to initialize S3 client", zap.Error(err))
	}
	source := storage.NewS3Storage(s3Client, cfg.Storage.SourceBucket, zl)
	target := storage.NewS3Storage(s3Client, cfg.Storage.TargetBucket, zl)

	resizer := imaging.NewResizer(imaging.Options{
		Interpolation: resize.InterpolationFunction(cfg.Resize.Interpolation),
		JPEGQuality:   cfg.Resize.JPEGQuality,
		MaxDimension:  cfg.Resize.MaxDimension,
		MaxPixels:     cfg.Resize.MaxPixels,
	})
	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	resizeService := service.NewResizeService(source, target, resizer, cfg, zl, m)
	w := worker.NewWorker(resizeService, source, cfg, zl, m)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Queue.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Queue.MetricsAddr, Handler: mux}

		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.Queue.Backfill {
		g.Go(func() error {
			err := w.Backfill(ctx)
			if cfg.Queue.URL == "" {
				// backfill only
				stop()
			}
			return err
		})
	}

	if cfg.Queue.URL != "" {
		receiver, err := worker.NewRMQReceiver(cfg.Queue)
		if err != nil {
			zl.Fatal("Failed to connect to rabbitMQ", zap.Error(err))
		}
		defer func() {
			if err := receiver.Closer(); err != nil {
				zl.Warn("failed to close rabbitMQ receiver", zap.Error(err))
			}
		}()

		msgs, err := receiver.GetMessageChan()
		if err != nil {
			zl.Fatal("Failed to consume origin events", zap.Error(err))
		}

		g.Go(func() error {
			zl.Info("consuming origin events", zap.String("queue", cfg.Queue.QueueName))
			return w.Run(ctx, msgs)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zl.Error("worker stopped", zap.Error(err))
	}
}

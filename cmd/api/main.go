package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nfnt/resize"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sefazor/ourphotos-resizer/internal/config"
	"github.com/sefazor/ourphotos-resizer/internal/handler"
	"github.com/sefazor/ourphotos-resizer/internal/metrics"
	"github.com/sefazor/ourphotos-resizer/internal/service"
	"github.com/sefazor/ourphotos-resizer/pkg/imaging"
	"github.com/sefazor/ourphotos-resizer/pkg/logger"
	"github.com/sefazor/ourphotos-resizer/pkg/storage"
	"github.com/sefazor/ourphotos-resizer/pkg/utils"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage services
	s3Client, err := storage.NewS3Client(ctx, cfg.Storage)
	if err != nil {
		zl.Fatal("Failed to initialize S3 client", zap.Error(err))
	}
	source := storage.NewS3Storage(s3Client, cfg.Storage.SourceBucket, zl)
	target := storage.NewS3Storage(s3Client, cfg.Storage.TargetBucket, zl)

	// Services
	resizer := imaging.NewResizer(imaging.Options{
		Interpolation: resize.InterpolationFunction(cfg.Resize.Interpolation),
		JPEGQuality:   cfg.Resize.JPEGQuality,
		MaxDimension:  cfg.Resize.MaxDimension,
		MaxPixels:     cfg.Resize.MaxPixels,
	})
	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	resizeService := service.NewResizeService(source, target, resizer, cfg, zl, m)

	// Handlers
	resizeHandler := handler.NewResizeHandler(resizeService, utils.NewValidator())
	app := handler.NewApp(cfg, zl, resizeHandler, prometheus.DefaultGatherer)

	go func() {
		zl.Info("resizer listening",
			zap.String("port", cfg.Server.Port),
			zap.String("source_bucket", source.Bucket()),
			zap.String("target_bucket", target.Bucket()),
		)
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			zl.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zl.Error("graceful shutdown failed", zap.Error(err))
	}
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/sefazor/ourphotos-resizer/internal/config"
	"github.com/sefazor/ourphotos-resizer/internal/metrics"
	"github.com/sefazor/ourphotos-resizer/internal/models"
	"github.com/sefazor/ourphotos-resizer/pkg/storage"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrDeliveriesClosed is returned by Run when the broker stops delivering.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

type VariantGenerator interface {
	EnsureVariant(ctx context.Context, requested string) (bool, error)
}

// Worker pre-generates the configured resolutions for every original
// written to the source bucket.
type Worker struct {
	generator    VariantGenerator
	lister       storage.ObjectLister
	sourceBucket string
	sameBucket   bool
	resolutions  []models.Resolution
	concurrency  int
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

func NewWorker(
	generator VariantGenerator,
	lister storage.ObjectLister,
	cfg *config.Config,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Worker {
	concurrency := cfg.Queue.Prefetch
	if concurrency < 1 {
		concurrency = 1
	}

	return &Worker{
		generator:    generator,
		lister:       lister,
		sourceBucket: cfg.Storage.SourceBucket,
		sameBucket:   cfg.Storage.SourceBucket == cfg.Storage.TargetBucket,
		resolutions:  cfg.Queue.Resolutions,
		concurrency:  concurrency,
		logger:       logger,
		metrics:      m,
	}
}

// Run consumes msgs until ctx is done or the channel closes. Every delivery
// is acked, failed ones included; a broken original would otherwise be
// redelivered forever.
func (w *Worker) Run(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return ErrDeliveriesClosed
			}

			if err := w.ProcessMessage(ctx, d.Body); err != nil {
				w.logger.Warn("failed to process rabbitMQ message", zap.Error(err))
			}

			if err := d.Ack(false); err != nil {
				w.logger.Error("failed to ack to rabbitMQ", zap.Error(err))
			}
		}
	}
}

// ProcessMessage handles one bucket notification document.
func (w *Worker) ProcessMessage(ctx context.Context, body []byte) error {
	var event models.StorageEvent
	if err := json.Unmarshal(body, &event); err != nil {
		w.metrics.CountWorkerEvent(metrics.ResultFailed)
		return fmt.Errorf("unmarshal storage event: %w", err)
	}

	var errs []error
	for _, rec := range event.Records {
		if !rec.IsObjectCreated() {
			w.metrics.CountWorkerEvent(metrics.ResultIgnored)
			continue
		}
		if rec.S3.Bucket.Name != "" && rec.S3.Bucket.Name != w.sourceBucket {
			w.metrics.CountWorkerEvent(metrics.ResultIgnored)
			continue
		}

		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			w.metrics.CountWorkerEvent(metrics.ResultFailed)
			errs = append(errs, fmt.Errorf("unescape key %q: %w", rec.S3.Object.Key, err))
			continue
		}

		if err := w.Pregenerate(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Pregenerate makes sure every configured resolution of key exists.
func (w *Worker) Pregenerate(ctx context.Context, key string) error {
	l := w.logger.With(zap.String("original", key))

	if w.sameBucket {
		// variants land next to originals; do not resize our own output
		if _, _, err := models.ParseRequestedFilename(key); err == nil {
			w.metrics.CountWorkerEvent(metrics.ResultIgnored)
			return nil
		}
	}

	var errs []error
	for _, res := range w.resolutions {
		requested := models.FormatRequestedFilename(res, key)

		created, err := w.generator.EnsureVariant(ctx, requested)
		switch {
		case err != nil:
			w.metrics.CountWorkerEvent(metrics.ResultFailed)
			l.Warn("unable to pre-generate variant", zap.String("resolution", res.String()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", requested, err))
		case created:
			w.metrics.CountWorkerEvent(metrics.ResultGenerated)
		default:
			w.metrics.CountWorkerEvent(metrics.ResultSkipped)
		}
	}

	return errors.Join(errs...)
}

// Backfill walks the whole source bucket and pre-generates missing variants.
// Individual failures are logged and do not stop the walk.
func (w *Worker) Backfill(ctx context.Context) error {
	keys, err := w.lister.List(ctx, "")
	if err != nil {
		return fmt.Errorf("list source bucket: %w", err)
	}

	w.logger.Info("backfill started", zap.Int("originals", len(keys)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, key := range keys {
		if gctx.Err() != nil {
			break
		}
		key := key
		g.Go(func() error {
			if err := w.Pregenerate(gctx, key); err != nil {
				w.logger.Warn("backfill failed for original", zap.String("original", key), zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	w.logger.Info("backfill finished", zap.Int("originals", len(keys)))
	return ctx.Err()
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sefazor/ourphotos-resizer/internal/config"
	"github.com/sefazor/ourphotos-resizer/internal/metrics"
	"github.com/sefazor/ourphotos-resizer/internal/models"
	"github.com/sefazor/ourphotos-resizer/pkg/imaging"
	"github.com/sefazor/ourphotos-resizer/pkg/storage"
	"go.uber.org/zap"
)

// OriginStore is the bucket originals are read from.
type OriginStore interface {
	storage.ObjectReader
}

// VariantStore is the bucket resized variants are written to.
type VariantStore interface {
	storage.ObjectReader
	storage.ObjectWriter
}

type ImageResizer interface {
	Resize(ctx context.Context, data []byte, width, height uint) (*imaging.Image, error)
}

type ResizeService struct {
	source       OriginStore
	target       VariantStore
	resizer      ImageResizer
	publicURL    string
	cacheControl string
	timeout      time.Duration
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

func NewResizeService(
	source OriginStore,
	target VariantStore,
	resizer ImageResizer,
	cfg *config.Config,
	logger *zap.Logger,
	m *metrics.Metrics,
) *ResizeService {
	return &ResizeService{
		source:       source,
		target:       target,
		resizer:      resizer,
		publicURL:    strings.TrimRight(cfg.PublicURL, "/"),
		cacheControl: cfg.Storage.CacheControl,
		timeout:      cfg.Server.RequestTimeout,
		logger:       logger,
		metrics:      m,
	}
}

// Resize runs parse, fetch, resize and write for one requested filename and
// returns the public URL of the written variant. The first failing stage
// ends the run; nothing is retried.
func (s *ResizeService) Resize(ctx context.Context, requested string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	l := s.logger.With(zap.String("requested_filename", requested))

	res, basename, err := models.ParseRequestedFilename(requested)
	if err != nil {
		s.metrics.CountOutcome(metrics.OutcomeMalformedFilename)
		l.Info("rejected requested filename", zap.Error(err))
		return "", err
	}

	if err := s.generate(ctx, l, requested, basename, res); err != nil {
		s.metrics.CountOutcome(outcomeFor(err))
		return "", err
	}

	location := s.PublicURL(requested)
	s.metrics.CountOutcome(metrics.OutcomeRedirected)
	l.Info("new file created",
		zap.String("resolution", res.String()),
		zap.String("location", location),
	)

	return location, nil
}

// EnsureVariant generates requested only if the destination store does not
// already hold it. It reports whether a new variant was written.
func (s *ResizeService) EnsureVariant(ctx context.Context, requested string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	l := s.logger.With(zap.String("requested_filename", requested))

	res, basename, err := models.ParseRequestedFilename(requested)
	if err != nil {
		return false, err
	}

	exists, err := s.target.Exists(ctx, requested)
	if err != nil {
		return false, fmt.Errorf("check variant existence: %w", err)
	}
	if exists {
		l.Debug("variant already exists")
		return false, nil
	}

	if err := s.generate(ctx, l, requested, basename, res); err != nil {
		return false, err
	}

	l.Info("variant pre-generated", zap.String("resolution", res.String()))
	return true, nil
}

// PublicURL is where the variant stored under requested is served from.
func (s *ResizeService) PublicURL(requested string) string {
	segments := strings.Split(requested, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.publicURL + "/" + strings.Join(segments, "/")
}

func (s *ResizeService) generate(ctx context.Context, l *zap.Logger, requested, basename string, res models.Resolution) error {
	original, err := s.fetchOrigin(ctx, basename)
	if err != nil {
		l.Warn("unable to get the original file", zap.String("original", basename), zap.Error(err))
		return err
	}

	img, err := s.resize(ctx, original, res)
	if err != nil {
		l.Warn("unable to resize the original file", zap.String("original", basename), zap.Error(err))
		return err
	}

	if err := s.writeTarget(ctx, requested, img); err != nil {
		l.Error("unable to save the resized file", zap.Error(err))
		return err
	}

	return nil
}

func (s *ResizeService) fetchOrigin(ctx context.Context, basename string) ([]byte, error) {
	defer s.metrics.ObserveStage(metrics.StageFetch, time.Now())

	data, err := s.source.Get(ctx, basename)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrOriginalNotFound, basename)
		}
		return nil, fmt.Errorf("%w: %w", models.ErrFetchFailed, err)
	}
	return data, nil
}

func (s *ResizeService) resize(ctx context.Context, original []byte, res models.Resolution) (*imaging.Image, error) {
	defer s.metrics.ObserveStage(metrics.StageResize, time.Now())

	img, err := s.resizer.Resize(ctx, original, res.Width, res.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrResizeFailed, err)
	}
	return img, nil
}

func (s *ResizeService) writeTarget(ctx context.Context, requested string, img *imaging.Image) error {
	defer s.metrics.ObserveStage(metrics.StageWrite, time.Now())

	err := s.target.Put(ctx, requested, img.Data, storage.PutOptions{
		ContentType:  img.ContentType,
		CacheControl: s.cacheControl,
		Public:       true,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrWriteFailed, err)
	}

	s.metrics.BytesWritten.Add(float64(len(img.Data)))
	return nil
}

func (s *ResizeService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeTimeout
	case errors.Is(err, models.ErrOriginalNotFound):
		return metrics.OutcomeOriginalNotFound
	case errors.Is(err, models.ErrFetchFailed):
		return metrics.OutcomeFetchFailed
	case errors.Is(err, models.ErrResizeFailed):
		return metrics.OutcomeResizeFailed
	case errors.Is(err, models.ErrWriteFailed):
		return metrics.OutcomeWriteFailed
	default:
		return metrics.OutcomeFailed
	}
}

package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	// MsgLongURLRequired is returned when a create request has no destination.
	MsgLongURLRequired = "A Destination Long URL was not supplied."
	// MsgKeyRequired is returned when an operation needs a key and got none.
	MsgKeyRequired = "No Short URL was supplied."
	// MsgInvalidKey is returned for custom keys that cannot be used in a path.
	MsgInvalidKey = "The requested Short URL contains characters that are not allowed."
)

// ShortenRequest asks for a new short link.
type ShortenRequest struct {
	LongURL   string `validate:"required"`
	CustomKey string `validate:"omitempty,max=64,excludesall=/?#% "`
}

// ShortLink is the result of a successful Shorten.
type ShortLink struct {
	Key      Key
	URLID    int64
	LongURL  string
	ShortURL string
	Custom   bool
}

// Service coordinates the directory, allocator and ledger.
type Service struct {
	directory Directory
	ledger    Ledger
	allocator *Allocator
	validate  *validator.Validate
	baseURL   string
	timeout   time.Duration
	recorder  Recorder
	logger    *zap.Logger
	allocOpts []AllocatorOption
}

// Option configures a Service.
type Option func(*Service)

// WithBaseURL sets the address short keys are appended to.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) {
		s.baseURL = baseURL
	}
}

// WithOperationTimeout bounds each operation as a whole.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithServiceRecorder reports allocations and clicks to r.
func WithServiceRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
		s.allocOpts = append(s.allocOpts, WithRecorder(r))
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
		s.allocOpts = append(s.allocOpts, WithAllocatorLogger(logger))
	}
}

// WithAllocationRetries overrides the allocator retry bound.
func WithAllocationRetries(n int) Option {
	return func(s *Service) {
		s.allocOpts = append(s.allocOpts, WithMaxRetries(n))
	}
}

// NewService creates a service over directory and ledger.
func NewService(directory Directory, ledger Ledger, opts ...Option) *Service {
	s := &Service{
		directory: directory,
		ledger:    ledger,
		validate:  validator.New(),
		recorder:  NopRecorder{},
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.allocator = NewAllocator(directory, s.allocOpts...)

	return s
}

// BaseURL returns the configured short link prefix.
func (s *Service) BaseURL() string {
	return s.baseURL
}

// Shorten registers the long URL (once per distinct string) and allocates a key for it.
func (s *Service) Shorten(ctx context.Context, req ShortenRequest) (*ShortLink, error) {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	raw := req.CustomKey
	if raw != "" {
		req.CustomKey = string(ParseKey(raw, s.baseURL))
		if req.CustomKey == "" {
			return nil, &ValidationError{Field: "src_url", Message: MsgInvalidKey}
		}
	}

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	urlID, err := s.directory.RegisterURL(ctx, req.LongURL)
	if err != nil {
		return nil, err
	}

	key, err := s.allocator.Allocate(ctx, urlID, Key(req.CustomKey))
	if err != nil {
		return nil, err
	}

	s.logger.Info("short url created",
		zap.String("key", string(key)),
		zap.Int64("urlId", urlID),
		zap.Bool("custom", req.CustomKey != ""),
	)

	return &ShortLink{
		Key:      key,
		URLID:    urlID,
		LongURL:  req.LongURL,
		ShortURL: ShortURL(s.baseURL, key),
		Custom:   req.CustomKey != "",
	}, nil
}

// Lookup returns the active allocation for key.
func (s *Service) Lookup(ctx context.Context, key Key) (*Resolution, error) {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	return s.resolveActive(ctx, key)
}

// Delete tombstones key. Deleting an already deleted key succeeds without change.
func (s *Service) Delete(ctx context.Context, key Key) error {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	if key == "" {
		return &ValidationError{Field: "key", Message: MsgKeyRequired}
	}

	if err := s.directory.Tombstone(ctx, key); err != nil {
		return err
	}

	s.logger.Info("short url deleted", zap.String("key", string(key)))

	return nil
}

// Visit resolves an active key and records one click for it.
func (s *Service) Visit(ctx context.Context, key Key, meta ClickMeta) (*Resolution, error) {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	res, err := s.resolveActive(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.RecordClick(ctx, res.ID, meta); err != nil {
		if errors.Is(err, ErrDeleted) {
			// Tombstoned between resolve and record.
			return nil, s.deletedSince(ctx, key, err)
		}

		return nil, err
	}

	s.recorder.Click()

	return res, nil
}

// Statistics returns the click count of an active key.
func (s *Service) Statistics(ctx context.Context, key Key) (*Statistics, error) {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	if key == "" {
		return nil, &ValidationError{Field: "key", Message: MsgKeyRequired}
	}

	stats, err := s.ledger.Statistics(ctx, key)
	if err != nil {
		return nil, err
	}

	if stats.IsDeleted {
		return nil, deletedError(&stats.Resolution)
	}

	return stats, nil
}

// Clicks lists the recorded clicks of an active key, most recent first.
func (s *Service) Clicks(ctx context.Context, key Key) ([]Hit, error) {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	res, err := s.resolveActive(ctx, key)
	if err != nil {
		return nil, err
	}

	return s.ledger.Hits(ctx, res.ID)
}

func (s *Service) resolveActive(ctx context.Context, key Key) (*Resolution, error) {
	if key == "" {
		return nil, &ValidationError{Field: "key", Message: MsgKeyRequired}
	}

	res, err := s.directory.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	if res.IsDeleted {
		return nil, deletedError(res)
	}

	return res, nil
}

func (s *Service) deletedSince(ctx context.Context, key Key, fallback error) error {
	res, err := s.directory.Resolve(ctx, key)
	if err != nil || !res.IsDeleted {
		return fallback
	}

	return deletedError(res)
}

func (s *Service) validateRequest(req ShortenRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	switch fieldErrs[0].Field() {
	case "LongURL":
		return &ValidationError{Field: "dest_url", Message: MsgLongURLRequired}
	default:
		return &ValidationError{Field: "src_url", Message: MsgInvalidKey}
	}
}

func (s *Service) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, s.timeout)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/turl/internal/analytics"
	"github.com/serroba/turl/internal/shortener"
	"go.uber.org/zap"
)

// Shortener is the service behind the URL endpoints.
type Shortener interface {
	Shorten(ctx context.Context, req shortener.ShortenRequest) (*shortener.ShortLink, error)
	Lookup(ctx context.Context, key shortener.Key) (*shortener.Resolution, error)
	Delete(ctx context.Context, key shortener.Key) error
	Visit(ctx context.Context, key shortener.Key, meta shortener.ClickMeta) (*shortener.Resolution, error)
	Statistics(ctx context.Context, key shortener.Key) (*shortener.Statistics, error)
	Clicks(ctx context.Context, key shortener.Key) ([]shortener.Hit, error)
}

// URLHandler handles URL shortening operations.
type URLHandler struct {
	service Shortener
	publish analytics.Publishers
	logger  *zap.Logger
	now     func() time.Time
}

// NewURLHandler creates a new URL handler.
func NewURLHandler(service Shortener, publishers analytics.Publishers, logger *zap.Logger) *URLHandler {
	return &URLHandler{
		service: service,
		publish: publishers,
		logger:  logger,
		now:     time.Now,
	}
}

type requestMetaKey struct{}

// RequestMeta holds HTTP request metadata for analytics.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
	Referrer  string
}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return v
	}

	return RequestMeta{}
}

// ClickMeta converts request metadata into what the click ledger stores.
func (m RequestMeta) ClickMeta() shortener.ClickMeta {
	var meta shortener.ClickMeta

	if m.ClientIP != "" {
		ip := m.ClientIP
		meta.IPAddress = &ip
	}

	if m.UserAgent != "" {
		ua := m.UserAgent
		meta.UserAgent = &ua
	}

	return meta
}

type createPayload struct {
	DestURL string `json:"dest_url"`
	SrcURL  string `json:"src_url"`
}

func decodeCreatePayload(contentType string, body []byte) (createPayload, error) {
	var payload createPayload

	mediaType, _, _ := mime.ParseMediaType(contentType)

	switch mediaType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return payload, fmt.Errorf("decode form body: %w", err)
		}

		payload.DestURL = values.Get("dest_url")
		payload.SrcURL = values.Get("src_url")
	default:
		if len(body) == 0 {
			return payload, nil
		}

		if err := json.Unmarshal(body, &payload); err != nil {
			return payload, fmt.Errorf("decode json body: %w", err)
		}
	}

	return payload, nil
}

func (h *URLHandler) CreateShortURL(ctx context.Context, req *CreateShortURLRequest) (*CreateShortURLResponse, error) {
	payload, err := decodeCreatePayload(req.ContentType, req.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	link, err := h.service.Shorten(ctx, shortener.ShortenRequest{
		LongURL:   payload.DestURL,
		CustomKey: payload.SrcURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, shortener.ErrValidation):
			return nil, huma.Error400BadRequest(err.Error())
		case errors.Is(err, shortener.ErrConflict):
			return nil, huma.Error400BadRequest(shortener.MsgConflict)
		default:
			h.logger.Error("failed to create short url", zap.Error(err))

			return nil, huma.Error500InternalServerError("failed to create short url")
		}
	}

	meta := RequestMetaFromContext(ctx)
	event := &analytics.URLCreatedEvent{
		Key:       string(link.Key),
		ShortURL:  link.ShortURL,
		LongURL:   link.LongURL,
		URLID:     link.URLID,
		Custom:    link.Custom,
		CreatedAt: h.now(),
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
	}

	if err := h.publish.URLCreated(ctx, event); err != nil {
		h.logger.Error("failed to publish analytics event",
			zap.String("key", event.Key),
			zap.Error(err),
		)
	}

	resp := &CreateShortURLResponse{}
	resp.Body.Success = true
	resp.Body.URL = link.ShortURL
	resp.Body.Key = string(link.Key)

	return resp, nil
}

func (h *URLHandler) GetURL(ctx context.Context, req *KeyRequest) (*GetURLResponse, error) {
	res, err := h.service.Lookup(ctx, shortener.Key(req.Key))
	if err != nil {
		return nil, h.keyError(err, "failed to get url")
	}

	resp := &GetURLResponse{}
	resp.Body.Success = true
	resp.Body.URL = toURLRecord(res)

	return resp, nil
}

func (h *URLHandler) DeleteURL(ctx context.Context, req *KeyRequest) (*DeleteURLResponse, error) {
	if err := h.service.Delete(ctx, shortener.Key(req.Key)); err != nil {
		return nil, h.keyError(err, "failed to delete url")
	}

	event := &analytics.URLDeletedEvent{Key: req.Key, DeletedAt: h.now()}
	if err := h.publish.URLDeleted(ctx, event); err != nil {
		h.logger.Error("failed to publish delete event",
			zap.String("key", event.Key),
			zap.Error(err),
		)
	}

	resp := &DeleteURLResponse{}
	resp.Body.Success = true

	return resp, nil
}

func (h *URLHandler) GetStatistics(ctx context.Context, req *KeyRequest) (*StatisticsResponse, error) {
	stats, err := h.service.Statistics(ctx, shortener.Key(req.Key))
	if err != nil {
		return nil, h.keyError(err, "failed to get statistics")
	}

	resp := &StatisticsResponse{}
	resp.Body.Success = true
	resp.Body.Statistics = StatisticsRecord{
		URLRecord: toURLRecord(&stats.Resolution),
		NumClicks: stats.NumClicks,
	}

	return resp, nil
}

func (h *URLHandler) GetHits(ctx context.Context, req *KeyRequest) (*HitsResponse, error) {
	hits, err := h.service.Clicks(ctx, shortener.Key(req.Key))
	if err != nil {
		return nil, h.keyError(err, "failed to get hits")
	}

	resp := &HitsResponse{}
	resp.Body.Success = true
	resp.Body.Hits = toHitRecords(hits)

	return resp, nil
}

func (h *URLHandler) RedirectToURL(ctx context.Context, req *KeyRequest) (*RedirectResponse, error) {
	meta := RequestMetaFromContext(ctx)

	res, err := h.service.Visit(ctx, shortener.Key(req.Key), meta.ClickMeta())
	if err != nil {
		if errors.Is(err, shortener.ErrNotFound) || errors.Is(err, shortener.ErrDeleted) ||
			errors.Is(err, shortener.ErrValidation) {
			return nil, huma.Error404NotFound(shortener.MsgNotFound)
		}

		h.logger.Error("failed to resolve short url", zap.String("key", req.Key), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to resolve url")
	}

	event := &analytics.URLAccessedEvent{
		Key:          req.Key,
		AllocationID: res.ID,
		LongURL:      res.LongURL,
		AccessedAt:   h.now(),
		ClientIP:     meta.ClientIP,
		UserAgent:    meta.UserAgent,
		Referrer:     meta.Referrer,
	}

	if err = h.publish.URLAccessed(ctx, event); err != nil {
		h.logger.Error("failed to publish access event",
			zap.String("key", event.Key),
			zap.Error(err),
		)
	}

	return &RedirectResponse{
		Status:   http.StatusFound,
		Location: res.LongURL,
	}, nil
}

// keyError maps lookup failures: unknown, deleted and invalid keys are client errors.
func (h *URLHandler) keyError(err error, msg string) error {
	var deleted *shortener.DeletedError

	switch {
	case errors.As(err, &deleted):
		return huma.Error400BadRequest(deleted.Error())
	case errors.Is(err, shortener.ErrNotFound):
		return huma.Error400BadRequest(shortener.MsgNotFound)
	case errors.Is(err, shortener.ErrValidation), errors.Is(err, shortener.ErrDeleted):
		return huma.Error400BadRequest(err.Error())
	default:
		h.logger.Error(msg, zap.Error(err))

		return huma.Error500InternalServerError(msg)
	}
}

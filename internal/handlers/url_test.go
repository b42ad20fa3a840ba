package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/turl/internal/analytics"
	"github.com/serroba/turl/internal/handlers"
	"github.com/serroba/turl/internal/messaging"
	"github.com/serroba/turl/internal/shortener"
	"github.com/serroba/turl/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testBase = "https://turl.com"
	testURL  = "https://www.google.com"
)

// errorPublish returns a publish function that always fails.
func errorPublish[T any](err error) messaging.Publish[T] {
	return func(_ context.Context, _ *T) error { return err }
}

func newTestService() *shortener.Service {
	mem := store.NewMemoryStore()

	return shortener.NewService(mem, mem, shortener.WithBaseURL(testBase))
}

func newTestHandler(svc handlers.Shortener) *handlers.URLHandler {
	return handlers.NewURLHandler(svc, analytics.DiscardPublishers(), zap.NewNop())
}

func newTestHandlerWithPublishError(svc handlers.Shortener) *handlers.URLHandler {
	publishErr := errors.New("publish error")

	return handlers.NewURLHandler(svc, analytics.Publishers{
		URLCreated:  errorPublish[analytics.URLCreatedEvent](publishErr),
		URLAccessed: errorPublish[analytics.URLAccessedEvent](publishErr),
		URLDeleted:  errorPublish[analytics.URLDeletedEvent](publishErr),
	}, zap.NewNop())
}

func jsonCreate(body string) *handlers.CreateShortURLRequest {
	return &handlers.CreateShortURLRequest{ContentType: "application/json", RawBody: []byte(body)}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()

	var se huma.StatusError
	require.ErrorAs(t, err, &se)

	return se.GetStatus()
}

// failingService fails every call with err.
type failingService struct {
	err error
}

func (f failingService) Shorten(context.Context, shortener.ShortenRequest) (*shortener.ShortLink, error) {
	return nil, f.err
}

func (f failingService) Lookup(context.Context, shortener.Key) (*shortener.Resolution, error) {
	return nil, f.err
}

func (f failingService) Delete(context.Context, shortener.Key) error {
	return f.err
}

func (f failingService) Visit(context.Context, shortener.Key, shortener.ClickMeta) (*shortener.Resolution, error) {
	return nil, f.err
}

func (f failingService) Statistics(context.Context, shortener.Key) (*shortener.Statistics, error) {
	return nil, f.err
}

func (f failingService) Clicks(context.Context, shortener.Key) ([]shortener.Hit, error) {
	return nil, f.err
}

func TestCreateShortURL(t *testing.T) {
	t.Run("creates short url successfully", func(t *testing.T) {
		handler := newTestHandler(newTestService())

		resp, err := handler.CreateShortURL(context.Background(), jsonCreate(`{"dest_url":"`+testURL+`"}`))

		require.NoError(t, err)
		assert.True(t, resp.Body.Success)
		assert.Equal(t, string(shortener.DeriveKey(1)), resp.Body.Key)
		assert.Equal(t, testBase+"/"+resp.Body.Key, resp.Body.URL)
	})

	t.Run("accepts form bodies with a custom key", func(t *testing.T) {
		handler := newTestHandler(newTestService())

		resp, err := handler.CreateShortURL(context.Background(), &handlers.CreateShortURLRequest{
			ContentType: "application/x-www-form-urlencoded; charset=utf-8",
			RawBody:     []byte("dest_url=https%3A%2F%2Fwww.google.com&src_url=https%3A%2F%2Fturl.com%2Fadroit-xx"),
		})

		require.NoError(t, err)
		assert.Equal(t, "adroit-xx", resp.Body.Key)
		assert.Equal(t, "https://turl.com/adroit-xx", resp.Body.URL)
	})

	t.Run("missing destination is a bad request", func(t *testing.T) {
		handler := newTestHandler(newTestService())

		resp, err := handler.CreateShortURL(context.Background(), jsonCreate(`{}`))

		assert.Nil(t, resp)
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
		assert.Contains(t, err.Error(), shortener.MsgLongURLRequired)
	})

	t.Run("empty body is a bad request", func(t *testing.T) {
		handler := newTestHandler(newTestService())

		_, err := handler.CreateShortURL(context.Background(), &handlers.CreateShortURLRequest{})

		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	})

	t.Run("malformed json is a bad request", func(t *testing.T) {
		handler := newTestHandler(newTestService())

		_, err := handler.CreateShortURL(context.Background(), jsonCreate(`{"dest_url":`))

		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	})

	t.Run("custom key conflict", func(t *testing.T) {
		handler := newTestHandler(newTestService())
		body := `{"dest_url":"` + testURL + `","src_url":"promo"}`

		_, err := handler.CreateShortURL(context.Background(), jsonCreate(body))
		require.NoError(t, err)

		_, err = handler.CreateShortURL(context.Background(), jsonCreate(body))

		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
		assert.Contains(t, err.Error(), shortener.MsgConflict)
	})

	t.Run("exhaustion and storage failures are server errors", func(t *testing.T) {
		for _, cause := range []error{shortener.ErrAllocationExhausted, shortener.ErrStorage} {
			handler := newTestHandler(failingService{err: fmt.Errorf("wrapped: %w", cause)})

			_, err := handler.CreateShortURL(context.Background(), jsonCreate(`{"dest_url":"`+testURL+`"}`))

			assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
		}
	})

	t.Run("publish errors do not fail the request", func(t *testing.T) {
		handler := newTestHandlerWithPublishError(newTestService())

		resp, err := handler.CreateShortURL(context.Background(), jsonCreate(`{"dest_url":"`+testURL+`"}`))

		require.NoError(t, err)
		assert.True(t, resp.Body.Success)
	})
}

func TestGetURL(t *testing.T) {
	t.Run("returns the allocation", func(t *testing.T) {
		handler := newTestHandler(newTestService())

		created, err := handler.CreateShortURL(context.Background(), jsonCreate(`{"dest_url":"`+testURL+`"}`))
		require.NoError(t, err)

		resp, err := handler.GetURL(context.Background(), &handlers.KeyRequest{Key: created.Body.Key})

		require.NoError(t, err)
		assert.Equal(t, created.Body.Key, resp.Body.URL.HashKey)
		assert.Equal(t, testURL, resp.Body.URL.URL)
		assert.False(t, resp.Body.URL.IsDeleted)
		assert.Nil(t, resp.Body.URL.DateModified)
	})

	t.Run("unknown key", func(t *testing.T) {
		handler := newTestHandler(newTestService())

		_, err := handler.GetURL(context.Background(), &handlers.KeyRequest{Key: "missing"})

		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
		assert.Contains(t, err.Error(), shortener.MsgNotFound)
	})

	t.Run("deleted key reports the deletion time", func(t *testing.T) {
		handler := newTestHandler(newTestService())

		created, err := handler.CreateShortURL(context.Background(), jsonCreate(`{"dest_url":"`+testURL+`"}`))
		require.NoError(t, err)

		_, err = handler.DeleteURL(context.Background(), &handlers.KeyRequest{Key: created.Body.Key})
		require.NoError(t, err)

		_, err = handler.GetURL(context.Background(), &handlers.KeyRequest{Key: created.Body.Key})

		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
		assert.Contains(t, err.Error(), "This Short URL was deleted at ")
	})

	t.Run("storage failure", func(t *testing.T) {
		handler := newTestHandler(failingService{err: shortener.ErrStorage})

		_, err := handler.GetURL(context.Background(), &handlers.KeyRequest{Key: "abc"})

		assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
	})
}

func TestDeleteURL(t *testing.T) {
	t.Run("deletes an existing key twice", func(t *testing.T) {
		handler := newTestHandlerWithPublishError(newTestService())

		created, err := handler.CreateShortURL(context.Background(), jsonCreate(`{"dest_url":"`+testURL+`"}`))
		require.NoError(t, err)

		for range 2 {
			resp, err := handler.DeleteURL(context.Background(), &handlers.KeyRequest{Key: created.Body.Key})

			require.NoError(t, err)
			assert.True(t, resp.Body.Success)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		handler := newTestHandler(newTestService())

		_, err := handler.DeleteURL(context.Background(), &handlers.KeyRequest{Key: "missing"})

		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	})
}

func TestRedirectToURL(t *testing.T) {
	t.Run("redirects and counts the click", func(t *testing.T) {
		svc := newTestService()
		handler := newTestHandler(svc)

		created, err := handler.CreateShortURL(context.Background(), jsonCreate(`{"dest_url":"`+testURL+`"}`))
		require.NoError(t, err)

		ctx := handlers.ContextWithRequestMeta(context.Background(), handlers.RequestMeta{
			ClientIP:  "203.0.113.7",
			UserAgent: "TestAgent/1.0",
		})

		resp, err := handler.RedirectToURL(ctx, &handlers.KeyRequest{Key: created.Body.Key})

		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.Status)
		assert.Equal(t, testURL, resp.Location)

		stats, err := handler.GetStatistics(context.Background(), &handlers.KeyRequest{Key: created.Body.Key})
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.Body.Statistics.NumClicks)

		hits, err := handler.GetHits(context.Background(), &handlers.KeyRequest{Key: created.Body.Key})
		require.NoError(t, err)
		require.Len(t, hits.Body.Hits, 1)
		assert.Equal(t, "203.0.113.7", *hits.Body.Hits[0].IPAddress)
		assert.Equal(t, "TestAgent/1.0", *hits.Body.Hits[0].UserAgent)
	})

	t.Run("publish errors do not fail the redirect", func(t *testing.T) {
		handler := newTestHandlerWithPublishError(newTestService())

		created, err := handler.CreateShortURL(context.Background(), jsonCreate(`{"dest_url":"`+testURL+`"}`))
		require.NoError(t, err)

		resp, err := handler.RedirectToURL(context.Background(), &handlers.KeyRequest{Key: created.Body.Key})

		require.NoError(t, err)
		assert.Equal(t, testURL, resp.Location)
	})

	t.Run("unknown and deleted keys are not found", func(t *testing.T) {
		handler := newTestHandler(newTestService())

		_, err := handler.RedirectToURL(context.Background(), &handlers.KeyRequest{Key: "missing"})
		assert.Equal(t, http.StatusNotFound, statusOf(t, err))

		created, err := handler.CreateShortURL(context.Background(), jsonCreate(`{"dest_url":"`+testURL+`"}`))
		require.NoError(t, err)
		_, err = handler.DeleteURL(context.Background(), &handlers.KeyRequest{Key: created.Body.Key})
		require.NoError(t, err)

		_, err = handler.RedirectToURL(context.Background(), &handlers.KeyRequest{Key: created.Body.Key})
		assert.Equal(t, http.StatusNotFound, statusOf(t, err))
		assert.Contains(t, err.Error(), shortener.MsgNotFound)
	})

	t.Run("storage failure", func(t *testing.T) {
		handler := newTestHandler(failingService{err: shortener.ErrStorage})

		_, err := handler.RedirectToURL(context.Background(), &handlers.KeyRequest{Key: "abc"})

		assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
	})
}

func TestGetStatistics(t *testing.T) {
	t.Run("deleted keys have no statistics", func(t *testing.T) {
		handler := newTestHandler(newTestService())

		created, err := handler.CreateShortURL(context.Background(), jsonCreate(`{"dest_url":"`+testURL+`"}`))
		require.NoError(t, err)
		_, err = handler.DeleteURL(context.Background(), &handlers.KeyRequest{Key: created.Body.Key})
		require.NoError(t, err)

		_, err = handler.GetStatistics(context.Background(), &handlers.KeyRequest{Key: created.Body.Key})

		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	})

	t.Run("unknown key", func(t *testing.T) {
		handler := newTestHandler(newTestService())

		_, err := handler.GetStatistics(context.Background(), &handlers.KeyRequest{Key: "missing"})

		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	})
}

package middleware

import (
	"net"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/turl/internal/handlers"
)

// RequestMeta is a middleware that adds client IP, user-agent, and referrer to the request context.
func RequestMeta(_ huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := handlers.RequestMeta{
			ClientIP:  ClientIP(ctx.Header, ctx.RemoteAddr()),
			UserAgent: ctx.Header("User-Agent"),
			Referrer:  ctx.Header("Referer"),
		}

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)
		ctx = huma.WithContext(ctx, newCtx)

		next(ctx)
	}
}

// ClientIP picks the originating address: first X-Forwarded-For hop, then X-Real-IP, then the peer address.
func ClientIP(header func(string) string, remoteAddr string) string {
	if xff := header("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	if xri := header("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}

	return remoteAddr
}

package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/leaddesk/internal/core"
)

// withRequestMetadata carries the client address into core for batch history.
// RemoteAddr has already been rewritten by TrustedRealIP.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClientIP(ctx, r.RemoteAddr)
}

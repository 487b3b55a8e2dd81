package server

import (
	"net/http"
	"os"
	"strings"
)

// hostResolver picks the hostname used for tenant lookup. The proxy's
// X-Forwarded-Host is honored only when TRUST_PROXY=1 was set when the
// middleware was built.
type hostResolver struct {
	trustProxy bool
}

func newHostResolver() hostResolver {
	return hostResolver{trustProxy: os.Getenv("TRUST_PROXY") == "1"}
}

func (h hostResolver) effectiveHost(r *http.Request) string {
	if h.trustProxy {
		if fwd := firstForwardedHost(r); fwd != "" {
			return normalizeHostname(fwd)
		}
	}
	return normalizeHostname(r.Host)
}

// firstForwardedHost returns the first entry of X-Forwarded-Host; each
// proxy hop appends its own, so the first is the client-facing one.
func firstForwardedHost(r *http.Request) string {
	raw := r.Header.Get("X-Forwarded-Host")
	if i := strings.IndexByte(raw, ','); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

func normalizeHostname(host string) string {
	host = strings.TrimSpace(host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	return strings.ToLower(host)
}

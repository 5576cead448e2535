package http

import (
	"net/http"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"github.com/lambdamechanic/scrapinghub-mcp/pkg/config"
)

const (
	corsHeaderAllowOrigin      = "Access-Control-Allow-Origin"
	corsHeaderAllowMethods     = "Access-Control-Allow-Methods"
	corsHeaderAllowHeaders     = "Access-Control-Allow-Headers"
	corsHeaderAllowCredentials = "Access-Control-Allow-Credentials"
	corsHeaderExposeHeaders    = "Access-Control-Expose-Headers"
	corsHeaderMaxAge           = "Access-Control-Max-Age"

	// streamable HTTP sessions are closed with DELETE and tracked with Mcp-Session-Id
	corsAllowedMethods = "GET, POST, DELETE, OPTIONS"
	corsAllowedHeaders = "Content-Type, Accept, Mcp-Session-Id, Mcp-Protocol-Version"
	corsExposeHeaders  = "Content-Type, Mcp-Session-Id"
	corsDefaultMaxAge  = 86400
)

type corsPolicy struct {
	anyOrigin bool
	origins   map[string]struct{}
	maxAge    string
}

func newCORSPolicy(corsConfig *config.CORSConfig) *corsPolicy {
	policy := &corsPolicy{origins: map[string]struct{}{}}
	for _, origin := range corsConfig.Origins {
		if origin == "*" {
			policy.anyOrigin = true
			continue
		}
		policy.origins[strings.TrimSuffix(origin, "/")] = struct{}{}
	}
	// a wildcard mixed with explicit origins is treated as explicit, credentials stay enabled
	if policy.anyOrigin && len(policy.origins) > 0 {
		policy.anyOrigin = false
	}
	maxAge := corsConfig.MaxAge
	if maxAge <= 0 {
		maxAge = corsDefaultMaxAge
	}
	policy.maxAge = strconv.Itoa(maxAge)
	return policy
}

func (p *corsPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if p.anyOrigin {
		return true
	}
	_, ok := p.origins[strings.TrimSuffix(origin, "/")]
	return ok
}

func (p *corsPolicy) writeHeaders(h http.Header, origin string) {
	if p.anyOrigin {
		h.Set(corsHeaderAllowOrigin, "*")
	} else {
		h.Set(corsHeaderAllowOrigin, origin)
		h.Add("Vary", "Origin")
		h.Set(corsHeaderAllowCredentials, "true")
	}
	h.Set(corsHeaderExposeHeaders, corsExposeHeaders)
}

// CORSMiddleware allows browser clients from the configured origins. A nil config disables CORS.
func CORSMiddleware(corsConfig *config.CORSConfig) func(http.Handler) http.Handler {
	if corsConfig == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	policy := newCORSPolicy(corsConfig)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions
			if !policy.allows(origin) {
				if preflight {
					klog.V(2).Infof("CORS preflight request rejected for origin %s", origin)
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			policy.writeHeaders(w.Header(), origin)
			if !preflight {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set(corsHeaderAllowMethods, corsAllowedMethods)
			w.Header().Set(corsHeaderAllowHeaders, corsAllowedHeaders)
			w.Header().Set(corsHeaderMaxAge, policy.maxAge)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

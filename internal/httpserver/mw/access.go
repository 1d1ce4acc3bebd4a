package mw

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/MrSnakeDoc/gallery/internal/logger"
	"github.com/MrSnakeDoc/gallery/internal/utils"
)

type rejection struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// reject answers with a JSON body so API clients see why they were refused.
func reject(w http.ResponseWriter, r *http.Request, status int, reason string) {
	render.Status(r, status)
	render.JSON(w, r, rejection{Status: http.StatusText(status), Error: reason})
}

func passthrough(next http.Handler) http.Handler { return next }

// AllowOnlyCIDRS restricts a route to the listed IPs and CIDRs. An empty list
// disables the filter. trustProxy resolves the caller from proxy headers.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m, invalid := utils.NewIPMatcher(allowed)
	for _, s := range invalid {
		log.Warn("ignoring invalid CIDR", logger.String("value", s))
	}
	if m.Len() == 0 {
		if len(invalid) > 0 {
			// All rules invalid: fail closed.
			return func(http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					reject(w, r, http.StatusForbidden, "address not allowed")
				})
			}
		}
		return passthrough
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Info("request refused by CIDR filter",
					logger.String("ip", ip),
					logger.String("path", r.URL.Path))
				reject(w, r, http.StatusForbidden, "address not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// EnforceHost restricts a route to the listed Host headers. Patterns may start
// with "*." to match any subdomain. An empty list disables the filter.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	if len(allowedHosts) == 0 {
		return passthrough
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, pattern := range allowedHosts {
				if matchHost(r.Host, pattern) {
					next.ServeHTTP(w, r)
					return
				}
			}
			log.Info("request refused by host filter",
				logger.String("host", r.Host),
				logger.String("path", r.URL.Path))
			reject(w, r, http.StatusForbidden, "host not allowed")
		})
	}
}

// matchHost compares case-insensitively. A pattern without a port matches the
// host on any port.
func matchHost(host, pattern string) bool {
	host, pattern = strings.ToLower(host), strings.ToLower(pattern)
	if host == pattern {
		return true
	}
	if !strings.Contains(pattern, ":") {
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
	}
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(suffix, ".") {
		return strings.HasSuffix(host, suffix) && len(host) > len(suffix)
	}
	return host == pattern
}

package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/gorilla/mux"
)

const (
	corsAllowHeaders = "Accept, Content-Type, Authorization"
	corsMaxAge       = "86400"
)

// originPolicy decides which browser origins may call the API.
// Patterns are full origins ("https://app.example.com"), host wildcards
// ("*.example.com", any scheme and port) or "*".
type originPolicy struct {
	exact    map[string]bool
	suffixes []string
	any      bool
}

func newOriginPolicy(patterns []string) originPolicy {
	p := originPolicy{exact: make(map[string]bool)}
	for _, pattern := range patterns {
		switch {
		case pattern == "*":
			p.any = true
		case strings.HasPrefix(pattern, "*."):
			p.suffixes = append(p.suffixes, strings.ToLower(pattern[1:]))
		default:
			p.exact[strings.ToLower(strings.TrimSuffix(pattern, "/"))] = true
		}
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	if p.any || p.exact[strings.ToLower(u.Scheme+"://"+u.Host)] {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, suffix := range p.suffixes {
		// "*.example.com" matches sub.example.com but not example.com
		if strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
			return true
		}
	}
	return false
}

// preflightRoute is a registered path and the methods it serves.
type preflightRoute struct {
	path    *regexp.Regexp
	methods []string
}

// preflightRoutes collects the method set of every route with a path.
func preflightRoutes(r *mux.Router) []preflightRoute {
	var routes []preflightRoute
	_ = r.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		expr, err := route.GetPathRegexp()
		if err != nil {
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			return nil
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil
		}
		routes = append(routes, preflightRoute{path: re, methods: methods})
		return nil
	})
	return routes
}

// allowedMethods returns the methods served at path, sorted, with OPTIONS appended.
func (s *Server) allowedMethods(path string) []string {
	var methods []string
	for _, route := range s.preflight {
		if !route.path.MatchString(path) {
			continue
		}
		for _, m := range route.methods {
			if !slices.Contains(methods, m) {
				methods = append(methods, m)
			}
		}
	}
	if len(methods) == 0 {
		return nil
	}
	slices.Sort(methods)
	return append(methods, http.MethodOptions)
}

// corsMiddleware marks responses to allowed origins as readable by them.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		if origin := r.Header.Get("Origin"); origin != "" && s.origins.allows(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		next.ServeHTTP(w, r)
	})
}

// handlePreflight answers OPTIONS for every registered path. Preflights are
// served outside the /api/v1 subrouter so they never spend rate limit tokens.
func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	methods := s.allowedMethods(r.URL.Path)
	if methods == nil {
		s.writeError(w, http.StatusNotFound, "Not found")
		return
	}
	allow := strings.Join(methods, ", ")
	w.Header().Set("Allow", allow)

	requested := r.Header.Get("Access-Control-Request-Method")
	if requested != "" && !slices.Contains(methods, requested) {
		s.writeError(w, http.StatusMethodNotAllowed, "Method "+requested+" not allowed for "+r.URL.Path)
		return
	}

	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		w.Header().Set("Access-Control-Allow-Methods", allow)
		w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
		w.Header().Set("Access-Control-Max-Age", corsMaxAge)
	}
	w.WriteHeader(http.StatusNoContent)
}

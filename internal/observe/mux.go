package observe

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Multiplexer interface {
	Handle(pattern string, handler http.Handler)
	http.Handler
}

// Mux wraps a multiplexer so that every request it serves is traced, and
// every route registered through it is tagged with its path.
type Mux struct {
	wrapped Multiplexer
	handler http.Handler
}

func NewMux(wrapped Multiplexer, operation string) *Mux {
	return &Mux{
		wrapped: wrapped,
		handler: otelhttp.NewHandler(wrapped, operation),
	}
}

func (mux *Mux) Handle(pattern string, handler http.Handler) {
	// Configure the "http.route" for the HTTP instrumentation. The route is
	// the path only: the method is recorded separately.
	taggedHandler := otelhttp.WithRouteTag(routeForPattern(pattern), handler)
	mux.wrapped.Handle(pattern, taggedHandler)
}

func (mux *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux.handler.ServeHTTP(w, r)
}

// routeForPattern removes any method (and host) qualifier from a ServeMux
// pattern, e.g. "POST /micropub" becomes "/micropub".
func routeForPattern(pattern string) string {
	if _, path, ok := strings.Cut(pattern, " "); ok {
		pattern = strings.TrimSpace(path)
	}

	if i := strings.IndexByte(pattern, '/'); i > 0 {
		pattern = pattern[i:]
	}

	return pattern
}

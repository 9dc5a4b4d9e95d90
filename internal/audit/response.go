package audit

import (
	"bufio"
	"net"
	"net/http"
)

// wrapResponseWriter records the status and size of the response on the
// entry as it is written.
func wrapResponseWriter(w http.ResponseWriter, e *Entry) http.ResponseWriter {
	wrapped := &responseWrapper{responseWriter: w, entry: e}
	if _, ok := w.(http.Hijacker); ok {
		return &hijackWrapper{*wrapped}
	}
	return wrapped
}

type responseWrapper struct {
	responseWriter http.ResponseWriter
	entry          *Entry
	wroteHeader    bool
}

func (w *responseWrapper) Header() http.Header {
	return w.responseWriter.Header()
}

func (w *responseWrapper) Write(buf []byte) (int, error) {
	if !w.wroteHeader {
		// an implicit header: the status is only recorded once
		w.WriteHeader(http.StatusOK)
	}

	n, err := w.responseWriter.Write(buf)
	w.entry.ResponseBytes += int64(n)

	return n, err
}

func (w *responseWrapper) WriteHeader(code int) {
	if !w.wroteHeader {
		w.entry.Status = code
		w.wroteHeader = true
	}
	w.responseWriter.WriteHeader(code)
}

func (w *responseWrapper) Flush() {
	if flusher, ok := w.responseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap allows http.ResponseController to reach the underlying writer.
func (w *responseWrapper) Unwrap() http.ResponseWriter {
	return w.responseWriter
}

// hijackWrapper wraps a response writer that supports hijacking.
type hijackWrapper struct {
	responseWrapper
}

func (h *hijackWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return h.responseWriter.(http.Hijacker).Hijack()
}

package httpapi

import (
	"bytes"
	"net/http"
	"time"

	"exam-app/internal/logger"
)

// errorBodyLogBytes bounds how much of an error response is logged.
const errorBodyLogBytes = 512

// NewRouter builds the API mux. metricsHandler is mounted on /metrics when
// non-nil.
func NewRouter(deps Deps, metricsHandler http.Handler) http.Handler {
	api := NewAPI(deps)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", api.HandleHealth)
	mux.HandleFunc("/topics", api.HandleTopics)

	mux.HandleFunc("/exams", api.HandleStartExam)
	mux.HandleFunc("/exams/state", api.HandleExamState)
	mux.HandleFunc("/exams/answer", api.HandleAnswer)
	mux.HandleFunc("/exams/next", api.HandleNext)
	mux.HandleFunc("/exams/prev", api.HandlePrev)
	mux.HandleFunc("/exams/submit", api.HandleSubmit)
	mux.HandleFunc("/exams/finish", api.HandleFinish)
	mux.HandleFunc("/exams/review", api.HandleReview)
	mux.HandleFunc("/exams/results", api.HandleResults)
	mux.HandleFunc("/exams/results/{session_id}", api.HandleResult)

	mux.HandleFunc("/learn/{topic}/questions/{n}", api.HandleLearnQuestion)
	mux.HandleFunc("/learn/{topic}/questions/{n}/check", api.HandleLearnCheck)

	mux.HandleFunc("/analysis", api.HandleUpload)
	mux.HandleFunc("/analysis/{id}", api.HandleWorkspace)
	mux.HandleFunc("/analysis/{id}/commentary", api.HandleCommentary)
	mux.HandleFunc("/analysis/{id}/chat", api.HandleChat)

	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	return withRequestLogging(mux, api.log, deps.Observer)
}

// withRequestLogging logs every request and reports it to observer. Error
// responses are logged with the head of their body.
func withRequestLogging(next http.Handler, log *logger.Logger, observer RequestObserver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			maxLogBytes:    errorBodyLogBytes,
		}

		next.ServeHTTP(recorder, r)

		elapsed := time.Since(started)
		// The mux fills in the matched pattern; unmatched paths share one label.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if observer != nil {
			observer.ObserveHTTP(r.Method, route, recorder.statusCode, elapsed)
		}

		fields := []interface{}{
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.statusCode,
			"bytes", recorder.bytesWritten,
			"duration_ms", elapsed.Milliseconds(),
		}
		if recorder.statusCode >= http.StatusBadRequest {
			fields = append(fields, "body", recorder.logBody.String(), "truncated", recorder.truncated)
			log.Warn("http request failed", fields...)
			return
		}
		log.Debug("http request", fields...)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	maxLogBytes  int
	logBody      bytes.Buffer
	truncated    bool
	wroteHeader  bool
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	if !r.wroteHeader {
		r.statusCode = statusCode
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	r.wroteHeader = true
	if room := r.maxLogBytes - r.logBody.Len(); room > 0 {
		if len(p) > room {
			r.logBody.Write(p[:room])
			r.truncated = true
		} else {
			r.logBody.Write(p)
		}
	} else if len(p) > 0 {
		r.truncated = true
	}

	n, err := r.ResponseWriter.Write(p)
	r.bytesWritten += n
	return n, err
}

// Flush lets streaming handlers such as promhttp flush through the recorder.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

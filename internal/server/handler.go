package server

import (
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"netlogd/internal/config"
	"netlogd/internal/eventbus"
	"netlogd/internal/logentry"
	"netlogd/internal/metrics"

	json "github.com/goccy/go-json"
)

// Handler is the HTTP adapter standing in for "the event bus that
// delivers events to the observer": spec.md scopes the real bus out
// as an external collaborator, so this is the concrete stand-in that
// makes the pipeline runnable end to end.
type Handler struct {
	cfg     config.Config
	metrics *metrics.Metrics
	bus     *eventbus.Bus
}

func NewHandler(cfg config.Config, m *metrics.Metrics, bus *eventbus.Bus) *Handler {
	return &Handler{cfg: cfg, metrics: m, bus: bus}
}

// Routes wires every endpoint this server exposes onto a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/emit", h.HandleEmit)
	mux.HandleFunc("/metrics", h.HandleMetrics)
	mux.HandleFunc("/health", h.HandleHealth)
	return mux
}

// HandleEmit is the hot path: decode a JSON body into a Record and
// publish it to the bus, which fans it out to every subscribed
// observer's OnEvent. Bounded by MaxBodySize to keep a single bad
// request from holding onto unbounded memory.
func (h *Handler) HandleEmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodySize)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if h.metrics != nil {
			if errors.As(err, &tooLarge) {
				atomic.AddInt64(&h.metrics.HTTPRequestsRejectedBodyTooLargeTotal, 1)
			} else {
				atomic.AddInt64(&h.metrics.HTTPRequestsRejectedDecodeErrorTotal, 1)
			}
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var rec logentry.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		if h.metrics != nil {
			atomic.AddInt64(&h.metrics.HTTPRequestsRejectedDecodeErrorTotal, 1)
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if rec.Ts == 0 {
		rec.Ts = time.Now().Unix()
	}
	rec.SourceIP = clientIP(r, h.cfg.TrustProxyHeaders)

	if h.metrics != nil {
		atomic.AddInt64(&h.metrics.HTTPRequestsTotal, 1)
	}

	h.bus.Publish(&rec)

	if h.metrics != nil {
		atomic.AddInt64(&h.metrics.HTTPRequestsAcceptedTotal, 1)
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleMetrics exposes the plaintext counter dump.
func (h *Handler) HandleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if h.metrics != nil {
		_, _ = w.Write([]byte(h.metrics.String()))
	}
}

// HandleHealth is a liveness probe: a load balancer just needs a fast
// 200 here, not a deep dependency check.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

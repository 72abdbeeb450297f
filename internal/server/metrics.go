package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/errors"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
)

// hopHeaders are not copied from the exporter response.
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// metricsProxy relays the Prometheus exporter so /metrics can be scraped on
// the health port.
type metricsProxy struct {
	port   int
	client *http.Client
}

func newMetricsProxy(port int) *metricsProxy {
	return &metricsProxy{port: port, client: &http.Client{Timeout: 5 * time.Second}}
}

func (m *metricsProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.port == 0 || observability.PrometheusExporter == nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.NewUnavailableError("Metrics exporter not initialized"))
		return
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/metrics", m.port)
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.WrapInternal(r.Context(), err, "Unable to construct metrics request"))
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.WrapExternalService(r.Context(), err, "Prometheus exporter unavailable"))
		return
	}
	defer resp.Body.Close() // nolint:errcheck // response already relayed

	for key, values := range resp.Header {
		if hopHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	if resp.Header.Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		observability.Redacting(observability.ServerLogger).Warn("Failed to relay metrics", zap.Error(err))
	}
}

package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/portfolioos/quantd/runtime"
)

type HealthHandlerParams struct {
	fx.In

	Runtime runtime.Runtime
	Log     *zap.Logger
}

func NewHealthHandler(params HealthHandlerParams) *HealthHandler {
	return &HealthHandler{
		runtime: params.Runtime,
		log:     params.Log,
	}
}

// HealthHandler reports the lifecycle state of the engines. It
// answers 200 as long as at least one engine is running, 503
// otherwise, with per-engine stats in the body either way.
type HealthHandler struct {
	runtime runtime.Runtime
	log     *zap.Logger
}

type healthEngine struct {
	Running           bool    `json:"running"`
	PermanentlyFailed bool    `json:"permanently_failed,omitempty"`
	Pid               int     `json:"pid,omitempty"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
	Restarts          int     `json:"restarts"`
}

type healthResponse struct {
	Status  string         `json:"status"`
	Engines []healthEngine `json:"engines"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats := h.runtime.Stats()

	engines := make([]healthEngine, 0, len(stats))

	healthy := false
	for _, s := range stats {
		if s.Running {
			healthy = true
		}

		engines = append(engines, healthEngine{
			Running:           s.Running,
			PermanentlyFailed: s.PermanentlyFailed,
			Pid:               s.Pid,
			UptimeSeconds:     s.Uptime.Seconds(),
			Restarts:          s.Restarts,
		})
	}

	status := "ok"
	statusCode := http.StatusOK
	if !healthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	body, err := json.Marshal(healthResponse{
		Status:  status,
		Engines: engines,
	})
	if err != nil {
		h.log.Error("failed to marshal health response", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if _, err := w.Write(body); err != nil {
		h.log.Debug("failed to write response", zap.Error(err))
	}
}

// Package api exposes the operator-facing HTTP surface: campaign lifecycle
// management, the authenticated batch processing endpoint invoked by the
// queue transport, the provider event webhook, and retry.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ignite/campaign-dispatch/internal/dispatch"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
	"github.com/ignite/campaign-dispatch/internal/stats"
	"github.com/ignite/campaign-dispatch/internal/tracking"
)

// Handlers carries the wired services for all API endpoints.
type Handlers struct {
	campaigns  *campaign.Service
	dispatcher *dispatch.Dispatcher
	retrier    *dispatch.RetryCoordinator
	recorder   *tracking.Recorder
	aggr       *stats.Aggregator
}

// NewHandlers wires the handler set.
func NewHandlers(campaigns *campaign.Service, dispatcher *dispatch.Dispatcher, retrier *dispatch.RetryCoordinator, recorder *tracking.Recorder, aggr *stats.Aggregator) *Handlers {
	return &Handlers{
		campaigns:  campaigns,
		dispatcher: dispatcher,
		retrier:    retrier,
		recorder:   recorder,
		aggr:       aggr,
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// jsonDecodeLenient decodes an optional JSON body; an empty body is fine.
func jsonDecodeLenient(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

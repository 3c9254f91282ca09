package api

import (
	"errors"
	"net/http"

	"github.com/ignite/campaign-dispatch/internal/dispatch"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
)

// batchTokenHeader carries the queue transport's authenticity token.
const batchTokenHeader = "X-Batch-Token"

// ProcessBatch is the queue-facing batch endpoint. The token is checked
// before anything else; 401 responses leave the ledger untouched.
func (h *Handlers) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	var job domain.BatchJob
	if !httputil.Decode(w, r, &job) {
		return
	}
	if job.CampaignID == "" || job.BatchID == "" || len(job.RecipientIDs) == 0 {
		httputil.BadRequest(w, "campaign_id, batch_id and recipient_ids are required")
		return
	}

	result, err := h.dispatcher.ProcessBatch(r.Context(), r.Header.Get(batchTokenHeader), &job)
	switch {
	case errors.Is(err, dispatch.ErrUnauthorized):
		httputil.Unauthorized(w, "invalid batch token")
	case errors.Is(err, dispatch.ErrCampaignNotFound):
		httputil.NotFound(w, "campaign not found")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, result)
	}
}

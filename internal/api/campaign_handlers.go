package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dispatch/internal/dispatch"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
)

// CreateCampaign creates a draft.
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var input campaign.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	c, err := h.campaigns.Create(r.Context(), input)
	if errors.Is(err, campaign.ErrValidation) {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, c)
}

// ListCampaigns returns campaigns, newest first.
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	out, err := h.campaigns.List(r.Context(), limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"campaigns": out})
}

// GetCampaign returns one campaign.
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if h.campaignErr(w, err) {
		return
	}
	httputil.OK(w, c)
}

// UpdateCampaign edits draft/scheduled content.
func (h *Handlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var fields campaign.UpdateFields
	if !httputil.Decode(w, r, &fields) {
		return
	}
	c, err := h.campaigns.Update(r.Context(), chi.URLParam(r, "id"), fields)
	if h.campaignErr(w, err) {
		return
	}
	httputil.OK(w, c)
}

// DeleteCampaign removes a draft.
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	err := h.campaigns.Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, campaign.ErrNotDraft) {
		httputil.Error(w, http.StatusConflict, "only draft campaigns can be deleted")
		return
	}
	if h.campaignErr(w, err) {
		return
	}
	httputil.NoContent(w)
}

// ScheduleCampaign moves a draft to scheduled.
func (h *Handlers) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.campaignErr(w, h.campaigns.Schedule(r.Context(), id)) {
		return
	}
	httputil.OK(w, map[string]interface{}{"success": true, "status": domain.CampaignScheduled})
}

// SendCampaign prepares recipients and launches delivery.
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.campaigns.Send(r.Context(), id)
	if errors.Is(err, campaign.ErrNoRecipients) {
		httputil.Error(w, http.StatusConflict, "campaign has no recipients to send to")
		return
	}
	if errors.Is(err, campaign.ErrLaunchInProgress) {
		httputil.Error(w, http.StatusConflict, "campaign launch already in progress")
		return
	}
	if h.campaignErr(w, err) {
		return
	}
	httputil.OK(w, map[string]interface{}{
		"success":    true,
		"status":     domain.CampaignSending,
		"recipients": n,
	})
}

// CancelCampaign terminates a scheduled or sending campaign.
func (h *Handlers) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	err := h.campaigns.Cancel(r.Context(), chi.URLParam(r, "id"), body.Reason)
	if errors.Is(err, campaign.ErrReasonRequired) {
		httputil.BadRequest(w, "reason is required")
		return
	}
	if h.campaignErr(w, err) {
		return
	}
	httputil.OK(w, map[string]interface{}{"success": true, "status": domain.CampaignCancelled})
}

// retryResponse is the operator-facing retry report.
type retryResponse struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	RetryCount int                 `json:"retry_count"`
	Results    retryResponseCounts `json:"results"`
	Errors     []domain.RetryError `json:"errors"`
}

type retryResponseCounts struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

// RetryCampaign re-sends failed recipients.
func (h *Handlers) RetryCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Force bool `json:"force"`
	}
	// An empty body means a plain retry.
	_ = jsonDecodeLenient(r, &body)

	id := chi.URLParam(r, "id")
	result, err := h.retrier.RetryFailed(r.Context(), id, body.Force)
	if errors.Is(err, dispatch.ErrNoFailedRecipients) {
		httputil.OK(w, retryResponse{
			Success: true,
			Message: "no failed recipients to retry",
			Errors:  []domain.RetryError{},
		})
		return
	}
	if errors.Is(err, dispatch.ErrCampaignNotFound) {
		httputil.NotFound(w, "campaign not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	retryCount := 0
	if c, cerr := h.campaigns.Get(r.Context(), id); cerr == nil {
		retryCount = c.RetryCount
	}

	errs := result.Errors
	if errs == nil {
		errs = []domain.RetryError{}
	}
	httputil.OK(w, retryResponse{
		Success:    result.FailureCount == 0,
		Message:    "retry completed",
		RetryCount: retryCount,
		Results: retryResponseCounts{
			Success: result.SuccessCount,
			Failed:  result.FailureCount,
			Total:   result.Total,
		},
		Errors: errs,
	})
}

// CampaignStats recomputes and returns the aggregate view.
func (h *Handlers) CampaignStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.campaigns.Get(r.Context(), id); h.campaignErr(w, err) {
		return
	}
	s, err := h.aggr.Recompute(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, s)
}

// campaignErr maps service errors onto HTTP responses. Returns true when a
// response was written.
func (h *Handlers) campaignErr(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	case errors.Is(err, campaign.ErrInvalidTransition):
		httputil.Error(w, http.StatusConflict, "operation not allowed in the campaign's current status")
	default:
		httputil.InternalError(w, err)
	}
	return true
}

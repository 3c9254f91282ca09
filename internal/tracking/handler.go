package tracking

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Sink receives decoded engagement events. The production sink is the SQS
// EventPublisher; tests substitute a synchronous fake.
type Sink interface {
	Publish(evt domain.EngagementEvent)
}

// Handler serves the open-pixel and click-redirect endpoints. Both respond
// immediately regardless of recording outcome: the pixel always renders and
// the redirect always fires.
type Handler struct {
	codec      *Codec
	sink       Sink
	defaultURL string
}

// NewHandler returns a Handler. defaultURL is where undecodable clicks are
// sent.
func NewHandler(codec *Codec, sink Sink, defaultURL string) *Handler {
	return &Handler{codec: codec, sink: sink, defaultURL: defaultURL}
}

// Routes mounts the tracking endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/track/open", h.HandleOpen)
	r.Get("/track/click", h.HandleClick)
	r.Get("/health", h.HandleHealth)
	return r
}

// HandleOpen serves the tracking pixel. Two parameter schemes are honored:
// the signed scheme (?d=<payload>&s=<sig>) used by current sends, and the
// legacy plain scheme (?c=<campaignId>&r=<recipientId>) still present in
// old delivered mail. Either way the response is the pixel.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	campaignID, recipientID := h.openParams(r)
	if campaignID != "" && recipientID != "" {
		h.sink.Publish(domain.EngagementEvent{
			EventType:   domain.EventOpen,
			CampaignID:  campaignID,
			RecipientID: recipientID,
			IPAddress:   realIP(r),
			UserAgent:   r.UserAgent(),
			OccurredAt:  time.Now().UTC(),
		})
	}
	h.servePixel(w)
}

func (h *Handler) openParams(r *http.Request) (campaignID, recipientID string) {
	q := r.URL.Query()
	if data := q.Get("d"); data != "" {
		parts, err := h.codec.Decode(data, q.Get("s"))
		if err != nil || len(parts) < 2 {
			logger.Debug("undecodable open payload", "error", errString(err))
			return "", ""
		}
		return parts[0], parts[1]
	}
	return q.Get("c"), q.Get("r")
}

// HandleClick records the click and redirects to the original target. A
// missing or tampered payload still redirects, to the default URL, so the
// reader never sees an error page.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := h.defaultURL

	parts, err := h.codec.Decode(q.Get("d"), q.Get("s"))
	if err == nil && len(parts) >= 3 {
		if raw, uerr := url.QueryUnescape(parts[2]); uerr == nil {
			if t := safeRedirectTarget(raw); t != "" {
				target = t
			}
		}
		h.sink.Publish(domain.EngagementEvent{
			EventType:   domain.EventClick,
			CampaignID:  parts[0],
			RecipientID: parts[1],
			TargetURL:   target,
			IPAddress:   realIP(r),
			UserAgent:   r.UserAgent(),
			OccurredAt:  time.Now().UTC(),
		})
	} else {
		logger.Debug("undecodable click payload", "error", errString(err))
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(pixelGIF)
}

func errString(err error) string {
	if err == nil {
		return "short payload"
	}
	return err.Error()
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

package dispatch

import (
	"strings"

	"github.com/osteele/liquid"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/tracking"
)

// ContentBuilder renders campaign content for one recipient and injects
// engagement tracking. Render failures fail open to the raw template; a
// broken merge tag must not fail the recipient.
type ContentBuilder struct {
	engine *liquid.Engine
	codec  *tracking.Codec
}

// NewContentBuilder returns a builder using the given tracking codec.
func NewContentBuilder(codec *tracking.Codec) *ContentBuilder {
	return &ContentBuilder{
		engine: liquid.NewEngine(),
		codec:  codec,
	}
}

// Build produces the fully-resolved message for a recipient.
func (b *ContentBuilder) Build(c *domain.Campaign, r *domain.Recipient) *domain.EmailMessage {
	bindings := b.bindings(r)

	subject := b.render(c.Subject, bindings)
	html := b.render(c.HTMLBody, bindings)
	html = b.codec.InjectTracking(html, c.ID, r.ID)

	return &domain.EmailMessage{
		CampaignID:  c.ID,
		RecipientID: r.ID,
		Email:       r.Email,
		Name:        r.Name,
		FromName:    c.FromName,
		FromEmail:   c.FromEmail,
		ReplyTo:     c.ReplyTo,
		Subject:     subject,
		HTMLBody:    html,
	}
}

func (b *ContentBuilder) bindings(r *domain.Recipient) map[string]interface{} {
	firstName := r.Name
	if idx := strings.IndexByte(firstName, ' '); idx > 0 {
		firstName = firstName[:idx]
	}

	bindings := map[string]interface{}{
		"email":      r.Email,
		"name":       r.Name,
		"first_name": firstName,
		"user_id":    r.UserID,
	}
	for k, v := range r.MergeData {
		bindings[k] = v
	}
	return bindings
}

func (b *ContentBuilder) render(tmpl string, bindings map[string]interface{}) string {
	out, err := b.engine.ParseAndRenderString(tmpl, bindings)
	if err != nil {
		logger.Warn("merge render failed, using raw template", "error", err.Error())
		return tmpl
	}
	return out
}

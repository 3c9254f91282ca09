package dispatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/tracking"
)

func testBuilder() *ContentBuilder {
	return NewContentBuilder(tracking.NewCodec("https://track.example.com", "secret-key"))
}

func TestBuildMergeFields(t *testing.T) {
	b := testBuilder()

	c := &domain.Campaign{
		ID:        "camp-1",
		Subject:   "Hi {{ first_name }}!",
		FromName:  "Deals",
		FromEmail: "deals@example.com",
		HTMLBody:  `<body>Hello {{ name }} ({{ email }}), code {{ promo }}</body>`,
	}
	r := &domain.Recipient{
		ID:     "rec-1",
		UserID: "user-1",
		Email:  "jordan@example.com",
		Name:   "Jordan Smith",
		MergeData: map[string]string{
			"promo": "SAVE20",
		},
	}

	msg := b.Build(c, r)

	assert.Equal(t, "Hi Jordan!", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "Hello Jordan Smith (jordan@example.com)")
	assert.Contains(t, msg.HTMLBody, "code SAVE20")
	assert.Equal(t, "jordan@example.com", msg.Email)
	assert.Equal(t, "deals@example.com", msg.FromEmail)
}

func TestBuildInjectsTracking(t *testing.T) {
	b := testBuilder()

	c := &domain.Campaign{
		ID:       "camp-1",
		Subject:  "s",
		HTMLBody: `<body><a href="https://shop.example.com">shop</a></body>`,
	}
	r := &domain.Recipient{ID: "rec-1", Email: "a@example.com"}

	msg := b.Build(c, r)

	assert.Contains(t, msg.HTMLBody, "/track/open?d=")
	assert.Contains(t, msg.HTMLBody, "/track/click?d=")
	assert.NotContains(t, msg.HTMLBody, `href="https://shop.example.com"`)
}

func TestBuildBadTemplateFailsOpen(t *testing.T) {
	b := testBuilder()

	c := &domain.Campaign{
		ID:       "camp-1",
		Subject:  "Hello {{ unclosed",
		HTMLBody: `<body>{% bogus %}</body>`,
	}
	r := &domain.Recipient{ID: "rec-1", Email: "a@example.com", Name: "A"}

	msg := b.Build(c, r)

	// raw templates survive; the send still happens
	assert.Equal(t, "Hello {{ unclosed", msg.Subject)
	assert.True(t, strings.Contains(msg.HTMLBody, "{% bogus %}"))
}

func TestBuildFirstNameFallsBackToFullName(t *testing.T) {
	b := testBuilder()

	c := &domain.Campaign{ID: "camp-1", Subject: "{{ first_name }}"}
	r := &domain.Recipient{ID: "rec-1", Email: "a@example.com", Name: "Cher"}

	msg := b.Build(c, r)
	assert.Equal(t, "Cher", msg.Subject)
}

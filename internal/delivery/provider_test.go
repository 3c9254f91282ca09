package delivery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

type stubTransport struct {
	kind  domain.TransportType
	id    string
	err   error
	calls int
}

func (s *stubTransport) Type() domain.TransportType { return s.kind }

func (s *stubTransport) Send(context.Context, *domain.EmailMessage) (string, error) {
	s.calls++
	return s.id, s.err
}

func testMsg() *domain.EmailMessage {
	return &domain.EmailMessage{RecipientID: "r1", Email: "a@example.com"}
}

func TestProviderPrimarySuccess(t *testing.T) {
	primary := &stubTransport{kind: domain.TransportSparkPost, id: "sp-1"}
	fallback := &stubTransport{kind: domain.TransportSES, id: "ses-1"}
	p := NewProvider(primary, fallback)

	res := p.Send(context.Background(), testMsg())

	assert.True(t, res.Success)
	assert.Equal(t, "sp-1", res.MessageID)
	assert.Equal(t, domain.TransportSparkPost, res.Provider)
	assert.False(t, res.FallbackUsed)
	assert.Equal(t, 0, fallback.calls)
}

func TestProviderFallsBackOnTransient(t *testing.T) {
	primary := &stubTransport{
		kind: domain.TransportSparkPost,
		err:  transient(domain.TransportSparkPost, "http_503", "service unavailable"),
	}
	fallback := &stubTransport{kind: domain.TransportSES, id: "ses-1"}
	p := NewProvider(primary, fallback)

	res := p.Send(context.Background(), testMsg())

	assert.True(t, res.Success)
	assert.Equal(t, "ses-1", res.MessageID)
	assert.Equal(t, domain.TransportSES, res.Provider)
	assert.True(t, res.FallbackUsed)
}

func TestProviderNoFallbackOnPermanent(t *testing.T) {
	primary := &stubTransport{
		kind: domain.TransportSparkPost,
		err:  permanent(domain.TransportSparkPost, "1902", "invalid recipient"),
	}
	fallback := &stubTransport{kind: domain.TransportSES, id: "ses-1"}
	p := NewProvider(primary, fallback)

	res := p.Send(context.Background(), testMsg())

	assert.False(t, res.Success)
	assert.True(t, res.Permanent)
	assert.Equal(t, domain.TransportSparkPost, res.Provider)
	assert.False(t, res.FallbackUsed)
	assert.Equal(t, 0, fallback.calls, "permanent failures must not hit the fallback")
}

func TestProviderBothFail(t *testing.T) {
	primary := &stubTransport{
		kind: domain.TransportSparkPost,
		err:  transient(domain.TransportSparkPost, "network", "connection refused"),
	}
	fallback := &stubTransport{
		kind: domain.TransportSES,
		err:  transient(domain.TransportSES, "throttle", "rate exceeded"),
	}
	p := NewProvider(primary, fallback)

	res := p.Send(context.Background(), testMsg())

	assert.False(t, res.Success)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, domain.TransportSES, res.Provider)
	assert.Contains(t, res.Error, "rate exceeded")
}

func TestProviderNilFallback(t *testing.T) {
	primary := &stubTransport{
		kind: domain.TransportSparkPost,
		err:  transient(domain.TransportSparkPost, "network", "timeout"),
	}
	p := NewProvider(primary, nil)

	res := p.Send(context.Background(), testMsg())

	assert.False(t, res.Success)
	assert.False(t, res.FallbackUsed)
	assert.Equal(t, 1, primary.calls)
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(permanent(domain.TransportSES, "x", "y")))
	assert.False(t, IsPermanent(transient(domain.TransportSES, "x", "y")))
	assert.False(t, IsPermanent(context.Canceled))
	assert.False(t, IsPermanent(nil))
}

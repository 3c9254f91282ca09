package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Memory is an in-process ledger used by unit tests and local development.
// It applies the same conditional-update semantics as the Postgres
// implementation, guarded by a single mutex.
type Memory struct {
	mu         sync.RWMutex
	campaigns  map[string]*domain.Campaign
	recipients map[string]map[string]*domain.Recipient // campaignID -> recipientID
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		campaigns:  make(map[string]*domain.Campaign),
		recipients: make(map[string]map[string]*domain.Recipient),
	}
}

// Campaigns returns the campaign side of the ledger.
func (m *Memory) Campaigns() Campaigns { return (*memCampaigns)(m) }

// Recipients returns the recipient side of the ledger.
func (m *Memory) Recipients() Recipients { return (*memRecipients)(m) }

type memCampaigns Memory

func (m *memCampaigns) Create(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *memCampaigns) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCampaigns) List(_ context.Context, limit, offset int) ([]*domain.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memCampaigns) Update(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[c.ID]; !ok {
		return ErrNotFound
	}
	cp := *c
	cp.UpdatedAt = time.Now().UTC()
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *memCampaigns) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return ErrNotFound
	}
	delete(m.campaigns, id)
	delete(m.recipients, id)
	return nil
}

func (m *memCampaigns) TransitionStatus(_ context.Context, id string, next domain.CampaignStatus, allowedFrom ...domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return ErrNotFound
	}
	if !statusAllowed(c.Status, allowedFrom) {
		return ErrStatusConflict
	}
	now := time.Now().UTC()
	c.Status = next
	c.UpdatedAt = now
	switch next {
	case domain.CampaignScheduled:
		c.ScheduledAt = &now
	case domain.CampaignSent:
		c.SentAt = &now
	}
	return nil
}

func (m *memCampaigns) Cancel(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return ErrNotFound
	}
	if c.Status != domain.CampaignScheduled && c.Status != domain.CampaignSending {
		return ErrStatusConflict
	}
	now := time.Now().UTC()
	c.Status = domain.CampaignCancelled
	c.CancelReason = reason
	c.CancelledAt = &now
	c.UpdatedAt = now
	return nil
}

func (m *memCampaigns) SaveStats(_ context.Context, id string, stats domain.CampaignStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return ErrNotFound
	}
	c.Stats = stats
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memCampaigns) IncrementRetryCount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return ErrNotFound
	}
	c.RetryCount++
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func statusAllowed(cur domain.CampaignStatus, allowed []domain.CampaignStatus) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, s := range allowed {
		if cur == s {
			return true
		}
	}
	return false
}

type memRecipients Memory

func (m *memRecipients) CreateBatch(_ context.Context, recipients []*domain.Recipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recipients {
		byID, ok := m.recipients[r.CampaignID]
		if !ok {
			byID = make(map[string]*domain.Recipient)
			m.recipients[r.CampaignID] = byID
		}
		cp := *r
		byID[r.ID] = &cp
	}
	return nil
}

func (m *memRecipients) Get(_ context.Context, campaignID, recipientID string) (*domain.Recipient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recipients[campaignID][recipientID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRecipients) ListByCampaign(_ context.Context, campaignID string) ([]*domain.Recipient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Recipient, 0, len(m.recipients[campaignID]))
	for _, r := range m.recipients[campaignID] {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRecipients) ListByStatus(_ context.Context, campaignID string, status domain.RecipientStatus) ([]*domain.Recipient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Recipient
	for _, r := range m.recipients[campaignID] {
		if r.Status == status {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRecipients) CountByStatus(_ context.Context, campaignID string, status domain.RecipientStatus) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.recipients[campaignID] {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *memRecipients) UpdateSendResults(_ context.Context, campaignID string, updates []SendUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, u := range updates {
		r, ok := m.recipients[campaignID][u.RecipientID]
		if !ok {
			continue
		}
		applySendUpdate(r, u, now)
	}
	return nil
}

func (m *memRecipients) UpdateRetryResult(_ context.Context, campaignID, recipientID string, update SendUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[campaignID][recipientID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	applySendUpdate(r, update, now)
	r.RetryCount++
	r.LastRetryAt = &now
	return nil
}

func applySendUpdate(r *domain.Recipient, u SendUpdate, now time.Time) {
	r.Status = u.Status
	r.ErrorMessage = u.ErrorMessage
	r.ErrorPermanent = u.ErrorPermanent
	if u.Provider != "" {
		r.EmailProvider = string(u.Provider)
	}
	r.FallbackUsed = u.FallbackUsed
	if u.SentAt != nil {
		r.SentAt = u.SentAt
	}
	r.UpdatedAt = now
}

func (m *memRecipients) RecordOpen(_ context.Context, campaignID, recipientID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[campaignID][recipientID]
	if !ok {
		return ErrNotFound
	}
	if r.AdvanceTo(domain.RecipientOpened) {
		r.Status = domain.RecipientOpened
	}
	r.OpenCount++
	if r.OpenedAt == nil {
		t := at
		r.OpenedAt = &t
	}
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memRecipients) RecordClick(_ context.Context, campaignID, recipientID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[campaignID][recipientID]
	if !ok {
		return ErrNotFound
	}
	if r.AdvanceTo(domain.RecipientClicked) {
		r.Status = domain.RecipientClicked
	}
	r.ClickCount++
	if r.ClickedAt == nil {
		t := at
		r.ClickedAt = &t
	}
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memRecipients) RecordBounce(_ context.Context, campaignID, recipientID, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[campaignID][recipientID]
	if !ok {
		return ErrNotFound
	}
	r.Status = domain.RecipientBounced
	r.ErrorMessage = reason
	r.UpdatedAt = time.Now().UTC()
	return nil
}

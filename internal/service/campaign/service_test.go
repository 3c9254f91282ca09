package campaign

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/ledger"
	"github.com/ignite/campaign-dispatch/internal/pkg/distlock"
)

type fakeAudience struct {
	members []Member
	err     error
	calls   int
}

func (f *fakeAudience) Resolve(context.Context, domain.TargetMode, map[string]string) ([]Member, error) {
	f.calls++
	return f.members, f.err
}

type fakePlanner struct {
	planned [][]string
	err     error
}

func (f *fakePlanner) Plan(_ context.Context, _ string, recipientIDs []string) (int, error) {
	f.planned = append(f.planned, recipientIDs)
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

func validInput() CreateInput {
	return CreateInput{
		Name:      "August Promo",
		Subject:   "Big sale",
		FromName:  "Deals",
		FromEmail: "deals@example.com",
		HTMLBody:  "<body>Hi {{ name }}</body>",
	}
}

func newTestService(members ...Member) (*Service, ledger.Store, *fakePlanner) {
	store := ledger.NewMemory()
	planner := &fakePlanner{}
	svc := NewService(store, &fakeAudience{members: members}, planner, nil)
	return svc, store, planner
}

func TestCreateCampaign(t *testing.T) {
	svc, _, _ := newTestService()

	c, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, domain.CampaignDraft, c.Status)
	assert.Equal(t, domain.TargetAll, c.TargetMode, "target mode defaults to all")
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing name", func(i *CreateInput) { i.Name = "" }},
		{"missing subject", func(i *CreateInput) { i.Subject = "" }},
		{"missing body", func(i *CreateInput) { i.HTMLBody = "" }},
		{"bad from email", func(i *CreateInput) { i.FromEmail = "not-an-address" }},
		{"empty from email", func(i *CreateInput) { i.FromEmail = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)
			_, err := svc.Create(ctx, input)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestUpdateOnlyBeforeSending(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	c, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	name := "Renamed"
	updated, err := svc.Update(ctx, c.ID, UpdateFields{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "Big sale", updated.Subject, "unset fields stay put")

	require.NoError(t, store.Campaigns().TransitionStatus(ctx, c.ID, domain.CampaignSending, domain.CampaignDraft))
	_, err = svc.Update(ctx, c.ID, UpdateFields{Name: &name})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeleteOnlyDrafts(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	c, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, store.Campaigns().TransitionStatus(ctx, c.ID, domain.CampaignScheduled, domain.CampaignDraft))
	assert.ErrorIs(t, svc.Delete(ctx, c.ID), ErrNotDraft)

	c2, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, c2.ID))

	_, err = svc.Get(ctx, c2.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScheduleTransitions(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Schedule(ctx, c.ID))

	// scheduling twice is a conflict, not a silent success
	assert.ErrorIs(t, svc.Schedule(ctx, c.ID), ErrInvalidTransition)
	assert.ErrorIs(t, svc.Schedule(ctx, "ghost"), ErrNotFound)
}

func TestSendMaterializesRecipients(t *testing.T) {
	svc, store, planner := newTestService(
		Member{UserID: "u1", Email: "one@example.com", Name: "One"},
		Member{UserID: "u2", Email: "two@example.com", Name: "Two"},
	)
	ctx := context.Background()

	c, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	n, err := svc.Send(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.Campaigns().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignSending, got.Status)

	pending, err := store.Recipients().ListByStatus(ctx, c.ID, domain.RecipientPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.Len(t, planner.planned, 1)
	assert.Len(t, planner.planned[0], 2)
}

func TestSendRelaunchReusesPending(t *testing.T) {
	svc, store, _ := newTestService(
		Member{UserID: "u1", Email: "one@example.com"},
	)
	ctx := context.Background()

	c, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	// simulate a half-completed launch: recipients exist, status reverted
	aud := svc.audience.(*fakeAudience)
	_, err = svc.Send(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, aud.calls)

	require.NoError(t, store.Campaigns().Update(ctx, mustGet(t, store, c.ID, domain.CampaignDraft)))

	n, err := svc.Send(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, aud.calls, "audience must not be re-resolved")

	all, err := store.Recipients().ListByCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1, "no duplicate recipients")
}

func mustGet(t *testing.T, store ledger.Store, id string, status domain.CampaignStatus) *domain.Campaign {
	t.Helper()
	c, err := store.Campaigns().Get(context.Background(), id)
	require.NoError(t, err)
	c.Status = status
	return c
}

func TestSendEmptyAudience(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	c, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.Send(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNoRecipients)

	got, err := store.Campaigns().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignDraft, got.Status, "a launch with no audience must not move the campaign")
}

func TestSendFromTerminalStates(t *testing.T) {
	svc, store, _ := newTestService(Member{UserID: "u1", Email: "one@example.com"})
	ctx := context.Background()

	c, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.Send(ctx, c.ID)
	require.NoError(t, err)

	// already sending
	_, err = svc.Send(ctx, c.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, store.Campaigns().TransitionStatus(ctx, c.ID, domain.CampaignSent, domain.CampaignSending))
	_, err = svc.Send(ctx, c.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

type fakeLock struct {
	held     bool
	released bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) { return !f.held, nil }
func (f *fakeLock) Release(context.Context) error         { f.released = true; return nil }

func TestSendLaunchLock(t *testing.T) {
	store := ledger.NewMemory()
	planner := &fakePlanner{}
	audience := &fakeAudience{members: []Member{{UserID: "u1", Email: "one@example.com"}}}
	lock := &fakeLock{held: true}
	svc := NewService(store, audience, planner, func(string) distlock.DistLock { return lock })
	ctx := context.Background()

	c, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.Send(ctx, c.ID)
	assert.ErrorIs(t, err, ErrLaunchInProgress)
	assert.Equal(t, 0, audience.calls, "a contended launch must not touch the audience")

	lock.held = false
	n, err := svc.Send(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, lock.released)
}

func TestCancelRequiresReason(t *testing.T) {
	svc, store, _ := newTestService(Member{UserID: "u1", Email: "one@example.com"})
	ctx := context.Background()

	c, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.Send(ctx, c.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Cancel(ctx, c.ID, ""), ErrReasonRequired)

	require.NoError(t, svc.Cancel(ctx, c.ID, "wrong segment"))
	got, err := store.Campaigns().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignCancelled, got.Status)
	assert.Equal(t, "wrong segment", got.CancelReason)
	assert.NotNil(t, got.CancelledAt)

	// cancelling a settled campaign is a conflict
	assert.ErrorIs(t, svc.Cancel(ctx, c.ID, "again"), ErrInvalidTransition)
}

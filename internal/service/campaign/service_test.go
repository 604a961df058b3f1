package campaign

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/acme/broadcast-dispatch/internal/domain"
	"github.com/acme/broadcast-dispatch/internal/repository"
	"github.com/acme/broadcast-dispatch/internal/schedule"
	apperrors "github.com/acme/broadcast-dispatch/pkg/errors"
)

type fakeCampaigns struct {
	byID map[uuid.UUID]*domain.Campaign
}

func newFakeCampaigns() *fakeCampaigns {
	return &fakeCampaigns{byID: make(map[uuid.UUID]*domain.Campaign)}
}

func (f *fakeCampaigns) Create(_ context.Context, c *domain.Campaign) error {
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeCampaigns) Get(_ context.Context, id uuid.UUID) (*domain.Campaign, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaigns) Update(_ context.Context, c *domain.Campaign) error {
	if _, ok := f.byID[c.ID]; !ok {
		return apperrors.ErrNotFound
	}
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeCampaigns) UpdateStatus(_ context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	c, ok := f.byID[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.Status = status
	return nil
}

func (f *fakeCampaigns) List(_ context.Context, _ uuid.UUID, _ *uuid.UUID, _ int) ([]*domain.Campaign, error) {
	out := make([]*domain.Campaign, 0, len(f.byID))
	for _, c := range f.byID {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeCampaigns) ListByStatus(_ context.Context, status domain.CampaignStatus, _ int) ([]*domain.Campaign, error) {
	var out []*domain.Campaign
	for _, c := range f.byID {
		if c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeWindows struct {
	window *domain.TimeWindow
}

func (f *fakeWindows) GetActive(_ context.Context, _ uuid.UUID) (*domain.TimeWindow, error) {
	if f.window == nil {
		return nil, apperrors.ErrNotFound
	}
	return f.window, nil
}

func (f *fakeWindows) Replace(_ context.Context, w *domain.TimeWindow) error {
	f.window = w
	return nil
}

type fakeInstances struct {
	byID map[uuid.UUID]*domain.Instance
}

func newFakeInstances(orgID uuid.UUID, n int) *fakeInstances {
	f := &fakeInstances{byID: make(map[uuid.UUID]*domain.Instance)}
	for i := 0; i < n; i++ {
		id := uuid.New()
		f.byID[id] = &domain.Instance{ID: id, OrganizationID: orgID, Label: fmt.Sprintf("instance-%d", i), Enabled: true}
	}
	return f
}

func (f *fakeInstances) Create(_ context.Context, instance *domain.Instance) error {
	f.byID[instance.ID] = instance
	return nil
}

func (f *fakeInstances) Get(_ context.Context, id uuid.UUID) (*domain.Instance, error) {
	instance, ok := f.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return instance, nil
}

func (f *fakeInstances) ListByOrganization(_ context.Context, orgID uuid.UUID) ([]*domain.Instance, error) {
	var out []*domain.Instance
	for _, instance := range f.byID {
		if instance.OrganizationID == orgID {
			out = append(out, instance)
		}
	}
	return out, nil
}

type fakeItems struct {
	items map[uuid.UUID]*domain.QueueItem
	order []uuid.UUID

	failBatchesFrom int // fail ApplySchedule calls with index >= this (-1 disables)
	applyCalls      int

	onCancelRemaining func()
}

func newFakeItems() *fakeItems {
	return &fakeItems{items: make(map[uuid.UUID]*domain.QueueItem), failBatchesFrom: -1}
}

func (f *fakeItems) BulkInsert(_ context.Context, _ uuid.UUID, items []domain.QueueItem) error {
	for i := range items {
		it := items[i]
		f.items[it.ID] = &it
		f.order = append(f.order, it.ID)
	}
	return nil
}

func (f *fakeItems) ListPending(_ context.Context, campaignID uuid.UUID) ([]domain.QueueItem, error) {
	var out []domain.QueueItem
	for _, id := range f.order {
		it := f.items[id]
		if it.CampaignID == campaignID && it.Status == domain.QueueItemStatusPending {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeItems) ApplySchedule(_ context.Context, _ uuid.UUID, updates []repository.ScheduleUpdate) error {
	call := f.applyCalls
	f.applyCalls++
	if f.failBatchesFrom >= 0 && call >= f.failBatchesFrom {
		return errors.New("storage unavailable")
	}
	for _, u := range updates {
		it, ok := f.items[u.ItemID]
		if !ok {
			return apperrors.ErrNotFound
		}
		t := u.ScheduledFor
		it.Status = domain.QueueItemStatusScheduled
		it.ScheduledFor = &t
		it.ExceptionNote = u.ExceptionNote
	}
	return nil
}

func (f *fakeItems) NextDue(_ context.Context, campaignID uuid.UUID, now time.Time, limit int) ([]domain.QueueItem, error) {
	var out []domain.QueueItem
	for _, id := range f.order {
		it := f.items[id]
		if it.CampaignID == campaignID && it.Status == domain.QueueItemStatusScheduled &&
			it.DispatchedAt == nil && it.ScheduledFor != nil && !it.ScheduledFor.After(now) {
			out = append(out, *it)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeItems) MarkDispatched(_ context.Context, _ uuid.UUID, itemIDs []uuid.UUID, at time.Time) error {
	for _, id := range itemIDs {
		if it, ok := f.items[id]; ok {
			t := at
			it.DispatchedAt = &t
		}
	}
	return nil
}

func (f *fakeItems) ResetDispatched(_ context.Context, _ uuid.UUID, itemIDs []uuid.UUID) error {
	for _, id := range itemIDs {
		if it, ok := f.items[id]; ok {
			it.DispatchedAt = nil
		}
	}
	return nil
}

func (f *fakeItems) SetStatus(_ context.Context, itemID uuid.UUID, status domain.QueueItemStatus, lastError *string) error {
	it, ok := f.items[itemID]
	if !ok {
		return apperrors.ErrNotFound
	}
	it.Status = status
	it.LastError = lastError
	return nil
}

func (f *fakeItems) CancelRemaining(_ context.Context, campaignID uuid.UUID) (int64, error) {
	if f.onCancelRemaining != nil {
		f.onCancelRemaining()
	}
	var n int64
	for _, it := range f.items {
		if it.CampaignID == campaignID &&
			(it.Status == domain.QueueItemStatusPending || it.Status == domain.QueueItemStatusScheduled) {
			it.Status = domain.QueueItemStatusCancelled
			n++
		}
	}
	return n, nil
}

func (f *fakeItems) CountRemaining(_ context.Context, campaignID uuid.UUID) (int64, error) {
	var n int64
	for _, it := range f.items {
		if it.CampaignID == campaignID &&
			(it.Status == domain.QueueItemStatusPending || it.Status == domain.QueueItemStatusScheduled) {
			n++
		}
	}
	return n, nil
}

func (f *fakeItems) ListByCampaign(_ context.Context, campaignID uuid.UUID, limit int, status string) ([]domain.QueueItem, error) {
	var out []domain.QueueItem
	for _, id := range f.order {
		it := f.items[id]
		if it.CampaignID != campaignID {
			continue
		}
		if status != "" && string(it.Status) != status {
			continue
		}
		out = append(out, *it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeStats struct {
	byID map[uuid.UUID]*domain.CampaignStats
}

func newFakeStats() *fakeStats {
	return &fakeStats{byID: make(map[uuid.UUID]*domain.CampaignStats)}
}

func (f *fakeStats) Ensure(_ context.Context, campaignID uuid.UUID) error {
	if _, ok := f.byID[campaignID]; !ok {
		f.byID[campaignID] = &domain.CampaignStats{}
	}
	return nil
}

func (f *fakeStats) Get(_ context.Context, campaignID uuid.UUID) (*domain.CampaignStats, error) {
	stats, ok := f.byID[campaignID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *stats
	return &cp, nil
}

func (f *fakeStats) ApplyDelta(_ context.Context, campaignID uuid.UUID, delta repository.StatsDelta) error {
	stats, ok := f.byID[campaignID]
	if !ok {
		stats = &domain.CampaignStats{}
		f.byID[campaignID] = stats
	}
	stats.TotalMessages += delta.TotalDelta
	stats.ScheduledMessages += delta.ScheduledDelta
	stats.SentMessages += delta.SentDelta
	stats.FailedMessages += delta.FailedDelta
	stats.CancelledMessages += delta.CancelledDelta
	stats.RetriesAttempted += delta.RetriesDelta
	return nil
}

type fakeDeliveryLog struct {
	attempts []domain.DeliveryAttempt
}

func (f *fakeDeliveryLog) Append(_ context.Context, attempt domain.DeliveryAttempt) error {
	f.attempts = append(f.attempts, attempt)
	return nil
}

func (f *fakeDeliveryLog) ListByCampaign(_ context.Context, campaignID uuid.UUID, _ int, _ []byte) ([]domain.DeliveryAttempt, []byte, error) {
	var out []domain.DeliveryAttempt
	for _, a := range f.attempts {
		if a.CampaignID == campaignID {
			out = append(out, a)
		}
	}
	return out, nil, nil
}

type fixture struct {
	svc       *Service
	campaigns *fakeCampaigns
	windows   *fakeWindows
	instances *fakeInstances
	items     *fakeItems
	stats     *fakeStats
	orgID     uuid.UUID
	now       time.Time
}

// 2024-01-01 is a Monday; the fixture clock sits inside business hours.
func newFixture(t *testing.T, instanceCount int) *fixture {
	t.Helper()
	orgID := uuid.New()
	f := &fixture{
		campaigns: newFakeCampaigns(),
		windows:   &fakeWindows{},
		instances: newFakeInstances(orgID, instanceCount),
		items:     newFakeItems(),
		stats:     newFakeStats(),
		orgID:     orgID,
		now:       time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	clock := schedule.ClockFunc(func() time.Time { return f.now })
	f.svc = NewService(f.campaigns, f.windows, f.instances, f.items, f.stats, &fakeDeliveryLog{}, clock, 2, 0)
	return f
}

func (f *fixture) enableBusinessWeek() {
	rules := make([]domain.WindowRule, 0, 5)
	for day := time.Monday; day <= time.Friday; day++ {
		rules = append(rules, domain.WindowRule{DayOfWeek: day, StartMinute: 9 * 60, EndMinute: 18 * 60})
	}
	f.windows.window = &domain.TimeWindow{ID: uuid.New(), OrganizationID: f.orgID, Name: "business hours", Enabled: true, Rules: rules}
}

func (f *fixture) createCampaign(t *testing.T, contactCount int, mode domain.SendingMode) *domain.Campaign {
	t.Helper()
	contacts := make([]ContactInput, 0, contactCount)
	for i := 0; i < contactCount; i++ {
		contacts = append(contacts, ContactInput{
			Phone: fmt.Sprintf("+155500000%02d", i),
			Name:  fmt.Sprintf("contact %d", i),
			Body:  fmt.Sprintf("hello %d", i),
		})
	}
	campaign, err := f.svc.Create(context.Background(), CreateCampaignInput{
		OrganizationID:  f.orgID,
		Name:            "launch",
		SendingMode:     mode,
		MinDelaySeconds: 20,
		MaxDelaySeconds: 40,
		Contacts:        contacts,
	})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return campaign
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	cases := []CreateCampaignInput{
		{OrganizationID: f.orgID, SendingMode: domain.SendingModeSingle, MinDelaySeconds: 20, MaxDelaySeconds: 40,
			Contacts: []ContactInput{{Phone: "+15550001", Body: "hi"}}},
		{OrganizationID: f.orgID, Name: "x", SendingMode: "broadcast", MinDelaySeconds: 20, MaxDelaySeconds: 40,
			Contacts: []ContactInput{{Phone: "+15550001", Body: "hi"}}},
		{OrganizationID: f.orgID, Name: "x", SendingMode: domain.SendingModeSingle, MinDelaySeconds: 20, MaxDelaySeconds: 40},
		{OrganizationID: f.orgID, Name: "x", SendingMode: domain.SendingModeSingle, MinDelaySeconds: 5, MaxDelaySeconds: 40,
			Contacts: []ContactInput{{Phone: "+15550001", Body: "hi"}}},
		{OrganizationID: f.orgID, Name: "x", SendingMode: domain.SendingModeSingle, MinDelaySeconds: 60, MaxDelaySeconds: 40,
			Contacts: []ContactInput{{Phone: "+15550001", Body: "hi"}}},
	}

	for i, tc := range cases {
		if _, err := f.svc.Create(ctx, tc); !apperrors.Is(err, apperrors.ErrValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestCreateMaterializesQueue(t *testing.T) {
	f := newFixture(t, 2)
	campaign := f.createCampaign(t, 3, domain.SendingModeSeparate)

	pending, err := f.items.ListPending(context.Background(), campaign.ID)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 6 {
		t.Fatalf("expected 6 queue items for 3 contacts x 2 instances, got %d", len(pending))
	}
	for i, it := range pending {
		if it.Position != i {
			t.Errorf("item %d has position %d", i, it.Position)
		}
		if it.Body == "" {
			t.Errorf("item %d has no body", i)
		}
	}

	stats, err := f.stats.Get(context.Background(), campaign.ID)
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats.TotalMessages != 6 {
		t.Fatalf("expected total 6, got %d", stats.TotalMessages)
	}
}

func TestStartSchedulesAndRuns(t *testing.T) {
	f := newFixture(t, 1)
	f.enableBusinessWeek()
	campaign := f.createCampaign(t, 5, domain.SendingModeSingle)

	started, err := f.svc.Start(context.Background(), StartInput{CampaignID: campaign.ID, Policy: schedule.PolicyReschedule})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != domain.CampaignStatusRunning {
		t.Fatalf("expected running, got %s", started.Status)
	}
	if started.StartedAt == nil {
		t.Fatal("expected StartedAt to be set")
	}

	scheduled, err := f.items.ListByCampaign(context.Background(), campaign.ID, 0, string(domain.QueueItemStatusScheduled))
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(scheduled) != 5 {
		t.Fatalf("expected 5 scheduled items, got %d", len(scheduled))
	}

	prev := f.now
	for i, it := range scheduled {
		if it.ScheduledFor == nil {
			t.Fatalf("item %d has no schedule", i)
		}
		if !it.ScheduledFor.After(prev) {
			t.Fatalf("item %d at %s is not after %s", i, it.ScheduledFor, prev)
		}
		prev = *it.ScheduledFor
	}

	stats, _ := f.stats.Get(context.Background(), campaign.ID)
	if stats.ScheduledMessages != 5 {
		t.Fatalf("expected 5 counted as scheduled, got %d", stats.ScheduledMessages)
	}
}

func TestStartRejectsClosedWindow(t *testing.T) {
	f := newFixture(t, 1)
	f.enableBusinessWeek()
	f.now = time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC) // Saturday
	campaign := f.createCampaign(t, 2, domain.SendingModeSingle)

	_, err := f.svc.Start(context.Background(), StartInput{CampaignID: campaign.ID, Policy: schedule.PolicyReschedule})
	if !apperrors.Is(err, apperrors.ErrWindowClosed) {
		t.Fatalf("expected window closed error, got %v", err)
	}

	got, _ := f.campaigns.Get(context.Background(), campaign.ID)
	if got.Status != domain.CampaignStatusDraft {
		t.Fatalf("campaign should stay draft, got %s", got.Status)
	}
}

func TestStartExceptionBypassesClosedWindow(t *testing.T) {
	f := newFixture(t, 1)
	f.enableBusinessWeek()
	f.now = time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC) // Saturday
	campaign := f.createCampaign(t, 2, domain.SendingModeSingle)

	started, err := f.svc.Start(context.Background(), StartInput{CampaignID: campaign.ID, Policy: schedule.PolicyException})
	if err != nil {
		t.Fatalf("start with exception policy: %v", err)
	}
	if started.Status != domain.CampaignStatusRunning {
		t.Fatalf("expected running, got %s", started.Status)
	}

	scheduled, _ := f.items.ListByCampaign(context.Background(), campaign.ID, 0, string(domain.QueueItemStatusScheduled))
	for _, it := range scheduled {
		if it.ExceptionNote == "" {
			t.Errorf("item %s scheduled on Saturday without exception note", it.ID)
		}
	}
}

func TestStartEditReplacesDelays(t *testing.T) {
	f := newFixture(t, 1)
	campaign := f.createCampaign(t, 2, domain.SendingModeSingle)

	minD, maxD := 30, 90
	started, err := f.svc.Start(context.Background(), StartInput{
		CampaignID:      campaign.ID,
		Policy:          schedule.PolicyEdit,
		MinDelaySeconds: &minD,
		MaxDelaySeconds: &maxD,
	})
	if err != nil {
		t.Fatalf("start with edit policy: %v", err)
	}
	if started.MinDelaySeconds != 30 || started.MaxDelaySeconds != 90 {
		t.Fatalf("expected delays 30/90, got %d/%d", started.MinDelaySeconds, started.MaxDelaySeconds)
	}

	// mean of 30 and 90 is 60s between the two items
	scheduled, _ := f.items.ListByCampaign(context.Background(), campaign.ID, 0, string(domain.QueueItemStatusScheduled))
	if len(scheduled) != 2 {
		t.Fatalf("expected 2 scheduled items, got %d", len(scheduled))
	}
	gap := scheduled[1].ScheduledFor.Sub(*scheduled[0].ScheduledFor)
	if gap != 60*time.Second {
		t.Fatalf("expected 60s gap, got %s", gap)
	}

	_, err = f.svc.Start(context.Background(), StartInput{CampaignID: campaign.ID, Policy: schedule.PolicyEdit})
	if !apperrors.Is(err, apperrors.ErrInvalidTransition) && !apperrors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected error restarting campaign, got %v", err)
	}
}

func TestStartPartialPersistenceKeepsDraft(t *testing.T) {
	f := newFixture(t, 1)
	campaign := f.createCampaign(t, 5, domain.SendingModeSingle)

	// batch size is 2: batches of 2+2+1, fail from the second batch on
	f.items.failBatchesFrom = 1

	_, err := f.svc.Start(context.Background(), StartInput{CampaignID: campaign.ID, Policy: schedule.PolicyReschedule})
	var partial *PartialScheduleError
	if !errors.As(err, &partial) {
		t.Fatalf("expected partial schedule error, got %v", err)
	}
	if partial.Failed != 3 || partial.Total != 5 {
		t.Fatalf("expected 3 of 5 failed, got %d of %d", partial.Failed, partial.Total)
	}

	got, _ := f.campaigns.Get(context.Background(), campaign.ID)
	if got.Status != domain.CampaignStatusDraft {
		t.Fatalf("campaign should stay draft after partial commit, got %s", got.Status)
	}
}

func TestCancelFlipsCampaignBeforeQueue(t *testing.T) {
	f := newFixture(t, 1)
	campaign := f.createCampaign(t, 3, domain.SendingModeSingle)
	if _, err := f.svc.Start(context.Background(), StartInput{CampaignID: campaign.ID, Policy: schedule.PolicyReschedule}); err != nil {
		t.Fatalf("start: %v", err)
	}

	var statusAtCancel domain.CampaignStatus
	f.items.onCancelRemaining = func() {
		c, _ := f.campaigns.Get(context.Background(), campaign.ID)
		statusAtCancel = c.Status
	}

	if err := f.svc.Cancel(context.Background(), campaign.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if statusAtCancel != domain.CampaignStatusCancelled {
		t.Fatalf("queue items were cancelled before the campaign row, saw status %s", statusAtCancel)
	}

	remaining, _ := f.items.CountRemaining(context.Background(), campaign.ID)
	if remaining != 0 {
		t.Fatalf("expected no remaining items, got %d", remaining)
	}

	stats, _ := f.stats.Get(context.Background(), campaign.ID)
	if stats.CancelledMessages != 3 {
		t.Fatalf("expected 3 cancelled, got %d", stats.CancelledMessages)
	}
}

func TestPauseResumeTransitions(t *testing.T) {
	f := newFixture(t, 1)
	campaign := f.createCampaign(t, 2, domain.SendingModeSingle)
	ctx := context.Background()

	if err := f.svc.Pause(ctx, campaign.ID); !apperrors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition pausing a draft, got %v", err)
	}

	if _, err := f.svc.Start(ctx, StartInput{CampaignID: campaign.ID, Policy: schedule.PolicyReschedule}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.svc.Pause(ctx, campaign.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := f.svc.Pause(ctx, campaign.ID); !apperrors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition pausing twice, got %v", err)
	}
	if err := f.svc.Resume(ctx, campaign.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}

	got, _ := f.campaigns.Get(ctx, campaign.ID)
	if got.Status != domain.CampaignStatusRunning {
		t.Fatalf("expected running after resume, got %s", got.Status)
	}
}

func TestPreviewMatchesExceptionCommit(t *testing.T) {
	f := newFixture(t, 1)
	f.enableBusinessWeek()
	// 17:58 Monday, 30s mean delay: some of 10 messages spill past 18:00
	f.now = time.Date(2024, 1, 1, 17, 58, 0, 0, time.UTC)
	campaign := f.createCampaign(t, 10, domain.SendingModeSingle)
	ctx := context.Background()

	summary, err := f.svc.Preview(ctx, campaign.ID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if summary.TotalMessages != 10 {
		t.Fatalf("expected 10 total, got %d", summary.TotalMessages)
	}
	if summary.MessagesOutOfWindow == 0 {
		t.Fatal("expected some messages out of window")
	}

	if _, err := f.svc.Start(ctx, StartInput{CampaignID: campaign.ID, Policy: schedule.PolicyException}); err != nil {
		t.Fatalf("start: %v", err)
	}
	scheduled, _ := f.items.ListByCampaign(ctx, campaign.ID, 0, string(domain.QueueItemStatusScheduled))
	tagged := 0
	for _, it := range scheduled {
		if it.ExceptionNote != "" {
			tagged++
		}
	}
	if tagged != summary.MessagesOutOfWindow {
		t.Fatalf("preview reported %d out of window but commit tagged %d", summary.MessagesOutOfWindow, tagged)
	}
}

func TestGetPopulatesCounters(t *testing.T) {
	f := newFixture(t, 1)
	campaign := f.createCampaign(t, 2, domain.SendingModeSingle)
	ctx := context.Background()

	if err := f.stats.ApplyDelta(ctx, campaign.ID, repository.StatsDelta{SentDelta: 1, FailedDelta: 1}); err != nil {
		t.Fatalf("apply delta: %v", err)
	}

	got, err := f.svc.Get(ctx, campaign.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SentCount != 1 || got.FailedCount != 1 {
		t.Fatalf("expected counters 1/1, got %d/%d", got.SentCount, got.FailedCount)
	}
}

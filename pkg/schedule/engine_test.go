package schedule

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailcraft/mailcraft/pkg/email"
)

type memStore struct {
	nextID int64
	recs   map[int64]*Email
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[int64]*Email)}
}

func (s *memStore) add(rec *Email) *Email {
	s.nextID++
	rec.ID = s.nextID
	if rec.UUID == "" {
		rec.UUID = uuid.NewString()
	}
	clone := *rec
	s.recs[rec.ID] = &clone
	return rec
}

func (s *memStore) Create(_ context.Context, rec *Email) error {
	s.add(rec)
	return nil
}

func (s *memStore) Update(_ context.Context, rec *Email) error {
	if _, ok := s.recs[rec.ID]; !ok {
		return ErrNotFound
	}
	clone := *rec
	s.recs[rec.ID] = &clone
	return nil
}

func (s *memStore) FindByUUID(_ context.Context, id string) (*Email, error) {
	for _, rec := range s.recs {
		if rec.UUID == id {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]*Email, error) {
	var due []*Email
	for _, rec := range s.recs {
		if rec.Status == StatusPending && !rec.ScheduledAt.After(now) {
			due = append(due, rec)
		}
	}
	slices.SortFunc(due, func(a, b *Email) int { return a.ScheduledAt.Compare(b.ScheduledAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]*Email, 0, len(due))
	for _, rec := range due {
		rec.Status = StatusProcessing
		clone := *rec
		out = append(out, &clone)
	}
	return out, nil
}

func (s *memStore) FindDueRetryable(_ context.Context, maxAttempts, limit int) ([]*Email, error) {
	var out []*Email
	for _, rec := range s.recs {
		if rec.Status == StatusFailed && rec.RetryAttempts < maxAttempts {
			clone := *rec
			out = append(out, &clone)
		}
	}
	slices.SortFunc(out, func(a, b *Email) int { return int(a.ID - b.ID) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) CountChain(_ context.Context, id int64) (int, error) {
	root := id
	for {
		rec, ok := s.recs[root]
		if !ok {
			return 0, ErrNotFound
		}
		if rec.ParentID == nil {
			break
		}
		root = *rec.ParentID
	}

	count := 0
	var walk func(id int64)
	walk = func(id int64) {
		count++
		for _, rec := range s.recs {
			if rec.ParentID != nil && *rec.ParentID == id {
				walk(rec.ID)
			}
		}
	}
	walk(root)
	return count, nil
}

func (s *memStore) FindSentWithoutChild(_ context.Context, since time.Time, limit int) ([]*Email, error) {
	var out []*Email
	for _, rec := range s.recs {
		if rec.Status != StatusSent || rec.Frequency == "" || rec.SentAt == nil || rec.SentAt.Before(since) {
			continue
		}
		hasChild := false
		for _, other := range s.recs {
			if other.ParentID != nil && *other.ParentID == rec.ID {
				hasChild = true
				break
			}
		}
		if !hasChild {
			clone := *rec
			out = append(out, &clone)
		}
	}
	slices.SortFunc(out, func(a, b *Email) int { return int(a.ID - b.ID) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) CancelExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, rec := range s.recs {
		if rec.Status == StatusPending && rec.Expired(now) {
			rec.Status = StatusCancelled
			n++
		}
	}
	return n, nil
}

func (s *memStore) FailExhausted(_ context.Context, maxAttempts int) (int64, error) {
	var n int64
	for _, rec := range s.recs {
		if rec.Status == StatusPending && rec.RetryAttempts >= maxAttempts {
			rec.Status = StatusFailed
			n++
		}
	}
	return n, nil
}

type fakeDeliverer struct {
	err   error
	calls int
	seen  []int64
}

func (d *fakeDeliverer) Deliver(_ context.Context, rec *Email) error {
	d.calls++
	d.seen = append(d.seen, rec.ID)
	return d.err
}

func pendingRecord(scheduledAt time.Time) *Email {
	return &Email{
		UUID:             uuid.NewString(),
		Status:           StatusPending,
		ScheduledAt:      scheduledAt,
		Subject:          "Hi",
		HTMLBody:         "<p>hi</p>",
		To:               []email.Address{{Address: "a@b.com"}},
		OccurrenceNumber: 1,
	}
}

func newTestEngine(store Store, d Deliverer, now time.Time, mutate func(*Config)) *Engine {
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewEngine(store, d, cfg, WithEngineClock(fixedClock(now)))
}

func TestEngine_NotDueNotProcessed(t *testing.T) {
	t.Parallel()

	now := date(2026, time.March, 10, 12, 0)
	store := newMemStore()
	rec := store.add(pendingRecord(now.Add(time.Hour)))

	d := &fakeDeliverer{}
	eng := newTestEngine(store, d, now, nil)

	stats, err := eng.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)
	assert.Zero(t, stats.Claimed)
	assert.Zero(t, d.calls)
	assert.Equal(t, StatusPending, store.recs[rec.ID].Status)
}

func TestEngine_DueRecordSent(t *testing.T) {
	t.Parallel()

	now := date(2026, time.March, 10, 12, 0)
	store := newMemStore()
	rec := store.add(pendingRecord(now.Add(-time.Minute)))

	d := &fakeDeliverer{}
	eng := newTestEngine(store, d, now, nil)

	stats, err := eng.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Claimed)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, d.calls)

	got := store.recs[rec.ID]
	assert.Equal(t, StatusSent, got.Status)
	require.NotNil(t, got.SentAt)
	assert.Equal(t, now, *got.SentAt)
}

func TestEngine_RetryThenPermanentFailure(t *testing.T) {
	t.Parallel()

	now := date(2026, time.March, 10, 12, 0)
	store := newMemStore()
	rec := store.add(pendingRecord(now.Add(-time.Minute)))

	d := &fakeDeliverer{err: errors.New("transport down")}
	eng := newTestEngine(store, d, now, func(c *Config) {
		c.Retry.MaxAttempts = 2
	})

	// First attempt: retry scheduled with backoff in [5m, 6.5m].
	stats, err := eng.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Retried)

	got := store.recs[rec.ID]
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, 1, got.RetryAttempts)
	assert.Equal(t, "transport down", got.LastError)
	assert.True(t, got.ScheduledAt.After(now.Add(5*time.Minute)) || got.ScheduledAt.Equal(now.Add(5*time.Minute)))
	assert.False(t, got.ScheduledAt.After(now.Add(6*time.Minute+30*time.Second)))

	// Second attempt at the new due time: budget exhausted, failed for good.
	later := got.ScheduledAt.Add(time.Second)
	eng = newTestEngine(store, d, later, func(c *Config) {
		c.Retry.MaxAttempts = 2
	})
	stats, err = eng.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	got = store.recs[rec.ID]
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, 2, got.RetryAttempts)
	assert.Equal(t, 2, d.calls)
}

func TestEngine_BackoffGrowsPerAttempt(t *testing.T) {
	t.Parallel()

	now := date(2026, time.March, 10, 12, 0)
	store := newMemStore()
	rec := store.add(pendingRecord(now.Add(-time.Minute)))

	d := &fakeDeliverer{err: errors.New("transport down")}
	eng := newTestEngine(store, d, now, nil)

	// First failure: base delay plus up to 30% jitter.
	_, err := eng.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	got := store.recs[rec.ID]
	first := got.ScheduledAt.Sub(now)
	assert.GreaterOrEqual(t, first, 5*time.Minute)
	assert.LessOrEqual(t, first, 6*time.Minute+30*time.Second)

	// Second failure: the delay doubles.
	later := got.ScheduledAt.Add(time.Second)
	eng = newTestEngine(store, d, later, nil)
	_, err = eng.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	got = store.recs[rec.ID]
	second := got.ScheduledAt.Sub(later)
	assert.GreaterOrEqual(t, second, 10*time.Minute)
	assert.LessOrEqual(t, second, 13*time.Minute)
}

func TestEngine_ExpiredCancelled(t *testing.T) {
	t.Parallel()

	now := date(2026, time.March, 10, 12, 0)
	expires := now.Add(-time.Hour)
	store := newMemStore()
	rec := pendingRecord(now.Add(-2 * time.Hour))
	rec.ExpiresAt = &expires
	store.add(rec)

	d := &fakeDeliverer{}
	eng := newTestEngine(store, d, now, nil)

	stats, err := eng.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Cancelled)
	assert.Zero(t, d.calls)
	assert.Equal(t, StatusCancelled, store.recs[rec.ID].Status)
}

func TestEngine_ConditionsDeferNotFail(t *testing.T) {
	t.Parallel()

	now := date(2026, time.March, 8, 12, 0) // a Sunday
	store := newMemStore()
	rec := pendingRecord(now.Add(-time.Minute))
	rec.Conditions = []Condition{{Type: ConditionTime, DaysOfWeek: []time.Weekday{time.Monday}}}
	store.add(rec)

	d := &fakeDeliverer{}
	cfg := DefaultConfig()
	eng := NewEngine(store, d, cfg,
		WithEngineClock(fixedClock(now)),
		WithEvaluator(NewEvaluator(WithClock(fixedClock(now)))),
	)

	stats, err := eng.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deferred)
	assert.Zero(t, d.calls)

	got := store.recs[rec.ID]
	assert.Equal(t, StatusPending, got.Status)
	assert.Zero(t, got.RetryAttempts)
	assert.Empty(t, got.LastError)
}

func TestEngine_RecurringSendSpawnsChild(t *testing.T) {
	t.Parallel()

	now := date(2026, time.March, 10, 9, 0)
	store := newMemStore()
	rec := pendingRecord(now.Add(-time.Minute))
	rec.Frequency = FrequencyDaily
	parent := store.add(rec)

	d := &fakeDeliverer{}
	eng := newTestEngine(store, d, now, nil)

	stats, err := eng.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Children)
	require.Len(t, store.recs, 2)

	var child *Email
	for _, r := range store.recs {
		if r.ID != parent.ID {
			child = r
		}
	}
	require.NotNil(t, child)
	assert.Equal(t, StatusPending, child.Status)
	assert.Equal(t, now.AddDate(0, 0, 1), child.ScheduledAt)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)
	assert.Equal(t, 2, child.OccurrenceNumber)
	assert.NotEqual(t, parent.UUID, child.UUID)
}

func TestEngine_MaxOccurrencesEndsChain(t *testing.T) {
	t.Parallel()

	now := date(2026, time.March, 10, 9, 0)
	store := newMemStore()

	sentAt := now
	root := store.add(&Email{
		UUID: "root", Status: StatusSent, SentAt: &sentAt,
		Frequency:        FrequencyDaily,
		FrequencyOptions: FrequencyOptions{MaxOccurrences: 3},
		OccurrenceNumber: 1,
	})
	second := store.add(&Email{
		UUID: "second", Status: StatusSent, SentAt: &sentAt,
		Frequency:        FrequencyDaily,
		FrequencyOptions: FrequencyOptions{MaxOccurrences: 3},
		ParentID:         &root.ID, OccurrenceNumber: 2,
	})
	third := store.add(&Email{
		UUID: "third", Status: StatusSent, SentAt: &sentAt,
		Frequency:        FrequencyDaily,
		FrequencyOptions: FrequencyOptions{MaxOccurrences: 3},
		ParentID:         &second.ID, OccurrenceNumber: 3,
	})

	eng := newTestEngine(store, &fakeDeliverer{}, now, nil)

	child, err := eng.CreateNextOccurrence(context.Background(), third)
	require.NoError(t, err)
	assert.Nil(t, child)
	assert.Len(t, store.recs, 3)
}

func TestEngine_ExpiryEndsChain(t *testing.T) {
	t.Parallel()

	now := date(2026, time.March, 10, 9, 0)
	expires := now.Add(12 * time.Hour) // before the next daily occurrence
	store := newMemStore()

	sentAt := now
	rec := store.add(&Email{
		UUID: "root", Status: StatusSent, SentAt: &sentAt,
		ExpiresAt:        &expires,
		Frequency:        FrequencyDaily,
		OccurrenceNumber: 1,
	})

	eng := newTestEngine(store, &fakeDeliverer{}, now, nil)

	child, err := eng.CreateNextOccurrence(context.Background(), rec)
	require.NoError(t, err)
	assert.Nil(t, child)
	assert.Len(t, store.recs, 1)
}

func TestEngine_DisabledFrequencySkipsChain(t *testing.T) {
	t.Parallel()

	now := date(2026, time.March, 10, 9, 0)
	store := newMemStore()
	sentAt := now
	rec := store.add(&Email{
		UUID: "root", Status: StatusSent, SentAt: &sentAt,
		Frequency: FrequencyDaily, OccurrenceNumber: 1,
	})

	eng := newTestEngine(store, &fakeDeliverer{}, now, func(c *Config) {
		c.Recurrence.DisabledFrequencies = []Frequency{FrequencyDaily}
	})

	child, err := eng.CreateNextOccurrence(context.Background(), rec)
	require.NoError(t, err)
	assert.Nil(t, child)
}

func TestEngine_RequeueFailedWithBudget(t *testing.T) {
	t.Parallel()

	now := date(2026, time.March, 10, 12, 0)
	store := newMemStore()
	retryable := store.add(&Email{
		UUID: "retryable", Status: StatusFailed, RetryAttempts: 1,
		ScheduledAt: now.Add(-time.Hour), OccurrenceNumber: 1,
	})
	exhausted := store.add(&Email{
		UUID: "exhausted", Status: StatusFailed, RetryAttempts: 3,
		ScheduledAt: now.Add(-time.Hour), OccurrenceNumber: 1,
	})

	d := &fakeDeliverer{}
	eng := newTestEngine(store, d, now, nil)

	stats, err := eng.ProcessBatch(context.Background(), BatchOptions{IncludeFailedRetries: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Requeued)

	got := store.recs[retryable.ID]
	assert.Equal(t, StatusPending, got.Status)
	// One attempt so far, so the requeue delay is the base delay plus jitter.
	delay := got.ScheduledAt.Sub(now)
	assert.GreaterOrEqual(t, delay, 5*time.Minute)
	assert.LessOrEqual(t, delay, 6*time.Minute+30*time.Second)

	assert.Equal(t, StatusFailed, store.recs[exhausted.ID].Status)
	// The requeued record is due in the future, so this pass sent nothing.
	assert.Zero(t, d.calls)
}

func TestEngine_ProcessRecurringBatchChainsMissing(t *testing.T) {
	t.Parallel()

	now := date(2026, time.March, 10, 9, 0)
	store := newMemStore()
	sentAt := now.Add(-time.Hour)
	store.add(&Email{
		UUID: "orphan", Status: StatusSent, SentAt: &sentAt,
		Frequency: FrequencyDaily, OccurrenceNumber: 1,
	})

	eng := newTestEngine(store, &fakeDeliverer{}, now, nil)

	created, err := eng.ProcessRecurringBatch(context.Background(), now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Len(t, store.recs, 2)

	// A second pass finds nothing: the chain already has its child.
	created, err = eng.ProcessRecurringBatch(context.Background(), now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestEngine_Cleanup(t *testing.T) {
	t.Parallel()

	now := date(2026, time.March, 10, 12, 0)
	expired := now.Add(-time.Hour)
	store := newMemStore()
	store.add(&Email{UUID: "expired", Status: StatusPending, ExpiresAt: &expired, ScheduledAt: now.Add(time.Hour), OccurrenceNumber: 1})
	store.add(&Email{UUID: "exhausted", Status: StatusPending, RetryAttempts: 3, ScheduledAt: now.Add(time.Hour), OccurrenceNumber: 1})
	store.add(&Email{UUID: "healthy", Status: StatusPending, ScheduledAt: now.Add(time.Hour), OccurrenceNumber: 1})

	eng := newTestEngine(store, &fakeDeliverer{}, now, nil)

	stats, err := eng.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Cancelled)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestEngine_BatchSizeLimitsClaim(t *testing.T) {
	t.Parallel()

	now := date(2026, time.March, 10, 12, 0)
	store := newMemStore()
	for i := range 5 {
		store.add(pendingRecord(now.Add(-time.Duration(i+1) * time.Minute)))
	}

	d := &fakeDeliverer{}
	eng := newTestEngine(store, d, now, nil)

	stats, err := eng.ProcessBatch(context.Background(), BatchOptions{BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Claimed)
	assert.Equal(t, 2, d.calls)

	// Oldest due first.
	assert.Equal(t, []int64{5, 4}, d.seen)
}

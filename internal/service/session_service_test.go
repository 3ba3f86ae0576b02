package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/zwlabs/examtrack-backend/internal/config"
	"github.com/zwlabs/examtrack-backend/internal/model"
)

// memStore is an in-memory SessionStore with the same atomicity contract as
// the PostgreSQL repository.
type memStore struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]model.ExamSession
	byKey map[[2]int64]uuid.UUID
	// beforeSwap runs inside CompareAndSwap before the status check, to
	// simulate a competing writer landing between Get and CAS.
	beforeSwap func()
}

func newMemStore() *memStore {
	return &memStore{
		byID:  make(map[uuid.UUID]model.ExamSession),
		byKey: make(map[[2]int64]uuid.UUID),
	}
}

func (m *memStore) CreateIfAbsent(ctx context.Context, s *model.ExamSession) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{s.UserID, s.PaperID}
	if _, exists := m.byKey[key]; exists {
		return false, nil
	}
	m.byKey[key] = s.ID
	m.byID[s.ID] = *s
	return true, nil
}

func (m *memStore) CompareAndSwap(ctx context.Context, id uuid.UUID, expected model.SessionStatus, updated *model.ExamSession) (bool, error) {
	if m.beforeSwap != nil {
		m.beforeSwap()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.byID[id]
	if !ok || current.Status != expected {
		return false, nil
	}
	m.byID[id] = *updated
	return true, nil
}

func (m *memStore) Get(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) ListByPaper(ctx context.Context, paperID int64) ([]model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamSession
	for _, s := range m.byID {
		if s.PaperID == paperID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) ListByUser(ctx context.Context, userID int64) ([]model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamSession
	for _, s := range m.byID {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) ListPage(ctx context.Context, filter model.SessionFilter) ([]model.ExamSession, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamSession
	for _, s := range m.byID {
		if filter.UserID != nil && s.UserID != *filter.UserID {
			continue
		}
		if filter.PaperID != nil && s.PaperID != *filter.PaperID {
			continue
		}
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		out = append(out, s)
	}
	return out, int64(len(out)), nil
}

// put seeds a session directly, bypassing uniqueness.
func (m *memStore) put(s model.ExamSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.ID] = s
	m.byKey[[2]int64{s.UserID, s.PaperID}] = s.ID
}

type catalogStub struct {
	papers map[int64]*model.Paper
	err    error
}

func (c *catalogStub) Get(ctx context.Context, paperID int64) (*model.Paper, error) {
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.papers[paperID]
	if !ok {
		return nil, ErrPaperNotFound
	}
	return p, nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testPaper() *model.Paper {
	return &model.Paper{
		ID:               7,
		Title:            "Algebra Midterm",
		TotalScore:       20,
		TimeLimitMinutes: 60,
		Status:           model.PaperStatusPublished,
		Questions: []model.Question{
			{ID: "q1", Type: model.QuestionTypeSingleChoice, Correct: []string{"B"}, Weight: 10},
			{ID: "q2", Type: model.QuestionTypeFreeText, Weight: 10},
		},
	}
}

func newTestService(t *testing.T, store SessionStore, paper *model.Paper, clock Clock) *SessionService {
	t.Helper()
	catalog := &catalogStub{papers: map[int64]*model.Paper{}}
	if paper != nil {
		catalog.papers[paper.ID] = paper
	}
	return NewSessionService(store, catalog, clock, nil, zerolog.Nop())
}

func TestStartCreatesInProgressSession(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(t, newMemStore(), testPaper(), clock)

	session, err := svc.Start(context.Background(), 42, 7)
	require.NoError(t, err)
	require.Equal(t, model.SessionStatusInProgress, session.Status)
	require.Equal(t, clock.now, session.StartedAt)
	require.Zero(t, session.AutoScore)
	require.Zero(t, session.ManualScore)
	require.NotEqual(t, uuid.Nil, session.ID)
}

func TestStartRejectsSecondAttempt(t *testing.T) {
	svc := newTestService(t, newMemStore(), testPaper(), &fixedClock{now: time.Now()})

	_, err := svc.Start(context.Background(), 42, 7)
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), 42, 7)
	require.ErrorIs(t, err, ErrAlreadyAttempted)
}

func TestStartConcurrentAttemptsOneWinner(t *testing.T) {
	svc := newTestService(t, newMemStore(), testPaper(), &fixedClock{now: time.Now()})

	const n = 16
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Start(context.Background(), 42, 7)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes, rejections int
	for err := range errs {
		switch {
		case err == nil:
			successes++
		default:
			require.ErrorIs(t, err, ErrAlreadyAttempted)
			rejections++
		}
	}
	require.Equal(t, 1, successes)
	require.Equal(t, n-1, rejections)
}

func TestStartOutsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	paper := testPaper()

	t.Run("before open", func(t *testing.T) {
		start := now.Add(time.Hour)
		p := *paper
		p.ExamStart = &start
		store := newMemStore()
		svc := newTestService(t, store, &p, &fixedClock{now: now})

		_, err := svc.Start(context.Background(), 42, 7)
		require.ErrorIs(t, err, ErrExamNotOpen)
		require.Empty(t, store.byID)
	})

	t.Run("after close", func(t *testing.T) {
		end := now.Add(-time.Hour)
		p := *paper
		p.ExamEnd = &end
		store := newMemStore()
		svc := newTestService(t, store, &p, &fixedClock{now: now})

		_, err := svc.Start(context.Background(), 42, 7)
		require.ErrorIs(t, err, ErrExamNotOpen)
		require.Empty(t, store.byID)
	})
}

func TestStartUnknownPaper(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil, &fixedClock{now: time.Now()})

	_, err := svc.Start(context.Background(), 42, 7)
	require.ErrorIs(t, err, ErrPaperNotFound)
}

func TestStartCatalogUnavailable(t *testing.T) {
	store := newMemStore()
	svc := NewSessionService(store, &catalogStub{err: ErrCatalogUnavailable}, &fixedClock{now: time.Now()}, nil, zerolog.Nop())

	_, err := svc.Start(context.Background(), 42, 7)
	require.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestSubmitGradesAndTerminates(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := newMemStore()
	svc := newTestService(t, store, testPaper(), clock)

	session, err := svc.Start(context.Background(), 42, 7)
	require.NoError(t, err)

	clock.advance(10 * time.Minute)
	submitted, err := svc.Submit(context.Background(), session.ID, model.AnswerSnapshot{
		"q1": {Selected: []string{"B"}},
		"q2": {Text: "an essay"},
	})
	require.NoError(t, err)
	require.Equal(t, model.SessionStatusSubmitted, submitted.Status)
	require.Equal(t, 10.0, submitted.AutoScore)
	require.NotNil(t, submitted.SubmittedAt)
	require.False(t, submitted.SubmittedAt.Before(submitted.StartedAt))

	stored, err := store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, model.SessionStatusSubmitted, stored.Status)
}

func TestSubmitRejectsResubmission(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	store := newMemStore()
	svc := newTestService(t, store, testPaper(), clock)

	session, err := svc.Start(context.Background(), 42, 7)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), session.ID, model.AnswerSnapshot{"q1": {Selected: []string{"B"}}})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), session.ID, model.AnswerSnapshot{"q1": {Selected: []string{"A"}}})
	require.ErrorIs(t, err, ErrInvalidState)

	// The rejected call must not have changed stored state.
	stored, err := store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, 10.0, stored.AutoScore)
	require.Equal(t, []string{"B"}, stored.AnswerSnapshot["q1"].Selected)
}

func TestSubmitUnknownSession(t *testing.T) {
	svc := newTestService(t, newMemStore(), testPaper(), &fixedClock{now: time.Now()})

	_, err := svc.Submit(context.Background(), uuid.New(), model.AnswerSnapshot{})
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSubmitLosesRaceToTimeout(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	store := newMemStore()
	svc := newTestService(t, store, testPaper(), clock)

	session, err := svc.Start(context.Background(), 42, 7)
	require.NoError(t, err)

	// A timeout sweep lands between the status read and the swap.
	store.beforeSwap = func() {
		store.beforeSwap = nil
		require.NoError(t, svc.AutoSubmit(context.Background(), session.ID))
	}

	_, err = svc.Submit(context.Background(), session.ID, model.AnswerSnapshot{"q1": {Selected: []string{"B"}}})
	require.ErrorIs(t, err, ErrInvalidState)

	stored, err := store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, model.SessionStatusTimedOut, stored.Status)
}

func TestAutoSubmitTimesOutSession(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	store := newMemStore()
	svc := newTestService(t, store, testPaper(), clock)

	session, err := svc.Start(context.Background(), 42, 7)
	require.NoError(t, err)

	clock.advance(time.Hour)
	require.NoError(t, svc.AutoSubmit(context.Background(), session.ID))

	stored, err := store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, model.SessionStatusTimedOut, stored.Status)
	// No snapshot was ever recorded, so the auto score is zero.
	require.Zero(t, stored.AutoScore)
	require.NotNil(t, stored.SubmittedAt)
}

func TestAutoSubmitIsIdempotent(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	store := newMemStore()
	svc := newTestService(t, store, testPaper(), clock)

	session, err := svc.Start(context.Background(), 42, 7)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), session.ID, model.AnswerSnapshot{"q1": {Selected: []string{"B"}}})
	require.NoError(t, err)

	// Late trigger on a submitted session: no error, no double-score.
	require.NoError(t, svc.AutoSubmit(context.Background(), session.ID))
	stored, err := store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, model.SessionStatusSubmitted, stored.Status)
	require.Equal(t, 10.0, stored.AutoScore)

	// Duplicate trigger on an unknown session: still a no-op.
	require.NoError(t, svc.AutoSubmit(context.Background(), uuid.New()))
}

func TestManualScoreAcceptedOnce(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	store := newMemStore()
	svc := newTestService(t, store, testPaper(), clock)

	session, err := svc.Start(context.Background(), 42, 7)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), session.ID, model.AnswerSnapshot{"q1": {Selected: []string{"B"}}})
	require.NoError(t, err)

	require.NoError(t, svc.ManualScore(context.Background(), session.ID, 8))

	stored, err := store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, model.SessionStatusReviewed, stored.Status)
	require.Equal(t, 8.0, stored.ManualScore)
	require.Equal(t, 18.0, stored.FinalScore())

	require.ErrorIs(t, svc.ManualScore(context.Background(), session.ID, 5), ErrInvalidState)
}

func TestManualScoreOnTimedOutSession(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	store := newMemStore()
	svc := newTestService(t, store, testPaper(), clock)

	session, err := svc.Start(context.Background(), 42, 7)
	require.NoError(t, err)
	require.NoError(t, svc.AutoSubmit(context.Background(), session.ID))

	require.NoError(t, svc.ManualScore(context.Background(), session.ID, 10))

	stored, err := store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, model.SessionStatusReviewed, stored.Status)
	require.Equal(t, 10.0, stored.FinalScore())
}

func TestManualScoreValidation(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	store := newMemStore()
	svc := newTestService(t, store, testPaper(), clock)

	session, err := svc.Start(context.Background(), 42, 7)
	require.NoError(t, err)

	// Not yet submitted.
	require.ErrorIs(t, svc.ManualScore(context.Background(), session.ID, 5), ErrInvalidState)

	_, err = svc.Submit(context.Background(), session.ID, nil)
	require.NoError(t, err)

	require.ErrorIs(t, svc.ManualScore(context.Background(), session.ID, -1), ErrInvalidScore)
	require.ErrorIs(t, svc.ManualScore(context.Background(), session.ID, 21), ErrInvalidScore)

	// Rejected scores must not have advanced the state machine.
	stored, err := store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, model.SessionStatusSubmitted, stored.Status)
	require.Zero(t, stored.ManualScore)

	require.ErrorIs(t, svc.ManualScore(context.Background(), uuid.New(), 5), ErrSessionNotFound)
}

func TestGetStatisticsEmptyPaper(t *testing.T) {
	svc := newTestService(t, newMemStore(), testPaper(), &fixedClock{now: time.Now()})

	stats, err := svc.GetStatistics(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, &model.PaperStatistics{PaperID: 7}, stats)
}

func TestGetStatisticsExcludesInProgress(t *testing.T) {
	now := time.Now()
	store := newMemStore()
	svc := newTestService(t, store, testPaper(), &fixedClock{now: now})

	seed := func(userID int64, status model.SessionStatus, auto, manual float64) {
		store.put(model.ExamSession{
			ID: uuid.New(), UserID: userID, PaperID: 7, StartedAt: now,
			AutoScore: auto, ManualScore: manual, Status: status,
		})
	}
	seed(1, model.SessionStatusSubmitted, 10, 0)
	seed(2, model.SessionStatusTimedOut, 4, 0)
	seed(3, model.SessionStatusReviewed, 10, 8)
	seed(4, model.SessionStatusInProgress, 0, 0)

	stats, err := svc.GetStatistics(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Count)
	require.InDelta(t, (10.0+4.0+18.0)/3.0, stats.Average, 1e-9)
	require.Equal(t, 18.0, stats.Max)
	require.Equal(t, 4.0, stats.Min)
}

func TestSubmitEnqueuesWrongAnswers(t *testing.T) {
	srv, err := miniredis.Run()
	require.NoError(t, err)
	defer srv.Close()

	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()

	clock := &fixedClock{now: time.Now()}
	store := newMemStore()
	paper := &model.Paper{
		ID: 7, TotalScore: 20, Status: model.PaperStatusPublished,
		Questions: []model.Question{
			{ID: "q1", Type: model.QuestionTypeSingleChoice, Correct: []string{"B"}, Weight: 10},
			{ID: "q2", Type: model.QuestionTypeFillIn, Correct: []string{"42"}, Weight: 10},
		},
	}
	catalog := &catalogStub{papers: map[int64]*model.Paper{7: paper}}
	svc := NewSessionService(store, catalog, clock, rdb, zerolog.Nop())

	session, err := svc.Start(context.Background(), 42, 7)
	require.NoError(t, err)

	// q1 wrong, q2 right: exactly one queue entry.
	_, err = svc.Submit(context.Background(), session.ID, model.AnswerSnapshot{
		"q1": {Selected: []string{"A"}},
		"q2": {Text: "42"},
	})
	require.NoError(t, err)

	items, err := rdb.LRange(context.Background(), config.WorkerKey.WrongAnswersQueue, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, items, 1)

	var payload struct {
		UserID     int64  `json:"user_id"`
		PaperID    int64  `json:"paper_id"`
		QuestionID string `json:"question_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(items[0]), &payload))
	require.Equal(t, int64(42), payload.UserID)
	require.Equal(t, int64(7), payload.PaperID)
	require.Equal(t, "q1", payload.QuestionID)
}

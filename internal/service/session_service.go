package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/zwlabs/examtrack-backend/internal/config"
	"github.com/zwlabs/examtrack-backend/internal/grading"
	"github.com/zwlabs/examtrack-backend/internal/model"
)

// SessionStore is the durable keyed storage for exam sessions. The two write
// primitives are the only concurrency control the session core relies on:
// CreateIfAbsent must be atomic per (user, paper) and CompareAndSwap must be
// atomic per session ID.
type SessionStore interface {
	// CreateIfAbsent inserts the session unless one already exists for the
	// (user, paper) pair. Returns false without error when the pair is taken.
	CreateIfAbsent(ctx context.Context, session *model.ExamSession) (bool, error)
	// CompareAndSwap persists the updated session only if the stored status
	// still equals expected. Returns false without error on a lost race.
	CompareAndSwap(ctx context.Context, id uuid.UUID, expected model.SessionStatus, updated *model.ExamSession) (bool, error)
	// Get returns (nil, nil) when no session exists.
	Get(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	ListByPaper(ctx context.Context, paperID int64) ([]model.ExamSession, error)
	ListByUser(ctx context.Context, userID int64) ([]model.ExamSession, error)
	ListPage(ctx context.Context, filter model.SessionFilter) ([]model.ExamSession, int64, error)
}

// PaperCatalog supplies read-only paper definitions.
type PaperCatalog interface {
	// Get returns ErrPaperNotFound for unknown IDs and wraps every other
	// failure in ErrCatalogUnavailable.
	Get(ctx context.Context, paperID int64) (*model.Paper, error)
}

// SessionService owns the exam session state machine:
//
//	IN_PROGRESS --Submit-----> SUBMITTED --ManualScore--> REVIEWED
//	IN_PROGRESS --AutoSubmit-> TIMED_OUT --ManualScore--> REVIEWED
//
// Every transition goes through the store's atomic primitives; competing
// calls on one session resolve to a single winner, the losers observe
// ErrInvalidState.
type SessionService struct {
	store  SessionStore
	papers PaperCatalog
	clock  Clock
	rdb    *redis.Client
	log    zerolog.Logger
}

// NewSessionService creates a SessionService. rdb may be nil in tests that do
// not exercise wrong-answer queueing.
func NewSessionService(store SessionStore, papers PaperCatalog, clock Clock, rdb *redis.Client, log zerolog.Logger) *SessionService {
	return &SessionService{
		store:  store,
		papers: papers,
		clock:  clock,
		rdb:    rdb,
		log:    log.With().Str("component", "session_service").Logger(),
	}
}

// Start creates a new IN_PROGRESS session for (userID, paperID).
//
// Uniqueness is enforced solely by the store's create-if-absent primitive:
// concurrent starts for the same pair yield exactly one success, the rest get
// ErrAlreadyAttempted. There is deliberately no read-before-insert.
func (s *SessionService) Start(ctx context.Context, userID, paperID int64) (*model.ExamSession, error) {
	paper, err := s.papers.Get(ctx, paperID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !paper.OpenAt(now) {
		return nil, ErrExamNotOpen
	}

	session := &model.ExamSession{
		ID:        uuid.New(),
		UserID:    userID,
		PaperID:   paperID,
		StartedAt: now,
		Status:    model.SessionStatusInProgress,
	}

	created, err := s.store.CreateIfAbsent(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if !created {
		return nil, ErrAlreadyAttempted
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Int64("user_id", userID).
		Int64("paper_id", paperID).
		Msg("Exam session started")

	return session, nil
}

// Submit records the answer snapshot, computes the auto score and moves the
// session to SUBMITTED. The status check and the write are one compare-and-swap
// against IN_PROGRESS, so a submission racing a timeout sweep cannot both win.
func (s *SessionService) Submit(ctx context.Context, sessionID uuid.UUID, snapshot model.AnswerSnapshot) (*model.ExamSession, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.Status != model.SessionStatusInProgress {
		return nil, ErrInvalidState
	}

	paper, err := s.papers.Get(ctx, session.PaperID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	autoScore, results := grading.Grade(paper, snapshot)

	session.SubmittedAt = &now
	session.AnswerSnapshot = snapshot
	session.AutoScore = autoScore
	session.Status = model.SessionStatusSubmitted

	swapped, err := s.store.CompareAndSwap(ctx, sessionID, model.SessionStatusInProgress, session)
	if err != nil {
		return nil, fmt.Errorf("persist submission: %w", err)
	}
	if !swapped {
		return nil, ErrInvalidState
	}

	s.enqueueWrongAnswers(ctx, session, results)

	s.log.Info().
		Str("session_id", sessionID.String()).
		Float64("auto_score", autoScore).
		Msg("Exam submitted")

	return session, nil
}

// AutoSubmit force-terminates an overdue session, grading whatever snapshot
// was recorded (none means a zero auto score) and moving it to TIMED_OUT.
//
// It is idempotent: a missing or already-terminal session is a silent no-op,
// so late or duplicate sweep triggers never error and never double-score.
func (s *SessionService) AutoSubmit(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if session == nil || session.Status != model.SessionStatusInProgress {
		return nil
	}

	paper, err := s.papers.Get(ctx, session.PaperID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	autoScore, results := grading.Grade(paper, session.AnswerSnapshot)

	session.SubmittedAt = &now
	session.AutoScore = autoScore
	session.Status = model.SessionStatusTimedOut

	swapped, err := s.store.CompareAndSwap(ctx, sessionID, model.SessionStatusInProgress, session)
	if err != nil {
		return fmt.Errorf("persist timeout: %w", err)
	}
	if !swapped {
		// A concurrent submit or sweep won; that outcome stands.
		return nil
	}

	s.enqueueWrongAnswers(ctx, session, results)

	s.log.Info().
		Str("session_id", sessionID.String()).
		Float64("auto_score", autoScore).
		Msg("Exam auto-submitted on timeout")

	return nil
}

// ManualScore records the reviewer's score on a SUBMITTED or TIMED_OUT
// session and moves it to REVIEWED. Accepted exactly once per session.
func (s *SessionService) ManualScore(ctx context.Context, sessionID uuid.UUID, score float64) error {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if !session.Status.Reviewable() {
		return ErrInvalidState
	}

	paper, err := s.papers.Get(ctx, session.PaperID)
	if err != nil {
		return err
	}
	if score < 0 || score > paper.TotalScore {
		return ErrInvalidScore
	}

	previous := session.Status
	session.ManualScore = score
	session.Status = model.SessionStatusReviewed

	swapped, err := s.store.CompareAndSwap(ctx, sessionID, previous, session)
	if err != nil {
		return fmt.Errorf("persist review: %w", err)
	}
	if !swapped {
		return ErrInvalidState
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Float64("manual_score", score).
		Msg("Manual score recorded")

	return nil
}

// GetSession returns a session by ID.
func (s *SessionService) GetSession(ctx context.Context, sessionID uuid.UUID) (*model.ExamSession, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// ListByUser returns all of a user's sessions, newest first.
func (s *SessionService) ListByUser(ctx context.Context, userID int64) ([]model.ExamSession, error) {
	return s.store.ListByUser(ctx, userID)
}

// ListRecords returns a filtered page of sessions plus the total match count.
func (s *SessionService) ListRecords(ctx context.Context, filter model.SessionFilter) ([]model.ExamSession, int64, error) {
	return s.store.ListPage(ctx, filter)
}

// GetStatistics aggregates final scores over a paper's finished sessions.
// IN_PROGRESS sessions carry no final score and are excluded; an empty result
// reports all zeros rather than failing.
func (s *SessionService) GetStatistics(ctx context.Context, paperID int64) (*model.PaperStatistics, error) {
	sessions, err := s.store.ListByPaper(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	stats := &model.PaperStatistics{PaperID: paperID}
	var sum float64

	for i := range sessions {
		if !sessions[i].Status.Terminal() {
			continue
		}
		score := sessions[i].FinalScore()
		if stats.Count == 0 || score > stats.Max {
			stats.Max = score
		}
		if stats.Count == 0 || score < stats.Min {
			stats.Min = score
		}
		sum += score
		stats.Count++
	}

	if stats.Count > 0 {
		stats.Average = sum / float64(stats.Count)
	}

	return stats, nil
}

// wrongAnswerPayload is the queue item consumed by the wrong-book worker.
type wrongAnswerPayload struct {
	UserID     int64  `json:"user_id"`
	PaperID    int64  `json:"paper_id"`
	QuestionID string `json:"question_id"`
}

// enqueueWrongAnswers pushes each incorrectly answered gradable question onto
// the wrong-book queue. Best-effort: queue failures are logged, never surfaced,
// since the submission itself has already committed.
func (s *SessionService) enqueueWrongAnswers(ctx context.Context, session *model.ExamSession, results []grading.QuestionResult) {
	if s.rdb == nil {
		return
	}

	for _, r := range results {
		if !r.Gradable || !r.Answered || r.Correct {
			continue
		}
		raw, err := json.Marshal(wrongAnswerPayload{
			UserID:     session.UserID,
			PaperID:    session.PaperID,
			QuestionID: r.QuestionID,
		})
		if err != nil {
			continue
		}
		if err := s.rdb.RPush(ctx, config.WorkerKey.WrongAnswersQueue, raw).Err(); err != nil {
			s.log.Warn().Err(err).
				Str("session_id", session.ID.String()).
				Str("question_id", r.QuestionID).
				Msg("Failed to enqueue wrong answer")
		}
	}
}

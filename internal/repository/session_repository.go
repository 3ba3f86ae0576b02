package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zwlabs/examtrack-backend/internal/model"
)

const sessionColumns = `id, user_id, paper_id, started_at, submitted_at, answer_snapshot, auto_score, manual_score, status`

// SessionRepository is the PostgreSQL-backed session store. Its write paths
// are the sole concurrency control for the session state machine: create is a
// conflict-free insert on the (user_id, paper_id) unique index and every
// update is guarded by the expected status.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// CreateIfAbsent inserts the session unless the (user, paper) pair already has
// one, in any status. Returns false without error when the pair is taken.
func (r *SessionRepository) CreateIfAbsent(ctx context.Context, s *model.ExamSession) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO exam_sessions (id, user_id, paper_id, started_at, status)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, paper_id) DO NOTHING`,
		s.ID, s.UserID, s.PaperID, s.StartedAt, s.Status,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CompareAndSwap writes the updated session only if the stored status still
// equals expected. Returns false without error when another writer won.
func (r *SessionRepository) CompareAndSwap(ctx context.Context, id uuid.UUID, expected model.SessionStatus, s *model.ExamSession) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET submitted_at = $1, answer_snapshot = $2, auto_score = $3, manual_score = $4, status = $5
		 WHERE id = $6 AND status = $7`,
		s.SubmittedAt, s.AnswerSnapshot, s.AutoScore, s.ManualScore, s.Status, id, expected,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Get retrieves a session by ID. Returns (nil, nil) when absent.
func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.UserID, &s.PaperID, &s.StartedAt, &s.SubmittedAt, &s.AnswerSnapshot, &s.AutoScore, &s.ManualScore, &s.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByPaper retrieves all sessions for a paper.
func (r *SessionRepository) ListByPaper(ctx context.Context, paperID int64) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions
		 WHERE paper_id = $1
		 ORDER BY started_at DESC`, paperID,
	)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

// ListByUser retrieves all sessions for a user, newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID int64) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions
		 WHERE user_id = $1
		 ORDER BY started_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

// ListPage retrieves a filtered, paginated slice of sessions plus the total
// number of matches.
func (r *SessionRepository) ListPage(ctx context.Context, filter model.SessionFilter) ([]model.ExamSession, int64, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 10
	}
	offset := (page - 1) * perPage

	where := ` WHERE 1=1`
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.PaperID != nil {
		args = append(args, *filter.PaperID)
		where += fmt.Sprintf(" AND paper_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exam_sessions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + sessionColumns + ` FROM exam_sessions` + where +
		fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	sessions, err := scanSessions(rows)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// ListOverdue returns IDs of IN_PROGRESS sessions whose paper time limit has
// elapsed at the given instant. Papers with a zero time limit never expire.
func (r *SessionRepository) ListOverdue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id
		 FROM exam_sessions s
		 JOIN papers p ON p.id = s.paper_id
		 WHERE s.status = $1
		   AND p.time_limit_minutes > 0
		   AND s.started_at + (p.time_limit_minutes * interval '1 minute') < $2`,
		model.SessionStatusInProgress, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanSessions(rows pgx.Rows) ([]model.ExamSession, error) {
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		var s model.ExamSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.PaperID, &s.StartedAt, &s.SubmittedAt, &s.AnswerSnapshot, &s.AutoScore, &s.ManualScore, &s.Status); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

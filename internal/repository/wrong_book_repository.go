package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zwlabs/examtrack-backend/internal/model"
)

// WrongBookRepository persists per-user wrong-answer tallies.
type WrongBookRepository struct {
	pool *pgxpool.Pool
}

// NewWrongBookRepository creates a new WrongBookRepository.
func NewWrongBookRepository(pool *pgxpool.Pool) *WrongBookRepository {
	return &WrongBookRepository{pool: pool}
}

// WrongAnswer is one graded miss to record.
type WrongAnswer struct {
	UserID     int64
	PaperID    int64
	QuestionID string
}

// BulkRecord upserts a batch of misses in one statement, incrementing the
// wrong count for pairs that already exist.
func (r *WrongBookRepository) BulkRecord(ctx context.Context, batch []WrongAnswer, at time.Time) error {
	if len(batch) == 0 {
		return nil
	}

	userIDs := make([]int64, 0, len(batch))
	paperIDs := make([]int64, 0, len(batch))
	questionIDs := make([]string, 0, len(batch))
	for _, w := range batch {
		userIDs = append(userIDs, w.UserID)
		paperIDs = append(paperIDs, w.PaperID)
		questionIDs = append(questionIDs, w.QuestionID)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO wrong_book (user_id, paper_id, question_id, wrong_count, last_wrong_at)
		 SELECT u.user_id, u.paper_id, u.question_id, 1, $4
		 FROM UNNEST($1::bigint[], $2::bigint[], $3::text[]) AS u (user_id, paper_id, question_id)
		 ON CONFLICT (user_id, question_id) DO UPDATE
		 SET wrong_count = wrong_book.wrong_count + 1,
		     last_wrong_at = EXCLUDED.last_wrong_at`,
		userIDs, paperIDs, questionIDs, at,
	)
	return err
}

// ListByUser retrieves a user's wrong-book entries, most recent miss first.
func (r *WrongBookRepository) ListByUser(ctx context.Context, userID int64) ([]model.WrongBookEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, question_id, paper_id, wrong_count, last_wrong_at
		 FROM wrong_book
		 WHERE user_id = $1
		 ORDER BY last_wrong_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.WrongBookEntry
	for rows.Next() {
		var e model.WrongBookEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.QuestionID, &e.PaperID, &e.WrongCount, &e.LastWrongAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

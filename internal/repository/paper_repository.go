package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zwlabs/examtrack-backend/internal/model"
)

// PaperRepository reads paper definitions. Question definitions live in the
// question_data JSONB column, matching how papers are authored as one unit.
type PaperRepository struct {
	pool *pgxpool.Pool
}

// NewPaperRepository creates a new PaperRepository.
func NewPaperRepository(pool *pgxpool.Pool) *PaperRepository {
	return &PaperRepository{pool: pool}
}

// GetByID retrieves a paper with its questions. Returns (nil, nil) when absent.
func (r *PaperRepository) GetByID(ctx context.Context, id int64) (*model.Paper, error) {
	p := &model.Paper{}
	var questionData []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, subject_id, total_score, time_limit_minutes, exam_start, exam_end, status, question_data, creator_id
		 FROM papers
		 WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.SubjectID, &p.TotalScore, &p.TimeLimitMinutes, &p.ExamStart, &p.ExamEnd, &p.Status, &questionData, &p.CreatorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(questionData) > 0 {
		if err := json.Unmarshal(questionData, &p.Questions); err != nil {
			return nil, fmt.Errorf("decode question data: %w", err)
		}
	}
	return p, nil
}

// ListPublishedIDs returns the IDs of all published papers, for cache prewarm.
func (r *PaperRepository) ListPublishedIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM papers WHERE status = $1`, model.PaperStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

package model

import (
	"encoding/json"
	"time"
)

// PaperStatus enumerates the publication states of a paper.
type PaperStatus string

const (
	PaperStatusDraft     PaperStatus = "DRAFT"
	PaperStatusPublished PaperStatus = "PUBLISHED"
	PaperStatusArchived  PaperStatus = "ARCHIVED"
)

// Paper is an exam paper: a set of questions, a scoring total, and an
// optional open/close window. Read-only from the session core's perspective.
type Paper struct {
	ID               int64       `json:"id"`
	Title            string      `json:"title"`
	SubjectID        int64       `json:"subject_id"`
	TotalScore       float64     `json:"total_score"`
	TimeLimitMinutes int         `json:"time_limit_minutes"`
	ExamStart        *time.Time  `json:"exam_start,omitempty"`
	ExamEnd          *time.Time  `json:"exam_end,omitempty"`
	Status           PaperStatus `json:"status"`
	Questions        []Question  `json:"questions"`
	CreatorID        int64       `json:"creator_id"`
}

// OpenAt reports whether the paper accepts new attempts at the given instant.
// A paper with no window is always open.
func (p *Paper) OpenAt(now time.Time) bool {
	if p.ExamStart != nil && now.Before(*p.ExamStart) {
		return false
	}
	if p.ExamEnd != nil && now.After(*p.ExamEnd) {
		return false
	}
	return true
}

type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "SINGLE_CHOICE"
	QuestionTypeMultiChoice  QuestionType = "MULTI_CHOICE"
	QuestionTypeTrueFalse    QuestionType = "TRUE_FALSE"
	QuestionTypeFillIn       QuestionType = "FILL_IN"
	QuestionTypeFreeText     QuestionType = "FREE_TEXT"
)

// AutoGradable reports whether the type is scored by the grader.
// FREE_TEXT always waits for manual review.
func (t QuestionType) AutoGradable() bool {
	return t != QuestionTypeFreeText
}

// Question is a single paper question with its answer key and weight.
type Question struct {
	ID      string          `json:"id"`
	Type    QuestionType    `json:"type"`
	Content string          `json:"content"`
	Options json.RawMessage `json:"options,omitempty"`
	// Correct holds the answer key: the single option for SINGLE_CHOICE and
	// TRUE_FALSE, the full option set for MULTI_CHOICE, and the accepted
	// strings for FILL_IN. Empty for FREE_TEXT.
	Correct []string `json:"correct,omitempty"`
	Weight  float64  `json:"weight"`
}

// PaperPayload is the taker-facing view of a paper, with answer keys stripped.
type PaperPayload struct {
	PaperID          int64             `json:"paper_id"`
	Title            string            `json:"title"`
	TotalScore       float64           `json:"total_score"`
	TimeLimitMinutes int               `json:"time_limit_minutes"`
	Questions        []QuestionForUser `json:"questions"`
}

// QuestionForUser is a question without its answer key.
type QuestionForUser struct {
	ID      string          `json:"id"`
	Type    QuestionType    `json:"type"`
	Content string          `json:"content"`
	Options json.RawMessage `json:"options,omitempty"`
	Weight  float64         `json:"weight"`
}

// Payload builds the sanitized taker view.
func (p *Paper) Payload() *PaperPayload {
	questions := make([]QuestionForUser, 0, len(p.Questions))
	for _, q := range p.Questions {
		questions = append(questions, QuestionForUser{
			ID:      q.ID,
			Type:    q.Type,
			Content: q.Content,
			Options: q.Options,
			Weight:  q.Weight,
		})
	}
	return &PaperPayload{
		PaperID:          p.ID,
		Title:            p.Title,
		TotalScore:       p.TotalScore,
		TimeLimitMinutes: p.TimeLimitMinutes,
		Questions:        questions,
	}
}

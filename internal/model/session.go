package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusSubmitted  SessionStatus = "SUBMITTED"
	SessionStatusTimedOut   SessionStatus = "TIMED_OUT"
	SessionStatusReviewed   SessionStatus = "REVIEWED"
)

// Terminal reports whether the status no longer accepts answer submission.
// REVIEWED additionally rejects a second manual score.
func (s SessionStatus) Terminal() bool {
	return s != SessionStatusInProgress
}

// Reviewable reports whether a manual score may still be recorded.
func (s SessionStatus) Reviewable() bool {
	return s == SessionStatusSubmitted || s == SessionStatusTimedOut
}

// ExamSession represents one user's single attempt at one paper.
// A (user_id, paper_id) pair holds at most one session in any status.
type ExamSession struct {
	ID             uuid.UUID      `json:"id"`
	UserID         int64          `json:"user_id"`
	PaperID        int64          `json:"paper_id"`
	StartedAt      time.Time      `json:"started_at"`
	SubmittedAt    *time.Time     `json:"submitted_at,omitempty"`
	AnswerSnapshot AnswerSnapshot `json:"answer_snapshot,omitempty"`
	AutoScore      float64        `json:"auto_score"`
	ManualScore    float64        `json:"manual_score"`
	Status         SessionStatus  `json:"status"`
}

// FinalScore is derived, never stored.
func (s *ExamSession) FinalScore() float64 {
	return s.AutoScore + s.ManualScore
}

// Answer is one submitted answer. Choice questions use Selected,
// fill-in and free-text use Text.
type Answer struct {
	Selected []string `json:"selected,omitempty"`
	Text     string   `json:"text,omitempty"`
}

// AnswerSnapshot maps question ID to the submitted answer. It is written once
// at submission; question IDs missing from the map count as unanswered.
type AnswerSnapshot map[string]Answer

// StartExamRequest is the payload for starting an attempt.
type StartExamRequest struct {
	UserID  int64 `json:"user_id" binding:"required,min=1"`
	PaperID int64 `json:"paper_id" binding:"required,min=1"`
}

// SubmitExamRequest is the payload for submitting answers.
type SubmitExamRequest struct {
	Answers AnswerSnapshot `json:"answers" binding:"required"`
}

// ManualScoreRequest is the payload for recording a reviewer's score.
// Range validation against the paper's total score happens in the service.
type ManualScoreRequest struct {
	Score float64 `json:"score"`
}

// PaperStatistics aggregates final scores over a paper's finished sessions.
type PaperStatistics struct {
	PaperID int64   `json:"paper_id"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
}

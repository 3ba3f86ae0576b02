package model

import "time"

// WrongBookEntry tracks how often a user has missed a question.
// Entries are upserted by the wrong-book worker after each scored submission.
type WrongBookEntry struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	QuestionID  string    `json:"question_id"`
	PaperID     int64     `json:"paper_id"`
	WrongCount  int       `json:"wrong_count"`
	LastWrongAt time.Time `json:"last_wrong_at"`
}

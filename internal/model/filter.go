package model

// SessionFilter narrows paged session queries. Nil fields are ignored.
type SessionFilter struct {
	UserID  *int64
	PaperID *int64
	Status  *SessionStatus
	Page    int
	PerPage int
}

package board

import (
	"time"
)

type QuestionStatus string

const (
	StatusPending   QuestionStatus = "Pending"
	StatusEscalated QuestionStatus = "Escalated"
	StatusAnswered  QuestionStatus = "Answered"
)

// Priority is the sort rank of a status. Escalated questions sort first,
// answered questions last. Unknown statuses sort after everything.
func (self QuestionStatus) Priority() int {
	switch self {
	case StatusEscalated:
		return 0
	case StatusPending:
		return 1
	case StatusAnswered:
		return 2
	default:
		return 3
	}
}

func (self QuestionStatus) Valid() bool {
	switch self {
	case StatusPending, StatusEscalated, StatusAnswered:
		return true
	default:
		return false
	}
}

// Question ids are server-assigned and immutable.
// Exactly one of `Username` or `GuestName` is set by the server.
// `ResponseCount` is server-derived; the store reconciles it incrementally
// from pushed responses instead of refetching.
type Question struct {
	QuestionId    int            `json:"question_id"`
	Message       string         `json:"message"`
	Status        QuestionStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	GuestName     string         `json:"guest_name,omitempty"`
	Username      string         `json:"username,omitempty"`
	ResponseCount int            `json:"response_count"`
}

func (self *Question) AuthorName() string {
	if self.Username != "" {
		return self.Username
	}
	return self.GuestName
}

// `QuestionId` is a reference, not ownership. Nothing is deleted in this
// subsystem, so there is no cascading cleanup to enforce.
type Response struct {
	ResponseId int       `json:"response_id"`
	QuestionId int       `json:"question_id"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
	GuestName  string    `json:"guest_name,omitempty"`
	Username   string    `json:"username,omitempty"`
}

func (self *Response) AuthorName() string {
	if self.Username != "" {
		return self.Username
	}
	return self.GuestName
}

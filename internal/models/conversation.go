package models

import "time"

// Conversation groups the message history of one (user, exam paper) pair.
type Conversation struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	ExamPaperID int64     `json:"exam_paper_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

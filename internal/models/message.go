package models

import "time"

// Message is one entry in a tutoring conversation.

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	QuestionNumber string    `json:"question_number,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

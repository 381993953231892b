package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/salmanmuddhoo/ExamV2-sub001/internal/models"
)

const welcomeBackText = "Welcome back! Let's pick up where we left off. Which question would you like to work on today?"

// Store persists conversations and their append-only message history.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureConversation returns the conversation id for a (user, paper) pair,
// creating the row only if absent. The unique index on (user_id,
// exam_paper_id) makes this idempotent under concurrent calls: a losing
// insert re-reads the winner's row.
func (s *Store) EnsureConversation(ctx context.Context, paperID, userID int64) (int64, error) {
	if paperID <= 0 || userID <= 0 {
		return 0, errors.New("paper and user ids are required")
	}

	id, err := s.lookupConversation(ctx, paperID, userID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup conversation: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (user_id, exam_paper_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		userID, paperID, now, now,
	)
	if err != nil {
		// A concurrent caller may have inserted first; the unique index
		// rejects the duplicate and the existing row is authoritative.
		if id, lookupErr := s.lookupConversation(ctx, paperID, userID); lookupErr == nil {
			return id, nil
		}
		return 0, fmt.Errorf("create conversation: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("conversation id: %w", err)
	}
	return id, nil
}

func (s *Store) lookupConversation(ctx context.Context, paperID, userID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE user_id = ? AND exam_paper_id = ?`,
		userID, paperID,
	).Scan(&id)
	return id, err
}

// AppendMessage stores a single message and touches the conversation.
func (s *Store) AppendMessage(ctx context.Context, conversationID int64, role models.Role, content, questionNumber string) (*models.Message, error) {
	if conversationID <= 0 {
		return nil, errors.New("conversation id is required")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, question_number, created_at) VALUES (?, ?, ?, ?, ?)`,
		conversationID, role, content, nullable(questionNumber), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	return &models.Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		QuestionNumber: questionNumber,
		CreatedAt:      now,
	}, nil
}

// AppendExchange stores a user/assistant message pair in one transaction, so
// a half-written exchange never lands in history.
func (s *Store) AppendExchange(ctx context.Context, conversationID int64, user, assistant *models.Message) error {
	if conversationID <= 0 {
		return errors.New("conversation id is required")
	}
	if user == nil || assistant == nil {
		return errors.New("both messages are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for _, msg := range []*models.Message{user, assistant} {
		var res sql.Result
		res, err = tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, role, content, question_number, created_at) VALUES (?, ?, ?, ?, ?)`,
			conversationID, msg.Role, msg.Content, nullable(msg.QuestionNumber), now,
		)
		if err != nil {
			return fmt.Errorf("insert %s message: %w", msg.Role, err)
		}
		if id, idErr := res.LastInsertId(); idErr == nil {
			msg.ID = id
		}
		msg.ConversationID = conversationID
		msg.CreatedAt = now
	}
	if _, err = tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit exchange: %w", err)
	}
	return nil
}

// Transcript returns the ordered message history. When the newest stored
// message predates the current UTC calendar day, a synthetic welcome-back
// assistant message is prepended in memory only; history is never rewritten.
func (s *Store) Transcript(ctx context.Context, conversationID int64, now time.Time) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, COALESCE(question_number, ''), created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := new(models.Message)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.QuestionNumber, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(messages) > 0 && priorCalendarDay(messages[len(messages)-1].CreatedAt, now) {
		welcome := &models.Message{
			ConversationID: conversationID,
			Role:           models.RoleAssistant,
			Content:        welcomeBackText,
			CreatedAt:      now.UTC(),
		}
		messages = append([]*models.Message{welcome}, messages...)
	}
	return messages, nil
}

func priorCalendarDay(last, now time.Time) bool {
	ly, lm, ld := last.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	if ly != ny {
		return ly < ny
	}
	if lm != nm {
		return lm < nm
	}
	return ld < nd
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

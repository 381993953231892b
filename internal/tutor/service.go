package tutor

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/salmanmuddhoo/ExamV2-sub001/internal/assets"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/models"
)

// AssetCache supplies per-question assets for the session. Satisfied by
// *assets.Cache.
type AssetCache interface {
	Get(ctx context.Context, questionNumber string) (*models.QuestionAsset, error)
	PaperPages(ctx context.Context) ([]string, error)
}

// ConversationLog persists message records. Satisfied by *conversation.Store.
type ConversationLog interface {
	AppendMessage(ctx context.Context, conversationID int64, role models.Role, content, questionNumber string) (*models.Message, error)
	AppendExchange(ctx context.Context, conversationID int64, user, assistant *models.Message) error
}

const (
	firstQuestionPrompt = "Hi! Which question would you like help with? Tell me the question number, for example \"question 3\"."
	clarifyPrompt       = "I'm not sure which question you mean. Could you mention the question number, for example \"question 3\"?"
	apologyReply        = "Sorry, something went wrong while answering that. Please try sending your message again."
)

// TurnResult is the outcome of handling one student message.
type TurnResult struct {
	Mode           ModeKind        `json:"mode"`
	QuestionNumber string          `json:"question_number,omitempty"`
	UserMessage    *models.Message `json:"user_message"`
	Reply          *models.Message `json:"reply"`
	Persisted      bool            `json:"-"`
}

// Service runs one tutoring turn end to end: classify, gather assets,
// compose, call the backend, persist, and commit conversation state.
type Service struct {
	backend Asker
	logbook ConversationLog
}

func NewService(backend Asker, logbook ConversationLog) *Service {
	return &Service{backend: backend, logbook: logbook}
}

// HandleTurn processes a student message against the session's state and
// asset cache. State is committed only when the turn succeeds; a backend
// failure returns an apology and leaves state untouched so the student can
// resend. Persistence failures never undo an already-produced reply.
func (s *Service) HandleTurn(ctx context.Context, cache AssetCache, state *State, env Env, text string) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("message content is required")
	}

	next := *state
	next.MessageCount++
	mode := Resolve(next, text)

	now := time.Now().UTC()
	userMsg := &models.Message{
		ConversationID: env.ConversationID,
		Role:           models.RoleUser,
		Content:        text,
		QuestionNumber: mode.QuestionNumber,
		CreatedAt:      now,
	}

	// Confirm/clarify turns answer locally and never reach the backend. The
	// student's message is still recorded; the canned reply is not.
	if mode.Kind == FirstQuestionConfirm || mode.Kind == Clarify {
		if stored, err := s.logbook.AppendMessage(ctx, env.ConversationID, models.RoleUser, text, ""); err != nil {
			log.Printf("record user message: %v", err)
		} else {
			userMsg = stored
		}
		*state = next
		canned := firstQuestionPrompt
		if mode.Kind == Clarify {
			canned = clarifyPrompt
		}
		return &TurnResult{
			Mode:        mode.Kind,
			UserMessage: userMsg,
			Reply:       localReply(env.ConversationID, canned),
		}, nil
	}

	var (
		asset *models.QuestionAsset
		pages []string
	)
	if mode.Kind == NewQuestionLookup || mode.Kind == ContinuePrevious {
		var err error
		asset, err = cache.Get(ctx, mode.QuestionNumber)
		if errors.Is(err, assets.ErrQuestionNotFound) {
			// No record for this question: degrade to the whole paper
			// rather than failing silently.
			mode = Mode{Kind: FullPaperFallback}
		} else if err != nil {
			log.Printf("question asset lookup: %v", err)
			return apologyResult(mode, userMsg, env.ConversationID), nil
		}
	}
	if mode.Kind == FullPaperFallback {
		var err error
		pages, err = cache.PaperPages(ctx)
		if err != nil {
			log.Printf("paper pages: %v", err)
		}
	}

	req := ComposeRequest(mode, text, env, *state, asset, pages)
	resp, err := s.backend.Ask(ctx, req)
	if err != nil {
		log.Printf("backend call: %v", err)
		return apologyResult(mode, userMsg, env.ConversationID), nil
	}

	assistantMsg := &models.Message{
		ConversationID: env.ConversationID,
		Role:           models.RoleAssistant,
		Content:        resp.Answer,
		QuestionNumber: mode.QuestionNumber,
		CreatedAt:      time.Now().UTC(),
	}

	// lastQuestionNumber advances only on a successful new-question
	// resolution, never speculatively.
	if mode.Kind == NewQuestionLookup && !resp.QuestionNotFound {
		next.LastQuestionNumber = mode.QuestionNumber
	}
	*state = next

	result := &TurnResult{
		Mode:           mode.Kind,
		QuestionNumber: mode.QuestionNumber,
		UserMessage:    userMsg,
		Reply:          assistantMsg,
	}
	if err := s.logbook.AppendExchange(ctx, env.ConversationID, userMsg, assistantMsg); err != nil {
		// UI-first: the reply is already on screen, keep it.
		log.Printf("append exchange: %v", err)
	} else {
		result.Persisted = true
	}
	return result, nil
}

func localReply(conversationID int64, content string) *models.Message {
	return &models.Message{
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
}

func apologyResult(mode Mode, userMsg *models.Message, conversationID int64) *TurnResult {
	return &TurnResult{
		Mode:           mode.Kind,
		QuestionNumber: mode.QuestionNumber,
		UserMessage:    userMsg,
		Reply:          localReply(conversationID, apologyReply),
	}
}

package tutor

import "github.com/salmanmuddhoo/ExamV2-sub001/internal/models"

// Request is the outbound AI backend payload.
type Request struct {
	Question           string   `json:"question"`
	Provider           string   `json:"provider"`
	ExamPaperID        int64    `json:"examPaperId"`
	ConversationID     int64    `json:"conversationId"`
	UserID             int64    `json:"userId"`
	LastQuestionNumber string   `json:"lastQuestionNumber,omitempty"`
	OptimizedMode      bool     `json:"optimizedMode"`
	QuestionNumber     string   `json:"questionNumber,omitempty"`
	ExamPaperImages    []string `json:"examPaperImages"`
	MarkingSchemeText  string   `json:"markingSchemeText,omitempty"`
	QuestionText       string   `json:"questionText,omitempty"`
}

// Response is the AI backend reply.
type Response struct {
	Answer           string `json:"answer"`
	QuestionNotFound bool   `json:"questionNotFound,omitempty"`
	IsFollowUp       bool   `json:"isFollowUp,omitempty"`
}

// Env carries the identifiers of the session composing a request.
type Env struct {
	Provider       string
	ExamPaperID    int64
	ConversationID int64
	UserID         int64
}

// ComposeRequest builds the backend payload for a resolved mode. FollowUp
// sends zero images; question modes send only the resolved question's images;
// FullPaperFallback sends every pre-rendered page and drops optimization.
// The composer never mutates conversation state.
func ComposeRequest(mode Mode, text string, env Env, state State, asset *models.QuestionAsset, pages []string) Request {
	req := Request{
		Question:           text,
		Provider:           env.Provider,
		ExamPaperID:        env.ExamPaperID,
		ConversationID:     env.ConversationID,
		UserID:             env.UserID,
		LastQuestionNumber: state.LastQuestionNumber,
		ExamPaperImages:    []string{},
	}

	switch mode.Kind {
	case FollowUp:
		req.OptimizedMode = true
		req.QuestionNumber = mode.QuestionNumber
	case NewQuestionLookup, ContinuePrevious:
		req.OptimizedMode = true
		req.QuestionNumber = mode.QuestionNumber
		if asset != nil {
			req.ExamPaperImages = append(req.ExamPaperImages, asset.Images...)
			req.MarkingSchemeText = asset.MarkingSchemeText
			req.QuestionText = asset.QuestionText
		}
	case FullPaperFallback:
		req.ExamPaperImages = append(req.ExamPaperImages, pages...)
	}
	return req
}

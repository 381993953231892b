package tutor

import "github.com/salmanmuddhoo/ExamV2-sub001/internal/extract"

// ModeKind classifies how an incoming student message is handled.
type ModeKind string

const (
	// FollowUp continues the same question; the backend retains context so
	// no images are resent. This is the principal cost optimization.
	FollowUp ModeKind = "follow_up"
	// NewQuestionLookup targets a different question than the previous turn.
	NewQuestionLookup ModeKind = "new_question"
	// ContinuePrevious reuses the last question when the message carries no
	// reference of its own.
	ContinuePrevious ModeKind = "continue_previous"
	// FirstQuestionConfirm asks the student to name a question on the very
	// first unreferenced message. Answered locally, no backend call.
	FirstQuestionConfirm ModeKind = "first_question_confirm"
	// Clarify asks for a question number mid-conversation. Answered locally.
	Clarify ModeKind = "clarify"
	// FullPaperFallback sends every page because the referenced question has
	// no record in the asset store.
	FullPaperFallback ModeKind = "full_paper_fallback"
)

// Mode is the resolved handling decision for one message.
type Mode struct {
	Kind           ModeKind
	QuestionNumber string
}

// State is the conversation state carried between turns. It is committed
// only after a turn completes; a failed backend call leaves it untouched.
type State struct {
	LastQuestionNumber string
	MessageCount       int
	ConversationID     int64
}

// Resolve classifies a message against the carried state. messageCount must
// already include the message being classified. First matching rule wins:
//
//	ref present, equals last      -> FollowUp
//	ref present                   -> NewQuestionLookup(ref)
//	no ref, last present          -> ContinuePrevious(last)
//	no ref, no last, first turn   -> FirstQuestionConfirm
//	no ref, no last               -> Clarify
func Resolve(state State, text string) Mode {
	ref := extract.QuestionNumber(text)

	switch {
	case ref != "" && state.LastQuestionNumber != "" && ref == state.LastQuestionNumber:
		return Mode{Kind: FollowUp, QuestionNumber: ref}
	case ref != "":
		return Mode{Kind: NewQuestionLookup, QuestionNumber: ref}
	case state.LastQuestionNumber != "":
		return Mode{Kind: ContinuePrevious, QuestionNumber: state.LastQuestionNumber}
	case state.MessageCount == 1:
		return Mode{Kind: FirstQuestionConfirm}
	default:
		return Mode{Kind: Clarify}
	}
}

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/salmanmuddhoo/ExamV2-sub001/internal/assets"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/config"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/models"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/tutor"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/viewer"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrTurnInFlight rejects a send while the previous backend call for the
	// same session is still running; sends are single-flight per session.
	ErrTurnInFlight = errors.New("a message is already being processed")
)

// ClientKind distinguishes the rendering path.
type ClientKind string

const (
	ClientDesktop ClientKind = "desktop"
	ClientMobile  ClientKind = "mobile"
)

const maxDocumentBytes = 64 << 20 // 64 MB

// Session is one open viewer screen: its asset cache, conversation state,
// and rendering controller all live and die with it.
type Session struct {
	ID          string
	UserID      int64
	ExamPaperID int64
	Client      ClientKind
	Paper       *models.ExamPaper
	Cache       *assets.Cache
	Viewer      *viewer.Controller

	mu       sync.Mutex
	state    tutor.State
	inFlight bool
}

// State returns a copy of the conversation state.
func (s *Session) State() tutor.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) beginTurn() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return ErrTurnInFlight
	}
	s.inFlight = true
	return nil
}

func (s *Session) endTurn() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// Conversations is the subset of the persistence layer the registry needs.
type Conversations interface {
	EnsureConversation(ctx context.Context, paperID, userID int64) (int64, error)
}

// Registry owns all live viewer sessions and the per-paper document binaries
// served to desktop clients.
type Registry struct {
	store         *assets.Store
	fetcher       assets.ImageFetcher
	conversations Conversations
	tutorSvc      *tutor.Service
	viewerCfg     config.ViewerConfig
	sched         viewer.Scheduler
	provider      string
	httpClient    *http.Client

	mu       sync.Mutex
	sessions map[string]*Session

	docMu sync.Mutex
	docs  map[int64][]byte
}

func NewRegistry(store *assets.Store, fetcher assets.ImageFetcher, conversations Conversations, tutorSvc *tutor.Service, viewerCfg config.ViewerConfig, sched viewer.Scheduler, provider string) *Registry {
	return &Registry{
		store:         store,
		fetcher:       fetcher,
		conversations: conversations,
		tutorSvc:      tutorSvc,
		viewerCfg:     viewerCfg,
		sched:         sched,
		provider:      provider,
		httpClient:    &http.Client{Timeout: time.Minute},
		sessions:      make(map[string]*Session),
		docs:          make(map[int64][]byte),
	}
}

// Open creates a viewer session for a (paper, user, client) triple and starts
// the rendering controller on the paper's document.
func (r *Registry) Open(ctx context.Context, paperID, userID int64, client ClientKind) (*Session, error) {
	if client != ClientDesktop && client != ClientMobile {
		return nil, fmt.Errorf("unknown client kind: %s", client)
	}
	paper, err := r.store.GetPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	convID, err := r.conversations.EnsureConversation(ctx, paperID, userID)
	if err != nil {
		return nil, err
	}

	directURL := fmt.Sprintf("/api/papers/%d/document", paperID)
	ctrl := viewer.NewController(r.viewerCfg, r.sched, client == ClientDesktop, directURL)
	ctrl.Reset(paper.DocumentURL)

	sess := &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		ExamPaperID: paperID,
		Client:      client,
		Paper:       paper,
		Cache:       assets.NewCache(paperID, r.store, r.fetcher),
		Viewer:      ctrl,
		state:       tutor.State{ConversationID: convID},
	}

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()
	return sess, nil
}

// Get returns a live session by id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Close drops a session and everything scoped to it.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Send runs one tutoring turn for the session. Concurrent sends within a
// session are rejected with ErrTurnInFlight rather than queued.
func (r *Registry) Send(ctx context.Context, sessionID, text string) (*tutor.TurnResult, error) {
	sess, err := r.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.beginTurn(); err != nil {
		return nil, err
	}
	defer sess.endTurn()

	sess.mu.Lock()
	state := sess.state
	sess.mu.Unlock()

	env := tutor.Env{
		Provider:       r.provider,
		ExamPaperID:    sess.ExamPaperID,
		ConversationID: state.ConversationID,
		UserID:         sess.UserID,
	}
	result, err := r.tutorSvc.HandleTurn(ctx, sess.Cache, &state, env, text)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	sess.state = state
	sess.mu.Unlock()
	return result, nil
}

// DocumentBytes returns the paper's source binary, downloading it at most
// once per paper for the life of the process. Desktop clients render from
// this in-memory copy.
func (r *Registry) DocumentBytes(ctx context.Context, paperID int64) ([]byte, error) {
	r.docMu.Lock()
	if data, ok := r.docs[paperID]; ok {
		r.docMu.Unlock()
		return data, nil
	}
	r.docMu.Unlock()

	paper, err := r.store.GetPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, paper.DocumentURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build document request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch document: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if len(data) > maxDocumentBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", maxDocumentBytes)
	}

	r.docMu.Lock()
	if cached, ok := r.docs[paperID]; ok {
		data = cached
	} else {
		r.docs[paperID] = data
	}
	r.docMu.Unlock()
	return data, nil
}

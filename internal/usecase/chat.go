package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"shop-assistant/internal/assistant"
	"shop-assistant/internal/domain"
	"shop-assistant/internal/logger"
	"shop-assistant/internal/repository"
)

const (
	defaultMaxMessage = 500
	defaultMaxTurns   = 50
)

type SessionStore interface {
	Load(ctx context.Context, threadID string) (domain.Conversation, error)
	Save(ctx context.Context, conv *domain.Conversation) error
}

type Router interface {
	Run(ctx context.Context, conv *domain.Conversation, observe assistant.Observer) (assistant.RunResult, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type ChatService struct {
	store         SessionStore
	router        Router
	log           *logger.Logger
	maxMessageLen int
	maxTurns      int

	locks threadLocks
}

type ChatInput struct {
	Message  string
	ThreadID string
}

type ChatOutput struct {
	Replies  []string
	ThreadID string
	Intent   domain.Intent
	Steps    []assistant.StepUpdate
}

// Reply joins the turn's replies in the order they were produced.
func (o ChatOutput) Reply() string {
	return strings.Join(o.Replies, "\n")
}

func NewChatService(store SessionStore, router Router, log *logger.Logger, maxMessageLen, maxTurns int) (*ChatService, error) {
	if store == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if router == nil {
		return nil, errors.New("usecase: router must not be nil")
	}
	if log == nil {
		log = logger.Nop()
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessage
	}
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &ChatService{
		store:         store,
		router:        router,
		log:           log,
		maxMessageLen: maxMessageLen,
		maxTurns:      maxTurns,
		locks:         threadLocks{held: make(map[string]*threadLock)},
	}, nil
}

// Chat runs one customer turn. Turns on the same thread are serialised;
// observe, when set, sees every step as it completes.
func (s *ChatService) Chat(ctx context.Context, in ChatInput, observe assistant.Observer) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(message) > s.maxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	threadID := strings.TrimSpace(in.ThreadID)
	if threadID == "" {
		threadID = newUUID()
	}

	unlock := s.locks.lock(threadID)
	defer unlock()

	conv, err := s.store.Load(ctx, threadID)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, "session_load_error", err)
	}
	if conv.UserTurns() >= s.maxTurns {
		return ChatOutput{}, newError(ErrorInvalidInput, "conversation_turn_limit", nil)
	}
	conv.ThreadID = threadID
	conv.Append(domain.Message{Role: domain.RoleUser, Content: message})
	conv.Intent = domain.IntentNone

	res, err := s.router.Run(ctx, &conv, observe)
	if err != nil {
		return ChatOutput{}, s.runError(threadID, err)
	}

	if err := s.store.Save(ctx, &conv); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return ChatOutput{}, newError(ErrorConflict, "session_version_conflict", err)
		}
		if errors.Is(err, repository.ErrItemTooLarge) {
			return ChatOutput{}, newError(ErrorInvalidInput, "conversation_turn_limit", err)
		}
		return ChatOutput{}, newError(ErrorInternal, "session_save_error", err)
	}

	s.log.Info("turn completed",
		"thread_id", threadID,
		"intent", string(res.Resolved),
		"steps", len(res.Steps),
		"replies", len(res.Replies),
	)
	return ChatOutput{
		Replies:  res.Replies,
		ThreadID: threadID,
		Intent:   res.Resolved,
		Steps:    res.Steps,
	}, nil
}

func (s *ChatService) runError(threadID string, err error) *Error {
	s.log.Error("turn failed", "thread_id", threadID, "err", err)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return newError(ErrorTimeout, "turn_deadline", err)
	case errors.Is(err, assistant.ErrModelUnavailable):
		return newError(ErrorUpstream, "model_error", err)
	}
	if _, ok := upstreamStatusCode(err); ok {
		return newError(ErrorUpstream, "upstream_error", err)
	}
	if errors.Is(err, assistant.ErrStepLimit) {
		return newError(ErrorInternal, "step_limit", err)
	}
	if errors.Is(err, assistant.ErrInvalidTransition) {
		return newError(ErrorInternal, "invalid_transition", err)
	}
	return newError(ErrorInternal, "router_error", err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

// threadLocks hands out one mutex per thread id and forgets it once no turn
// holds or waits on it.
type threadLocks struct {
	mu   sync.Mutex
	held map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

func (l *threadLocks) lock(threadID string) func() {
	l.mu.Lock()
	tl, ok := l.held[threadID]
	if !ok {
		tl = &threadLock{}
		l.held[threadID] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()
	return func() {
		tl.mu.Unlock()
		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.held, threadID)
		}
		l.mu.Unlock()
	}
}

var newUUID = func() string {
	return uuid.NewString()
}

// Package assistant implements the customer-service routing state machine
// and its intent handlers.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shop-assistant/internal/domain"
	"shop-assistant/internal/logger"
)

const (
	defaultMaxSteps      = 12
	defaultMaxToolRounds = 4
	defaultLLMTimeout    = 30 * time.Second
)

var (
	// ErrModelUnavailable marks failures of the language model. The router
	// turns them into an apology and an escalation instead of failing the turn.
	ErrModelUnavailable   = errors.New("assistant: model unavailable")
	ErrToolRoundsExceeded = errors.New("assistant: tool call rounds exceeded")
	ErrInvalidTransition  = errors.New("assistant: invalid transition")
	ErrStepLimit          = errors.New("assistant: step limit reached")
)

// LLM is the model boundary.
type LLM interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
	ChatWithTools(ctx context.Context, model string, messages []domain.ChatMessage, tools []domain.ToolDefinition) (domain.ChatMessage, error)
}

// Catalog is the read-only query layer. Implementations return empty
// results instead of errors.
type Catalog interface {
	AttributeKeys(ctx context.Context) []string
	ProductAttribute(ctx context.Context, productID int64, key string) []string
	AttributeAcrossProducts(ctx context.Context, key string) []domain.AttributeValue
	PurchaseSizes(ctx context.Context, productID int64, height, weight int) []string
	SizeTable(ctx context.Context, productID int64) []domain.SizeRow
	OrderDate(ctx context.Context, orderID int64) []time.Time
}

// TicketSink receives escalation tickets for human agents.
type TicketSink interface {
	SubmitTicket(ctx context.Context, t domain.EscalationTicket) error
}

// Options configures an Assistant. Zero values select defaults.
type Options struct {
	Model             string
	LLMTimeout        time.Duration
	MaxSteps          int
	MaxToolRounds     int
	AttributeCacheTTL time.Duration
}

// Assistant holds the collaborators shared by the router and every handler.
type Assistant struct {
	llm     LLM
	catalog Catalog
	tickets TicketSink
	keys    *AttributeCache
	log     *logger.Logger

	model         string
	llmTimeout    time.Duration
	maxSteps      int
	maxToolRounds int

	now   func() time.Time
	newID func() string

	handlers map[Node]handlerFunc
}

// New wires an Assistant. tickets may be nil, in which case escalation
// tickets are only logged.
func New(llm LLM, catalog Catalog, tickets TicketSink, log *logger.Logger, opts Options) (*Assistant, error) {
	if llm == nil {
		return nil, errors.New("assistant: llm must not be nil")
	}
	if catalog == nil {
		return nil, errors.New("assistant: catalog must not be nil")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("assistant: model must not be empty")
	}
	if log == nil {
		log = logger.Nop()
	}
	if tickets == nil {
		tickets = logSink{log: log}
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = defaultLLMTimeout
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = defaultMaxSteps
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = defaultMaxToolRounds
	}

	a := &Assistant{
		llm:           llm,
		catalog:       catalog,
		tickets:       tickets,
		keys:          NewAttributeCache(catalog, opts.AttributeCacheTTL),
		log:           log,
		model:         strings.TrimSpace(opts.Model),
		llmTimeout:    opts.LLMTimeout,
		maxSteps:      opts.MaxSteps,
		maxToolRounds: opts.MaxToolRounds,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	a.handlers = map[Node]handlerFunc{
		NodeClassifier:        a.classifierNode,
		NodeCommentary:        a.commentaryNode,
		NodeSize:              a.sizeNode,
		NodeReturnExchange:    a.returnExchangeNode,
		NodeModifyInformation: a.modifyInformationNode,
		NodeManualDocking:     a.manualDockingNode,
	}
	return a, nil
}

// Warm loads the attribute-key cache ahead of the first commentary question.
func (a *Assistant) Warm(ctx context.Context) int {
	n := len(a.keys.Refresh(ctx))
	a.log.Info("attribute keys loaded", "count", n)
	return n
}

// chat calls the model under the per-call timeout.
func (a *Assistant) chat(ctx context.Context, op string, messages []domain.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.llmTimeout)
	defer cancel()
	out, err := a.llm.Chat(ctx, a.model, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrModelUnavailable, op, err)
	}
	return out, nil
}

func (a *Assistant) chatWithTools(ctx context.Context, messages []domain.ChatMessage, tools []domain.ToolDefinition) (domain.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, a.llmTimeout)
	defer cancel()
	out, err := a.llm.ChatWithTools(ctx, a.model, messages, tools)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%w: commentary: %w", ErrModelUnavailable, err)
	}
	return out, nil
}

type logSink struct {
	log *logger.Logger
}

func (s logSink) SubmitTicket(_ context.Context, t domain.EscalationTicket) error {
	s.log.Info("escalation ticket",
		"ticket_id", t.ID,
		"thread_id", t.ThreadID,
		"problem_type", string(t.ProblemType),
		"order_id", t.OrderID,
		"product_id", t.ProductID,
		"summary", t.Summary,
		"created_at", t.CreatedAt.Format("2006-01-02 15:04:05"),
	)
	return nil
}

package assistant

import (
	"context"
	"errors"
	"fmt"

	"shop-assistant/internal/domain"
)

// Node identifies a state of the routing machine.
type Node string

const (
	NodeClassifier        Node = "classifier"
	NodeCommentary        Node = "commentary"
	NodeSize              Node = "size"
	NodeReturnExchange    Node = "return_exchange"
	NodeModifyInformation Node = "modify_information"
	NodeManualDocking     Node = "manual_docking"
	NodeEnd               Node = "end"
)

// Result is what a handler produced: an optional reply and an optional new
// intent. IntentNone leaves the current intent unchanged.
type Result struct {
	Reply  string
	Intent domain.Intent
}

type handlerFunc func(ctx context.Context, conv *domain.Conversation) (Result, error)

// StepUpdate describes one executed node, in execution order.
type StepUpdate struct {
	Step     int
	Node     Node
	Intent   domain.Intent
	Reply    string
	Degraded bool
	Err      error
}

// Observer receives step updates as they happen.
type Observer func(StepUpdate)

// RunResult summarises a turn.
type RunResult struct {
	Replies []string
	// Resolved is the last business intent decided during the turn, before
	// the terminal marker was set.
	Resolved domain.Intent
	Steps    []StepUpdate
}

// Transitions out of the classifier, keyed by the intent it left behind.
var classifierEdges = map[domain.Intent]Node{
	domain.IntentCommentary:        NodeCommentary,
	domain.IntentSize:              NodeSize,
	domain.IntentReturnExchange:    NodeReturnExchange,
	domain.IntentModifyInformation: NodeModifyInformation,
	domain.IntentManualDocking:     NodeManualDocking,
	domain.IntentTerminal:          NodeEnd,
}

// Transitions out of return/exchange. Leaving the intent unchanged ends the
// turn while the customer supplies missing details.
var returnExchangeEdges = map[domain.Intent]Node{
	domain.IntentManualDocking:  NodeManualDocking,
	domain.IntentReclassify:     NodeClassifier,
	domain.IntentReturnExchange: NodeEnd,
}

// Next returns the node that follows from given the intent after from ran.
func Next(from Node, intent domain.Intent) (Node, error) {
	switch from {
	case NodeClassifier:
		if n, ok := classifierEdges[intent]; ok {
			return n, nil
		}
		return NodeManualDocking, nil
	case NodeCommentary, NodeSize, NodeModifyInformation, NodeManualDocking:
		return NodeClassifier, nil
	case NodeReturnExchange:
		if n, ok := returnExchangeEdges[intent]; ok {
			return n, nil
		}
		return "", fmt.Errorf("%w: %s with intent %q", ErrInvalidTransition, from, intent)
	case NodeEnd:
		return NodeEnd, nil
	default:
		return "", fmt.Errorf("%w: unknown node %q", ErrInvalidTransition, from)
	}
}

// Run drives the state machine for the current turn, mutating conv. It is a
// no-op once conv.Intent is terminal.
func (a *Assistant) Run(ctx context.Context, conv *domain.Conversation, observe Observer) (RunResult, error) {
	var res RunResult
	if conv.Intent == domain.IntentTerminal {
		return res, nil
	}

	node := NodeClassifier
	for step := 1; node != NodeEnd; step++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if step > a.maxSteps {
			return res, fmt.Errorf("%w: %d steps", ErrStepLimit, a.maxSteps)
		}

		handle, ok := a.handlers[node]
		if !ok {
			return res, fmt.Errorf("%w: no handler for %q", ErrInvalidTransition, node)
		}

		update := StepUpdate{Step: step, Node: node}
		out, err := handle(ctx, conv)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			if !errors.Is(err, ErrModelUnavailable) {
				return res, err
			}
			a.log.Warn("model failure; escalating", "thread_id", conv.ThreadID, "node", string(node), "err", err)
			out = Result{Reply: replyApology, Intent: domain.IntentManualDocking}
			update.Degraded = true
			update.Err = err
		}

		if out.Reply != "" {
			conv.Append(domain.Message{Role: domain.RoleAssistant, Content: out.Reply})
			res.Replies = append(res.Replies, out.Reply)
		}
		if out.Intent != domain.IntentNone {
			conv.Intent = out.Intent
		}
		if conv.Intent != domain.IntentTerminal && conv.Intent != domain.IntentReclassify {
			res.Resolved = conv.Intent
		}
		update.Intent = conv.Intent
		update.Reply = out.Reply
		res.Steps = append(res.Steps, update)
		if observe != nil {
			observe(update)
		}

		if update.Degraded {
			node = NodeManualDocking
			continue
		}
		if node, err = Next(node, conv.Intent); err != nil {
			return res, err
		}
	}
	conv.Intent = domain.IntentTerminal
	return res, nil
}

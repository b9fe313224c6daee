package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is a single conversation entry. It is never modified after it has
// been appended to a Conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Intent is the classified category driving which handler runs next.
// The zero value means no intent has been decided for the current turn.
type Intent string

const (
	IntentNone              Intent = ""
	IntentCommentary        Intent = "commentary"
	IntentSize              Intent = "size"
	IntentReturnExchange    Intent = "return_exchange"
	IntentModifyInformation Intent = "modify_information"
	IntentManualDocking     Intent = "manual_docking"
	// IntentReclassify hands control back to the classifier node.
	IntentReclassify Intent = "classifier"
	IntentTerminal   Intent = "terminal"
)

// ClassifierLabels are the labels the classifier is allowed to return.
var ClassifierLabels = []Intent{
	IntentCommentary,
	IntentSize,
	IntentReturnExchange,
	IntentModifyInformation,
	IntentManualDocking,
}

// ParseLabel maps an exact classifier label to its Intent.
func ParseLabel(s string) (Intent, bool) {
	for _, in := range ClassifierLabels {
		if string(in) == s {
			return in, true
		}
	}
	return IntentNone, false
}

// Conversation is the persisted state of one chat thread.
type Conversation struct {
	ThreadID  string    `json:"threadId"`
	Messages  []Message `json:"messages"`
	Intent    Intent    `json:"intent"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Append adds messages to the end of the conversation.
func (c *Conversation) Append(msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
}

// LastUserMessage returns the content of the most recent user message.
func (c *Conversation) LastUserMessage() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i].Content
		}
	}
	return ""
}

// UserTurns counts the customer messages in the conversation.
func (c *Conversation) UserTurns() int {
	n := 0
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// Clone returns a deep copy safe to mutate independently.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = append([]Message(nil), c.Messages...)
	return out
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"shop-assistant/internal/domain"
)

const (
	skState     = "STATE#"
	skTicket    = "TICKET#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL

	// maxItemBytes is DynamoDB's per-item size limit.
	maxItemBytes = 400 * 1024
)

// ErrVersionConflict reports that another writer saved the conversation
// since it was loaded.
var ErrVersionConflict = errors.New("repository: conversation version conflict")

// ErrItemTooLarge reports that the encoded conversation exceeds the
// DynamoDB item size limit and was not written.
var ErrItemTooLarge = errors.New("repository: conversation exceeds item size limit")

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client wraps a DynamoDB table holding one state item per chat thread.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// threadPK returns the DynamoDB partition key for a thread.
func threadPK(threadID string) string {
	return "THREAD#" + threadID
}

// ttlValue returns a Unix timestamp 30 days after now.
func ttlValue(now time.Time) int64 {
	return now.Add(ttlDuration).Unix()
}

// Load returns the stored conversation for a thread, or an empty
// conversation at version 0 when the thread is new.
func (c *Client) Load(ctx context.Context, threadID string) (domain.Conversation, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: threadPK(threadID)},
			"SK": &types.AttributeValueMemberS{Value: skState},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repository: Load get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Conversation{ThreadID: threadID}, nil
	}
	conv, err := itemToConversation(out.Item)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repository: Load decode: %w", err)
	}
	conv.ThreadID = threadID
	return conv, nil
}

// Save writes the conversation if its stored version still equals
// conv.Version, then advances conv.Version.
func (c *Client) Save(ctx context.Context, conv *domain.Conversation) error {
	if conv == nil || strings.TrimSpace(conv.ThreadID) == "" {
		return errors.New("repository: Save: thread id is required")
	}
	now := c.now().UTC()
	next := *conv
	next.Version = conv.Version + 1
	next.UpdatedAt = now

	item, err := conversationItem(next, ttlValue(now))
	if err != nil {
		return fmt.Errorf("repository: Save encode: %w", err)
	}
	if size := itemSize(item); size > maxItemBytes {
		return fmt.Errorf("%w: %d bytes", ErrItemTooLarge, size)
	}

	in := &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	}
	if conv.Version == 0 {
		in.ConditionExpression = aws.String("attribute_not_exists(PK)")
	} else {
		in.ConditionExpression = aws.String("version = :expected")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(conv.Version, 10)},
		}
	}

	if _, err := c.api.PutItem(ctx, in); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrVersionConflict
		}
		return fmt.Errorf("repository: Save: %w", err)
	}
	*conv = next
	return nil
}

// SubmitTicket persists an escalation ticket for the human-agent queue.
func (c *Client) SubmitTicket(ctx context.Context, t domain.EscalationTicket) error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("repository: SubmitTicket: ticket id is required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                ticketItem(t, ttlValue(c.now())),
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: SubmitTicket: %w", err)
	}
	return nil
}

func conversationItem(conv domain.Conversation, ttl int64) (map[string]types.AttributeValue, error) {
	msgs := conv.Messages
	if msgs == nil {
		msgs = []domain.Message{}
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return nil, err
	}
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: threadPK(conv.ThreadID)},
		"SK":        &types.AttributeValueMemberS{Value: skState},
		"threadId":  &types.AttributeValueMemberS{Value: conv.ThreadID},
		"intent":    &types.AttributeValueMemberS{Value: string(conv.Intent)},
		"messages":  &types.AttributeValueMemberS{Value: string(raw)},
		"version":   &types.AttributeValueMemberN{Value: strconv.FormatInt(conv.Version, 10)},
		"updatedAt": &types.AttributeValueMemberS{Value: conv.UpdatedAt.Format(time.RFC3339Nano)},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}, nil
}

// itemSize approximates DynamoDB's item size: attribute names plus the
// UTF-8 length of every string and number value.
func itemSize(item map[string]types.AttributeValue) int {
	n := 0
	for name, v := range item {
		n += len(name)
		switch av := v.(type) {
		case *types.AttributeValueMemberS:
			n += len(av.Value)
		case *types.AttributeValueMemberN:
			n += len(av.Value)
		}
	}
	return n
}

func ticketItem(t domain.EscalationTicket, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: skTicket + t.ID},
		"SK":          &types.AttributeValueMemberS{Value: skTicket},
		"threadId":    &types.AttributeValueMemberS{Value: t.ThreadID},
		"userQuery":   &types.AttributeValueMemberS{Value: t.UserQuery},
		"problemType": &types.AttributeValueMemberS{Value: string(t.ProblemType)},
		"orderId":     &types.AttributeValueMemberS{Value: t.OrderID},
		"productId":   &types.AttributeValueMemberS{Value: t.ProductID},
		"summary":     &types.AttributeValueMemberS{Value: t.Summary},
		"createdAt":   &types.AttributeValueMemberS{Value: t.CreatedAt.UTC().Format(time.RFC3339)},
		"ttl":         &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

// itemToConversation converts a DynamoDB attribute map to a Conversation.
func itemToConversation(item map[string]types.AttributeValue) (domain.Conversation, error) {
	raw, err := strAttr(item, "messages")
	if err != nil {
		return domain.Conversation{}, err
	}
	var msgs []domain.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return domain.Conversation{}, fmt.Errorf("repository: decode messages: %w", err)
	}
	version, err := intAttr(item, "version")
	if err != nil {
		return domain.Conversation{}, err
	}
	intent, _ := strAttr(item, "intent") // allow empty
	conv := domain.Conversation{
		Messages: msgs,
		Intent:   domain.Intent(intent),
		Version:  int64(version),
	}
	if ts, err := strAttr(item, "updatedAt"); err == nil {
		conv.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	}
	return conv, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

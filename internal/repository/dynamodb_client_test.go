package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"shop-assistant/internal/domain"
)

type fakeDynamo struct {
	getOut       *dynamodb.GetItemOutput
	getErr       error
	putErr       error
	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	c.now = func() time.Time { return fixedNow }
	return c
}

func makeStateItem(messages, intent, version string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: "THREAD#t1"},
		"SK":        &types.AttributeValueMemberS{Value: skState},
		"messages":  &types.AttributeValueMemberS{Value: messages},
		"intent":    &types.AttributeValueMemberS{Value: intent},
		"version":   &types.AttributeValueMemberN{Value: version},
		"updatedAt": &types.AttributeValueMemberS{Value: fixedNow.Format(time.RFC3339Nano)},
	}
}

func TestNew_Validates(t *testing.T) {
	_, err := New(nil, "t")
	require.Error(t, err)
	_, err = New(&fakeDynamo{}, " ")
	require.Error(t, err)
}

func TestLoad_NewThread(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	c := mustNewClient(t, db)

	conv, err := c.Load(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "t1", conv.ThreadID)
	require.Zero(t, conv.Version)
	require.Empty(t, conv.Messages)
	require.Equal(t, "THREAD#t1", db.lastGetInput.Key["PK"].(*types.AttributeValueMemberS).Value)
	require.True(t, aws.ToBool(db.lastGetInput.ConsistentRead))
}

func TestLoad_ExistingThread(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{
		Item: makeStateItem(`[{"role":"user","content":"你好"},{"role":"assistant","content":"亲亲"}]`, "manual_docking", "3"),
	}}
	c := mustNewClient(t, db)

	conv, err := c.Load(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, int64(3), conv.Version)
	require.Equal(t, domain.IntentManualDocking, conv.Intent)
	require.Len(t, conv.Messages, 2)
	require.Equal(t, domain.RoleAssistant, conv.Messages[1].Role)
	require.Equal(t, fixedNow, conv.UpdatedAt)
}

func TestLoad_Errors(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{getErr: errors.New("boom")})
	_, err := c.Load(context.Background(), "t1")
	require.ErrorContains(t, err, "Load get item")

	c = mustNewClient(t, &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: makeStateItem("not-json", "", "1")}})
	_, err = c.Load(context.Background(), "t1")
	require.ErrorContains(t, err, "Load decode")

	c = mustNewClient(t, &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: makeStateItem("[]", "", "x")}})
	_, err = c.Load(context.Background(), "t1")
	require.ErrorContains(t, err, "parse attribute")
}

func TestSave_FirstWriteRequiresAbsentItem(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	conv := &domain.Conversation{ThreadID: "t1", Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}}}
	require.NoError(t, c.Save(context.Background(), conv))
	require.Equal(t, int64(1), conv.Version)
	require.Equal(t, fixedNow, conv.UpdatedAt)

	in := db.lastPutInput
	require.Equal(t, "attribute_not_exists(PK)", aws.ToString(in.ConditionExpression))
	require.Equal(t, "1", in.Item["version"].(*types.AttributeValueMemberN).Value)
	require.Equal(t, `[{"role":"user","content":"hi"}]`, in.Item["messages"].(*types.AttributeValueMemberS).Value)
	require.NotEmpty(t, in.Item["ttl"].(*types.AttributeValueMemberN).Value)
}

func TestSave_UpdateChecksExpectedVersion(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	conv := &domain.Conversation{ThreadID: "t1", Version: 4, Intent: domain.IntentSize}
	require.NoError(t, c.Save(context.Background(), conv))
	require.Equal(t, int64(5), conv.Version)

	in := db.lastPutInput
	require.Equal(t, "version = :expected", aws.ToString(in.ConditionExpression))
	require.Equal(t, "4", in.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberN).Value)
	require.Equal(t, "[]", in.Item["messages"].(*types.AttributeValueMemberS).Value)
}

func TestSave_ConflictMapsToSentinel(t *testing.T) {
	db := &fakeDynamo{putErr: &types.ConditionalCheckFailedException{Message: aws.String("failed")}}
	c := mustNewClient(t, db)

	conv := &domain.Conversation{ThreadID: "t1", Version: 2}
	err := c.Save(context.Background(), conv)
	require.ErrorIs(t, err, ErrVersionConflict)
	require.Equal(t, int64(2), conv.Version, "version must not advance on failure")
}

func TestSave_Errors(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{putErr: errors.New("throttled")})
	err := c.Save(context.Background(), &domain.Conversation{ThreadID: "t1"})
	require.ErrorContains(t, err, "throttled")

	require.Error(t, c.Save(context.Background(), &domain.Conversation{}))
	require.Error(t, c.Save(context.Background(), nil))
}

func longConversation(turns int) domain.Conversation {
	question := strings.Repeat("码", 500)
	reply := strings.Repeat("亲", 1000)
	conv := domain.Conversation{ThreadID: "t1"}
	for i := 0; i < turns; i++ {
		conv.Append(
			domain.Message{Role: domain.RoleUser, Content: question},
			domain.Message{Role: domain.RoleAssistant, Content: reply},
		)
	}
	return conv
}

func TestSave_TurnLimitFitsItemSize(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	// 50 turns is the default MAX_TURNS.
	conv := longConversation(50)
	require.NoError(t, c.Save(context.Background(), &conv))
	require.NotNil(t, db.lastPutInput)
	require.LessOrEqual(t, itemSize(db.lastPutInput.Item), maxItemBytes)
}

func TestSave_RejectsOversizedItem(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	conv := longConversation(120)
	err := c.Save(context.Background(), &conv)
	require.ErrorIs(t, err, ErrItemTooLarge)
	require.Nil(t, db.lastPutInput)
	require.Equal(t, int64(0), conv.Version)
}

func TestSubmitTicket(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	err := c.SubmitTicket(context.Background(), domain.EscalationTicket{
		ID:          "tk-1",
		ThreadID:    "t1",
		UserQuery:   "订单号1的衣服破损了",
		ProblemType: domain.IntentManualDocking,
		OrderID:     "1",
		Summary:     "用户反馈订单1商品破损",
		CreatedAt:   fixedNow,
	})
	require.NoError(t, err)
	item := db.lastPutInput.Item
	require.Equal(t, "TICKET#tk-1", item["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "1", item["orderId"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "manual_docking", item["problemType"].(*types.AttributeValueMemberS).Value)

	require.Error(t, c.SubmitTicket(context.Background(), domain.EscalationTicket{}))
}

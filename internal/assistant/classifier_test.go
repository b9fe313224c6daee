package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"shop-assistant/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		label  string
		want   domain.Intent
		wantOK bool
	}{
		{"commentary", domain.IntentCommentary, true},
		{" size\n", domain.IntentSize, true},
		{"return_exchange", domain.IntentReturnExchange, true},
		{"modify_information", domain.IntentModifyInformation, true},
		{"manual_docking", domain.IntentManualDocking, true},
		{"这是一个尺寸问题", domain.IntentNone, false},
		{"Size", domain.IntentNone, false},
	}
	for _, tc := range cases {
		a := newTestAssistant(t, &fakeLLM{label: tc.label}, &fakeCatalog{}, nil)
		got, ok, err := a.Classify(context.Background(), "hello")
		require.NoError(t, err)
		require.Equal(t, tc.wantOK, ok, tc.label)
		require.Equal(t, tc.want, got, tc.label)
	}
}

func TestClassify_ModelFailure(t *testing.T) {
	a := newTestAssistant(t, &fakeLLM{labelErr: errors.New("timeout")}, &fakeCatalog{}, nil)
	_, _, err := a.Classify(context.Background(), "hello")
	require.ErrorIs(t, err, ErrModelUnavailable)
}

func TestClassifierNode_EndsWhenIntentPresent(t *testing.T) {
	llm := &fakeLLM{label: "size"}
	a := newTestAssistant(t, llm, &fakeCatalog{}, nil)
	conv := userTurn("hello")
	conv.Intent = domain.IntentManualDocking

	res, err := a.classifierNode(context.Background(), conv)
	require.NoError(t, err)
	require.Equal(t, domain.IntentTerminal, res.Intent)
	require.Zero(t, llm.chatCalls)
}

func TestClassifierNode_UnknownLabelEscalates(t *testing.T) {
	a := newTestAssistant(t, &fakeLLM{label: "shipping"}, &fakeCatalog{}, nil)

	res, err := a.classifierNode(context.Background(), userTurn("我的快递到哪了"))
	require.NoError(t, err)
	require.Equal(t, domain.IntentManualDocking, res.Intent)
	require.Empty(t, res.Reply)
}

func TestClassifierNode_ClassifiesLatestUserMessage(t *testing.T) {
	llm := &fakeLLM{label: "size"}
	a := newTestAssistant(t, llm, &fakeCatalog{}, nil)
	conv := userTurn("第一个问题")
	conv.Append(
		domain.Message{Role: domain.RoleAssistant, Content: "回答"},
		domain.Message{Role: domain.RoleUser, Content: "商品id为1，身高175，体重65kg"},
	)

	res, err := a.classifierNode(context.Background(), conv)
	require.NoError(t, err)
	require.Equal(t, domain.IntentSize, res.Intent)
	require.Equal(t, []string{"商品id为1，身高175，体重65kg"}, llm.classified)
}

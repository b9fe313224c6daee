package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"shop-assistant/internal/assistant"
	"shop-assistant/internal/domain"
	"shop-assistant/internal/usecase"
)

type stubUseCase struct {
	out usecase.ChatOutput
	err error
	in  usecase.ChatInput
}

func (s *stubUseCase) Chat(_ context.Context, in usecase.ChatInput, observe assistant.Observer) (usecase.ChatOutput, error) {
	s.in = in
	for _, step := range s.out.Steps {
		observe(step)
	}
	return s.out, s.err
}

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/chat",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil, nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	uc := &stubUseCase{out: usecase.ChatOutput{
		Replies:  []string{"亲亲，已超期", "已为您转接人工"},
		ThreadID: "thread-1",
		Intent:   domain.IntentManualDocking,
		Steps: []assistant.StepUpdate{
			{Step: 1, Node: assistant.NodeClassifier, Intent: domain.IntentReturnExchange},
			{Step: 2, Node: assistant.NodeReturnExchange, Intent: domain.IntentManualDocking},
		},
	}}
	h, err := NewHandler(uc, nil)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"message":"我要退掉订单号为1的商品","threadId":"thread-1"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.ChatInput{Message: "我要退掉订单号为1的商品", ThreadID: "thread-1"}, uc.in)

	out := parseBody[chatResponse](t, resp.Body)
	require.Equal(t, "亲亲，已超期\n已为您转接人工", out.Reply)
	require.Equal(t, []string{"亲亲，已超期", "已为您转接人工"}, out.Replies)
	require.Equal(t, "thread-1", out.ThreadID)
	require.Equal(t, "manual_docking", out.Intent)
	require.Equal(t, []stepView{
		{Step: 1, Node: "classifier", Intent: "return_exchange"},
		{Step: 2, Node: "return_exchange", Intent: "manual_docking"},
	}, out.Steps)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_Base64Body(t *testing.T) {
	uc := &stubUseCase{out: usecase.ChatOutput{ThreadID: "t"}}
	h, err := NewHandler(uc, nil)
	require.NoError(t, err)

	event := makeEvent(base64.StdEncoding.EncodeToString([]byte(`{"message":"你好"}`)))
	event.IsBase64Encoded = true
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "你好", uc.in.Message)

	out := parseBody[chatResponse](t, resp.Body)
	require.NotNil(t, out.Replies)
	require.Empty(t, out.Replies)
}

func TestHandle_InvalidBody(t *testing.T) {
	uc := &stubUseCase{}
	h, err := NewHandler(uc, nil)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)

	event := makeEvent("%%%")
	event.IsBase64Encoded = true
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_message"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "conflict", err: &usecase.Error{Code: usecase.ErrorConflict, Reason: "session_version_conflict"}, status: http.StatusConflict, code: string(usecase.ErrorConflict)},
		{name: "timeout", err: &usecase.Error{Code: usecase.ErrorTimeout, Reason: "turn_deadline"}, status: http.StatusGatewayTimeout, code: string(usecase.ErrorTimeout)},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "model_error"}, status: http.StatusBadGateway, code: string(usecase.ErrorUpstream)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "session_save_error"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := &stubUseCase{err: tc.err}
			h, err := NewHandler(uc, nil)
			require.NoError(t, err)

			resp, err := h.Handle(context.Background(), makeEvent(`{"message":"你好"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
			require.NotEmpty(t, out.Message)
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	uc := &stubUseCase{out: usecase.ChatOutput{Replies: []string{"ok"}, ThreadID: "thread-1"}}
	h, err := NewHandler(uc, nil)
	require.NoError(t, err)

	event := makeEvent(`{"message":"你好"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

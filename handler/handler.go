// Package handler adapts API Gateway proxy events to the chat use case.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"shop-assistant/internal/assistant"
	"shop-assistant/internal/logger"
	"shop-assistant/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type Chatter interface {
	Chat(ctx context.Context, in usecase.ChatInput, observe assistant.Observer) (usecase.ChatOutput, error)
}

type Handler struct {
	chat Chatter
	log  *logger.Logger
}

type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"threadId"`
}

type stepView struct {
	Step     int    `json:"step"`
	Node     string `json:"node"`
	Intent   string `json:"intent"`
	Degraded bool   `json:"degraded,omitempty"`
}

type chatResponse struct {
	Reply    string     `json:"reply"`
	Replies  []string   `json:"replies"`
	ThreadID string     `json:"threadId"`
	Intent   string     `json:"intent"`
	Steps    []stepView `json:"steps"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewHandler(chat Chatter, log *logger.Logger) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{chat: chat, log: log}, nil
}

// Handle serves POST /chat.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(event.Headers)
	log := h.log.With("correlation_id", corrID)

	body := event.Body
	if event.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return h.fail(log, corrID, http.StatusBadRequest, usecase.ErrorInvalidInput, "request body is not valid base64"), nil
		}
		body = string(raw)
	}

	var req chatRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return h.fail(log, corrID, http.StatusBadRequest, usecase.ErrorInvalidInput, "request body must be JSON"), nil
	}

	out, err := h.chat.Chat(ctx, usecase.ChatInput{Message: req.Message, ThreadID: req.ThreadID}, func(u assistant.StepUpdate) {
		log.Debug("step", "step", u.Step, "node", string(u.Node), "intent", string(u.Intent), "degraded", u.Degraded)
	})
	if err != nil {
		var ucErr *usecase.Error
		if errors.As(err, &ucErr) {
			log.Warn("chat failed", "code", string(ucErr.Code), "reason", ucErr.Reason, "err", ucErr.Err)
			return h.fail(log, corrID, statusFor(ucErr.Code), ucErr.Code, messageFor(ucErr.Code)), nil
		}
		log.Error("chat failed", "err", err)
		return h.fail(log, corrID, http.StatusInternalServerError, usecase.ErrorInternal, messageFor(usecase.ErrorInternal)), nil
	}

	steps := make([]stepView, 0, len(out.Steps))
	for _, s := range out.Steps {
		steps = append(steps, stepView{Step: s.Step, Node: string(s.Node), Intent: string(s.Intent), Degraded: s.Degraded})
	}
	replies := out.Replies
	if replies == nil {
		replies = []string{}
	}
	return respond(corrID, http.StatusOK, chatResponse{
		Reply:    out.Reply(),
		Replies:  replies,
		ThreadID: out.ThreadID,
		Intent:   string(out.Intent),
		Steps:    steps,
	}), nil
}

func (h *Handler) fail(log *logger.Logger, corrID string, status int, code usecase.ErrorCode, msg string) events.APIGatewayProxyResponse {
	log.Info("request rejected", "status", status, "code", string(code))
	return respond(corrID, status, errorResponse{Error: string(code), Message: msg})
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorConflict:
		return http.StatusConflict
	case usecase.ErrorTimeout:
		return http.StatusGatewayTimeout
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(code usecase.ErrorCode) string {
	switch code {
	case usecase.ErrorInvalidInput:
		return "message is required and must not exceed the maximum length"
	case usecase.ErrorConflict:
		return "the conversation was updated concurrently; please retry"
	case usecase.ErrorTimeout:
		return "the request timed out"
	case usecase.ErrorUpstream:
		return "an upstream service is unavailable"
	default:
		return "internal error"
	}
}

func respond(corrID string, status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR","message":"internal error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(body),
	}
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}

// AngelaMos | 2026
// service.go

package chat

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/carterperez-dev/bibliotech/internal/config"
	"github.com/carterperez-dev/bibliotech/internal/core"
)

const systemPrompt = `You are BiblioBot, the virtual assistant of the Bibliotech library.
Answer briefly and kindly. What you know:
- Opening hours: 9:00 to 18:00, Monday to Saturday.
- Search: use the search bar of the catalogue.
- Digital loans last 14 days.
- Physical documents can be reserved only while they are borrowed.
- You cannot see live availability or account details; send the user to the
  catalogue or their dashboard for those.
- Politely decline questions unrelated to the library.`

// Completer is the subset of the OpenAI client the service calls.
type Completer interface {
	CreateChatCompletion(
		ctx context.Context,
		req openai.ChatCompletionRequest,
	) (openai.ChatCompletionResponse, error)
}

type Service struct {
	client Completer
	cfg    config.ChatConfig
}

// NewService builds the assistant from config. Without an API key the
// service stays up and answers every request with CHAT_UNAVAILABLE.
func NewService(cfg config.ChatConfig) *Service {
	if !cfg.Enabled() {
		return &Service{cfg: cfg}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Service{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}
}

func NewServiceWithClient(client Completer, cfg config.ChatConfig) *Service {
	return &Service{client: client, cfg: cfg}
}

func (s *Service) Reply(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", core.BadRequestError("message is required")
	}

	if s.client == nil {
		core.ChatRequests.WithLabelValues("unavailable").Inc()
		return "", core.UnavailableError(
			"the library assistant is not configured", "CHAT_UNAVAILABLE")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		N:           1,
	})
	core.ChatDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		appErr := classify(err)
		core.ChatRequests.WithLabelValues(strings.ToLower(appErr.Code)).Inc()
		return "", appErr
	}

	if len(resp.Choices) == 0 {
		core.ChatRequests.WithLabelValues("chat_failed").Inc()
		return "", core.NewAppError(
			errors.New("empty completion"),
			"the library assistant returned no answer",
			http.StatusInternalServerError,
			"CHAT_FAILED",
		)
	}

	core.ChatRequests.WithLabelValues("ok").Inc()

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classify maps a completion failure onto the error surfaced to clients.
func classify(err error) *core.AppError {
	status := 0

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	var netErr net.Error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.NewAppError(err,
			"the library assistant is misconfigured",
			http.StatusInternalServerError, "CHAT_AUTH_FAILED")
	case status == http.StatusTooManyRequests:
		return core.NewAppError(err,
			"the library assistant is busy, please try again shortly",
			http.StatusTooManyRequests, "CHAT_RATE_LIMITED")
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return core.NewAppError(err,
			"the library assistant took too long to answer",
			http.StatusGatewayTimeout, "CHAT_TIMEOUT")
	default:
		return core.NewAppError(err,
			"the library assistant failed to answer",
			http.StatusInternalServerError, "CHAT_FAILED")
	}
}

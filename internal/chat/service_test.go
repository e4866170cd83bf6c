// AngelaMos | 2026
// service_test.go

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/bibliotech/internal/config"
	"github.com/carterperez-dev/bibliotech/internal/core"
)

func testConfig(baseURL string) config.ChatConfig {
	return config.ChatConfig{
		APIKey:    "sk-test",
		Model:     "gpt-4o-mini",
		BaseURL:   baseURL,
		Timeout:   5 * time.Second,
		MaxTokens: 200,
	}
}

func appCode(t *testing.T, err error) (string, int) {
	t.Helper()
	appErr, ok := core.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr.Code, appErr.StatusCode
}

type completerFunc func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)

func (f completerFunc) CreateChatCompletion(
	ctx context.Context,
	req openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	return f(ctx, req)
}

func TestService_ReplyOverHTTP(t *testing.T) {
	t.Run("returns the trimmed answer", func(t *testing.T) {
		var got openai.ChatCompletionRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"c1","object":"chat.completion","choices":[`+
				`{"index":0,"message":{"role":"assistant","content":"  Open 9 to 18.  "},"finish_reason":"stop"}]}`)
		}))
		defer srv.Close()

		svc := NewService(testConfig(srv.URL + "/v1"))
		reply, err := svc.Reply(context.Background(), "  When are you open?  ")
		require.NoError(t, err)
		assert.Equal(t, "Open 9 to 18.", reply)

		require.Len(t, got.Messages, 2)
		assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
		assert.Contains(t, got.Messages[0].Content, "BiblioBot")
		assert.Equal(t, "When are you open?", got.Messages[1].Content)
		assert.Equal(t, "gpt-4o-mini", got.Model)
	})

	for _, tc := range []struct {
		name   string
		status int
		code   string
		http   int
	}{
		{"bad key", http.StatusUnauthorized, "CHAT_AUTH_FAILED", http.StatusInternalServerError},
		{"rate limited", http.StatusTooManyRequests, "CHAT_RATE_LIMITED", http.StatusTooManyRequests},
		{"upstream down", http.StatusBadGateway, "CHAT_FAILED", http.StatusInternalServerError},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				fmt.Fprint(w, `{"error":{"message":"nope","type":"test_error"}}`)
			}))
			defer srv.Close()

			_, err := NewService(testConfig(srv.URL+"/v1")).Reply(context.Background(), "hi")
			code, status := appCode(t, err)
			assert.Equal(t, tc.code, code)
			assert.Equal(t, tc.http, status)
		})
	}
}

func TestService_ReplyEdgeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("empty message", func(t *testing.T) {
		svc := NewServiceWithClient(completerFunc(func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			t.Fatal("client must not be called")
			return openai.ChatCompletionResponse{}, nil
		}), testConfig(""))

		_, err := svc.Reply(ctx, "   ")
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})

	t.Run("not configured", func(t *testing.T) {
		svc := NewService(config.ChatConfig{})

		_, err := svc.Reply(ctx, "hi")
		code, status := appCode(t, err)
		assert.Equal(t, "CHAT_UNAVAILABLE", code)
		assert.Equal(t, http.StatusServiceUnavailable, status)
	})

	t.Run("timeout", func(t *testing.T) {
		cfg := testConfig("")
		cfg.Timeout = 10 * time.Millisecond
		svc := NewServiceWithClient(completerFunc(func(ctx context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			<-ctx.Done()
			return openai.ChatCompletionResponse{}, fmt.Errorf("send: %w", ctx.Err())
		}), cfg)

		_, err := svc.Reply(ctx, "hi")
		code, status := appCode(t, err)
		assert.Equal(t, "CHAT_TIMEOUT", code)
		assert.Equal(t, http.StatusGatewayTimeout, status)
	})

	t.Run("no choices", func(t *testing.T) {
		svc := NewServiceWithClient(completerFunc(func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{}, nil
		}), testConfig(""))

		_, err := svc.Reply(ctx, "hi")
		code, _ := appCode(t, err)
		assert.Equal(t, "CHAT_FAILED", code)
	})
}

func TestHandler_Chat(t *testing.T) {
	svc := NewServiceWithClient(completerFunc(func(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "echo: " + req.Messages[1].Content}},
		}}, nil
	}), testConfig(""))
	h := NewHandler(svc)

	rec := httptest.NewRecorder()
	h.Chat(rec, httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"message":"hello"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reply":"echo: hello"`)

	rec = httptest.NewRecorder()
	h.Chat(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Chat(rec, httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"message":"`+strings.Repeat("a", 2001)+`"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

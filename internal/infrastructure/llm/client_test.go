package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textbook-ai-api/internal/config"
	apperrors "textbook-ai-api/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *[]time.Duration) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(&config.LLMConfig{
		APIKey:         "test-key",
		BaseURL:        server.URL,
		Model:          "test-model",
		Timeout:        5 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Second,
	})

	var sleeps []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return client, &sleeps
}

const okBody = `{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`

func TestCompleteSuccess(t *testing.T) {
	client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(okBody))
	})

	content, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)
	assert.Empty(t, *sleeps)
}

func TestRateLimitHonorsRetryAfter(t *testing.T) {
	var calls int
	client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(okBody))
	})

	content, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)

	require.Len(t, *sleeps, 1)
	assert.GreaterOrEqual(t, (*sleeps)[0], 5*time.Second)
}

func TestRateLimitWithoutHeaderDoublesDelay(t *testing.T) {
	var calls int
	client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(okBody))
	})

	_, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)

	require.Len(t, *sleeps, 2)
	assert.Equal(t, 2*time.Second, (*sleeps)[0])
	assert.Equal(t, 4*time.Second, (*sleeps)[1])
}

func TestExhaustedRateLimitReturnsMaxRetries(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), "system", "user")
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeMaxRetriesReached, appErr.Code)
}

func TestMalformedResponseRetriedThenSurfaced(t *testing.T) {
	var calls int
	client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("<html>not json</html>"))
	})

	_, err := client.Complete(context.Background(), "system", "user")
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeMalformedResponse, appErr.Code)

	// 指数退避：1s 后第二次，2s 后第三次
	require.Len(t, *sleeps, 2)
	assert.Equal(t, time.Second, (*sleeps)[0])
	assert.Equal(t, 2*time.Second, (*sleeps)[1])
}

func TestErrorStatusWithJSONBodyReturnsParsed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
	})

	// 错误状态码但 JSON 合法时原样返回，由上层判断 choices 缺失
	_, err := client.Complete(context.Background(), "system", "user")
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeMalformedResponse, appErr.Code)
	assert.Contains(t, appErr.Detail, "model overloaded")
}

func TestSleepInterruptedByContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		cancel()
		w.WriteHeader(http.StatusTooManyRequests)
	})
	client.sleep = sleepContext

	_, err := client.Complete(ctx, "system", "user")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

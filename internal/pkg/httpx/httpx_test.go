package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"429", &StatusError{StatusCode: 429}, true},
		{"503 wrapped", fmt.Errorf("x: %w", &StatusError{StatusCode: 503}), true},
		{"400", &StatusError{StatusCode: 400}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryableError(tc.err))
		})
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	assert.Equal(t, time.Second, RetryAfterDuration(resp, time.Second, 0))

	resp.Header.Set("Retry-After", "3")
	assert.Equal(t, 3*time.Second, RetryAfterDuration(resp, time.Second, 0))
	assert.Equal(t, 2*time.Second, RetryAfterDuration(resp, time.Second, 2*time.Second))
	assert.Equal(t, time.Second, RetryAfterDuration(nil, time.Second, 0))
}

func TestJitterSleepBounds(t *testing.T) {
	assert.Zero(t, JitterSleep(0))
	for i := 0; i < 100; i++ {
		d := JitterSleep(time.Second)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Service: "openai", StatusCode: 500, Body: "oops"}
	assert.Equal(t, "openai http 500: oops", err.Error())
	assert.Equal(t, 500, err.HTTPStatusCode())
}

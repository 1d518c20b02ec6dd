package s3

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/syncvault/pkg/configs"
)

func newTestClient(t *testing.T, breaker configs.CircuitBreakerConfig) *Client {
	t.Helper()

	c, err := New(&configs.S3Config{
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		BucketName:      "syncvault",
		Breaker:         breaker,
	})
	require.NoError(t, err)

	return c
}

func TestObjectURL(t *testing.T) {
	c := newTestClient(t, configs.CircuitBreakerConfig{})

	assert.Equal(t, "http://localhost:9000/syncvault/abc_report.pdf", c.ObjectURL("abc_report.pdf"))
	assert.Equal(t, "http://localhost:9000/syncvault/abc_my%20file.txt", c.ObjectURL("abc_my file.txt"))
	assert.Equal(t, "disabled", c.BreakerState())
}

func TestPublicURL(t *testing.T) {
	c, err := New(&configs.S3Config{
		Endpoint:   "https://storage.example.com",
		BucketName: "files",
		PublicURL:  "https://cdn.example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/files/k", c.ObjectURL("k"))
}

func TestBreakerOpens(t *testing.T) {
	c := newTestClient(t, configs.CircuitBreakerConfig{
		Enabled:           true,
		FailureRate:       0.5,
		MinRequests:       2,
		TimeoutSeconds:    60,
		MaxRequestsInHalf: 1,
	})

	boom := errors.New("connection refused")

	for range 2 {
		assert.ErrorIs(t, c.call(func() error { return boom }), boom)
	}

	calls := 0
	err := c.call(func() error {
		calls++

		return nil
	})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, calls)
	assert.Equal(t, "open", c.BreakerState())
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	c := newTestClient(t, configs.CircuitBreakerConfig{
		Enabled:        true,
		FailureRate:    0.5,
		MinRequests:    1,
		TimeoutSeconds: 60,
	})

	for range 3 {
		_ = c.call(func() error { return context.Canceled })
	}

	assert.Equal(t, "closed", c.BreakerState())
}

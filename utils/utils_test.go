package utils_test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MlkMahmud/peerwire/utils"
)

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0

	result, err := utils.Retry(context.Background(), utils.RetryOptions[int]{
		MaxAttempts: 5,
		Operation: func() (int, error) {
			calls += 1

			if calls < 3 {
				return 0, errors.New("not yet")
			}

			return 42, nil
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestRetryReturnsLastError(t *testing.T) {
	calls := 0

	_, err := utils.Retry(context.Background(), utils.RetryOptions[int]{
		MaxAttempts: 2,
		Operation: func() (int, error) {
			calls += 1
			return 0, errors.New("always fails")
		},
	})

	require.EqualError(t, err, "always fails")
	assert.Equal(t, 2, calls)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := utils.Retry(ctx, utils.RetryOptions[int]{
		Delay:       time.Hour,
		MaxAttempts: 3,
		Operation:   func() (int, error) { return 0, errors.New("fails") },
	})

	require.ErrorIs(t, err, context.Canceled)
}

func TestConnReadFullDeadline(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	buffer := make([]byte, 4)
	_, err := utils.ConnReadFull(client, buffer, time.Now().Add(20*time.Millisecond))

	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestGenerateRandomString(t *testing.T) {
	value, err := utils.GenerateRandomString(bytes.NewReader([]byte{0, 1, 2, 62}), 4, "")

	require.NoError(t, err)
	assert.Equal(t, "abca", value)

	_, err = utils.GenerateRandomString(bytes.NewReader(nil), 4, "")
	require.Error(t, err)
}

func TestSet(t *testing.T) {
	set := utils.NewSet()

	assert.True(t, set.AddIfAbsent("a"))
	assert.False(t, set.AddIfAbsent("a"))
	assert.True(t, set.Contains("a"))
	assert.Equal(t, 1, set.Size())

	set.Remove("a")
	assert.False(t, set.Contains("a"))
}

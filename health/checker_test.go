package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckReportsHealthyOnSuccess(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.RegisterCheck("ok", func(ctx context.Context) error { return nil })

	result, err := h.Check(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, result.Status)
}

func TestCheckReportsUnhealthyOnError(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.RegisterCheck("bad", func(ctx context.Context) error { return errors.New("dependency down") })

	result, err := h.Check(context.Background(), "bad")
	require.NoError(t, err)
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Message, "dependency down")
}

func TestCheckUnknownNameErrors(t *testing.T) {
	h := NewHealthChecker(time.Second)
	_, err := h.Check(context.Background(), "missing")
	assert.Error(t, err)
}

func TestCheckCachesResultWithinTTL(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.SetCacheTTL(time.Minute)
	calls := 0
	h.RegisterCheck("counted", func(ctx context.Context) error {
		calls++
		return nil
	})

	_, err := h.Check(context.Background(), "counted")
	require.NoError(t, err)
	_, err = h.Check(context.Background(), "counted")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestGetOverallStatusUnhealthyWins(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.RegisterCheck("good", func(ctx context.Context) error { return nil })
	h.RegisterCheck("bad", func(ctx context.Context) error { return errors.New("down") })

	assert.Equal(t, StatusUnhealthy, h.GetOverallStatus(context.Background()))
}

func TestGetOverallStatusHealthyWhenNoChecks(t *testing.T) {
	h := NewHealthChecker(time.Second)
	assert.Equal(t, StatusHealthy, h.GetOverallStatus(context.Background()))
}

func TestSessionRegistryHealthCheckExceedsMax(t *testing.T) {
	check := SessionRegistryHealthCheck(func() int { return 20 }, 10)
	assert.Error(t, check(context.Background()))

	check = SessionRegistryHealthCheck(func() int { return 5 }, 10)
	assert.NoError(t, check(context.Background()))
}

func TestSweeperHeartbeatHealthCheckStaleFails(t *testing.T) {
	stale := time.Now().Add(-time.Hour)
	check := SweeperHeartbeatHealthCheck(func() time.Time { return stale }, time.Minute)
	assert.Error(t, check(context.Background()))

	fresh := time.Now()
	check = SweeperHeartbeatHealthCheck(func() time.Time { return fresh }, time.Minute)
	assert.NoError(t, check(context.Background()))
}

func TestTransportHealthCheckDelegatesToPing(t *testing.T) {
	check := TransportHealthCheck(func(ctx context.Context) error { return errors.New("unreachable") })
	assert.Error(t, check(context.Background()))

	check = TransportHealthCheck(func(ctx context.Context) error { return nil })
	assert.NoError(t, check(context.Background()))
}

func TestUnregisterCheckRemovesIt(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.RegisterCheck("temp", func(ctx context.Context) error { return nil })
	h.UnregisterCheck("temp")

	_, err := h.Check(context.Background(), "temp")
	assert.Error(t, err)
}

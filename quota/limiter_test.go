package quota_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-blog/models"
	"ai-blog/quota"
)

type fakeClock struct {
	t     time.Time
	slept []time.Duration
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.t = c.t.Add(d)
	return nil
}

func TestNilLimiterAlwaysAllows(t *testing.T) {
	var l *quota.Limiter
	ok, err := l.WaitAndReserve(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Nil(t, quota.ForProvider(models.ProviderDescriptor{Name: "free"}))
}

func TestDailyLimit(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 17, 23, 0, 0, 0, time.UTC)}
	l := quota.New(0, 2).WithClock(clock.now, clock.sleep)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.WaitAndReserve(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.WaitAndReserve(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// 날짜가 바뀌면 카운터가 초기화된다.
	clock.t = clock.t.Add(2 * time.Hour)
	ok, err = l.WaitAndReserve(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPerMinutePacing(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	l := quota.New(6, 0).WithClock(clock.now, clock.sleep)
	ctx := context.Background()

	ok, _ := l.WaitAndReserve(ctx)
	assert.True(t, ok)
	ok, _ = l.WaitAndReserve(ctx)
	assert.True(t, ok)

	require.Len(t, clock.slept, 1)
	assert.Equal(t, 10*time.Second, clock.slept[0])
}

func TestCancelledWhileWaiting(t *testing.T) {
	l := quota.New(1, 0)
	ctx, cancel := context.WithCancel(context.Background())

	ok, err := l.WaitAndReserve(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	cancel()
	ok, err = l.WaitAndReserve(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

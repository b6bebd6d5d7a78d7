package quota

import (
	"context"
	"sync"
	"time"

	"ai-blog/models"
)

// Limiter 는 provider 한 개에 대한 분당/일일 호출 한도를 관리한다.
// 프로세스 하나가 provider 를 독점한다는 전제로 인메모리로 동작하며,
// 재시작하면 카운터가 초기화된다.
type Limiter struct {
	mu sync.Mutex

	dailyLimit int
	usedToday  int
	dayKey     string

	interval time.Duration
	lastCall time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New 는 requestsPerMinute, requestsPerDay 로 Limiter 를 만든다.
// 값이 0 이하이면 해당 방향의 제한을 두지 않는다.
func New(requestsPerMinute, requestsPerDay int) *Limiter {
	if requestsPerDay < 0 {
		requestsPerDay = 0
	}
	var interval time.Duration
	if requestsPerMinute > 0 {
		interval = time.Minute / time.Duration(requestsPerMinute)
	}
	return &Limiter{
		dailyLimit: requestsPerDay,
		interval:   interval,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// ForProvider 는 descriptor 에 한도가 없으면 nil 을 반환한다. nil Limiter 는 항상 허용한다.
func ForProvider(d models.ProviderDescriptor) *Limiter {
	if d.RequestsPerMinute <= 0 && d.RequestsPerDay <= 0 {
		return nil
	}
	return New(d.RequestsPerMinute, d.RequestsPerDay)
}

// WithClock 은 테스트용 시계와 대기 함수를 주입한다.
func (l *Limiter) WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *Limiter {
	l.now = now
	l.sleep = sleep
	return l
}

// WaitAndReserve 는 provider 호출 전에 분당/일일 한도를 적용한다.
// - 일일 한도를 초과한 경우: (false, nil). 호출자는 이 provider 를 건너뛴다.
// - 컨텍스트 취소 시: (false, error).
func (l *Limiter) WaitAndReserve(ctx context.Context) (bool, error) {
	if l == nil {
		return true, nil
	}
	for {
		l.mu.Lock()

		now := l.now().UTC()
		todayKey := now.Format("2006-01-02")
		if l.dayKey != todayKey {
			l.dayKey = todayKey
			l.usedToday = 0
		}

		if l.dailyLimit > 0 && l.usedToday >= l.dailyLimit {
			l.mu.Unlock()
			return false, nil
		}

		var delay time.Duration
		if l.interval > 0 && !l.lastCall.IsZero() {
			delay = l.lastCall.Add(l.interval).Sub(now)
		}

		if delay <= 0 {
			l.usedToday++
			l.lastCall = now
			l.mu.Unlock()
			return true, nil
		}

		l.mu.Unlock()
		if err := l.sleep(ctx, delay); err != nil {
			return false, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

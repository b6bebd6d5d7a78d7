package main

import (
	"context"
	"time"

	"ai-blog/config"
	"ai-blog/services"
)

// nextRun 은 now 이후 loc 기준으로 처음 오는 hour 시 정각을 반환한다.
func nextRun(now time.Time, hour int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, 0, 0, 0, loc)
	}
	return next
}

// runSchedule 은 매일 cfg.Hour 시에 RunOnce 를 실행한다. ctx 가 끝나면 반환한다.
func runSchedule(ctx context.Context, svc *services.GenerationService, cfg config.ScheduleConfig) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		config.WarnWithFields("unknown schedule timezone, using UTC", config.Fields{"timezone": cfg.Timezone, "error": err.Error()})
		loc = time.UTC
	}

	for {
		next := nextRun(time.Now(), cfg.Hour, loc)
		config.InfoWithFields("scheduler sleeping", config.Fields{"until": next.Format(time.RFC3339), "timezone": loc.String()})

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := svc.RunOnce(ctx, cfg.Count); err != nil {
			config.ErrorWithFields("scheduled run failed", config.Fields{"error": err.Error()})
		}
	}
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"ai-blog/config"
	"ai-blog/fsutil"
	"ai-blog/services"
)

// Runner 는 services.GenerationService 가 구현한다.
type Runner interface {
	RunOnce(ctx context.Context, count int) (services.RunReport, error)
	LastRun() (services.RunReport, bool)
	Running() bool
}

func HealthHandler(runner Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "running": runner.Running()})
	}
}

// TriggerRunHandler 는 POST /runs?count=N[&wait=true] 를 처리한다.
// 기본은 백그라운드로 실행하고 202 를 반환한다. wait=true 면 실행이 끝날 때까지 기다렸다가 보고서를 반환한다.
// baseCtx 는 서버 종료 시 백그라운드 실행을 취소하기 위한 컨텍스트이다.
// 백그라운드 실행은 bg 에 등록되며, 서버는 종료 전에 bg.Wait 로 실행 잠금이 풀리기를 기다린다.
func TriggerRunHandler(baseCtx context.Context, runner Runner, maxCount int, bg *sync.WaitGroup) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := strconv.Atoi(c.DefaultQuery("count", "1"))
		if err != nil || count < 1 || (maxCount > 0 && count > maxCount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "count must be between 1 and " + strconv.Itoa(maxCount)})
			return
		}
		if runner.Running() {
			c.JSON(http.StatusConflict, gin.H{"error": services.ErrRunInProgress.Error()})
			return
		}

		if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
			report, err := runner.RunOnce(c.Request.Context(), count)
			switch {
			case errors.Is(err, services.ErrRunInProgress), errors.Is(err, fsutil.ErrLocked):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			case err != nil:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": report})
			default:
				c.JSON(http.StatusOK, report)
			}
			return
		}

		bg.Add(1)
		go func() {
			defer bg.Done()
			if _, err := runner.RunOnce(baseCtx, count); err != nil {
				config.WarnWithFields("triggered run failed", config.Fields{"count": count, "error": err.Error()})
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"status": "started", "count": count})
	}
}

func LastRunHandler(runner Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, ok := runner.LastRun()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no run yet"})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

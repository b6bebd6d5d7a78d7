package config

import (
	"io"
	"os"
	"strings"

	"github.com/gookit/slog"
	"github.com/gookit/slog/handler"
)

// Logger 는 패키지들이 전역 로거에 기대하는 메서드만 모은 것이다.
type Logger interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Fields 는 provider, stage, slug 같은 결정 기록용 키-값이다.
type Fields map[string]any

// Log 는 InitLogger 전에도 info 레벨 stderr 로 쓴다.
var Log Logger = NewLogger("info", os.Stderr)

// InitLogger 는 logging 설정으로 전역 로거를 교체한다.
// LOG_LEVEL, LOG_OUTPUT 환경변수가 설정값보다 우선한다.
func InitLogger(cfg LoggingConfig) {
	level := cfg.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	output := cfg.Output
	if env := os.Getenv("LOG_OUTPUT"); env != "" {
		output = env
	}
	Log = NewLogger(level, OutputWriter(output))
}

// OutputWriter 는 "stdout" 이면 표준 출력을, 그 밖의 값은 모두 표준 오류를 돌려준다.
func OutputWriter(name string) io.Writer {
	if strings.EqualFold(strings.TrimSpace(name), "stdout") {
		return os.Stdout
	}
	return os.Stderr
}

// NewLogger 는 w 에 한 줄 JSON 으로 기록하는 gookit/slog 로거를 만든다.
func NewLogger(level string, w io.Writer) Logger {
	limit := slog.LevelByName(level)

	var levels slog.Levels
	for _, lv := range slog.AllLevels {
		if lv <= limit {
			levels = append(levels, lv)
		}
	}

	h := handler.NewIOWriterHandler(w, levels)
	h.SetFormatter(slog.NewJSONFormatter(func(f *slog.JSONFormatter) {
		f.Fields = []string{slog.FieldKeyDatetime, slog.FieldKeyLevel, slog.FieldKeyMessage}
		f.Aliases = slog.StringMap{
			slog.FieldKeyDatetime: "datetime",
			slog.FieldKeyLevel:    "level",
			slog.FieldKeyMessage:  "message",
		}
		f.TimeFormat = "2006-01-02T15:04:05"
	}))

	return slog.NewWithHandlers(h)
}

// record 는 전역 로거가 gookit/slog 일 때만 필드를 붙인 레코드를 만든다.
func record(fields Fields) *slog.Record {
	if lg, ok := Log.(*slog.Logger); ok {
		return lg.WithFields(slog.M(fields))
	}
	return nil
}

func InfoWithFields(msg string, fields Fields) {
	if r := record(fields); r != nil {
		r.Info(msg)
		return
	}
	Log.Info(msg)
}

func DebugWithFields(msg string, fields Fields) {
	if r := record(fields); r != nil {
		r.Debug(msg)
		return
	}
	Log.Debug(msg)
}

func WarnWithFields(msg string, fields Fields) {
	if r := record(fields); r != nil {
		r.Warn(msg)
		return
	}
	Log.Warn(msg)
}

// ErrorWithFields 는 실패한 stage 와 원인을 함께 남긴다.
func ErrorWithFields(msg string, fields Fields) {
	if r := record(fields); r != nil {
		r.Error(msg)
		return
	}
	Log.Error(msg)
}

package httpclient

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"ai-blog/config"
)

// Config는 HTTP 클라이언트 공통 설정을 캡슐화한다.
type Config struct {
	Timeout time.Duration
}

// loggingRoundTripper는 모든 아웃바운드 provider 호출에 대해 공통 로깅과
// X-Request-Id 헤더 트레이싱을 수행한다.
type loggingRoundTripper struct {
	inner http.RoundTripper
}

var (
	// 텔레그램 봇 토큰은 URL 경로에 들어가므로 로그에 남기기 전에 가린다.
	botTokenPattern = regexp.MustCompile(`/bot[^/]+/`)
	keyParamPattern = regexp.MustCompile(`(?i)([?&](?:key|api_key|token)=)[^&]+`)
)

// RedactURL 은 URL 안의 비밀 값을 *** 로 바꾼다.
func RedactURL(raw string) string {
	raw = botTokenPattern.ReplaceAllString(raw, "/bot***/")
	return keyParamPattern.ReplaceAllString(raw, "${1}***")
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	requestID := req.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
		req.Header.Set("X-Request-Id", requestID)
	}

	// JSON 바디만 스니펫으로 남긴다. 이미지 업로드 같은 바이너리는 건너뛴다.
	var bodySnippet string
	if req.Body != nil && strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") {
		if bodyBytes, err := io.ReadAll(req.Body); err == nil {
			const maxBodyLog = 512
			if len(bodyBytes) > maxBodyLog {
				bodySnippet = string(bodyBytes[:maxBodyLog])
			} else {
				bodySnippet = string(bodyBytes)
			}
			// 실제 전송을 위해 Body 를 복원한다.
			req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}
	}

	target := RedactURL(req.URL.String())
	resp, err := l.inner.RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		fields := config.Fields{
			"method":     req.Method,
			"url":        target,
			"duration":   duration.String(),
			"request_id": requestID,
			"error":      RedactURL(err.Error()),
		}
		if bodySnippet != "" {
			fields["body"] = bodySnippet
		}
		config.ErrorWithFields("httpclient request failed", fields)
		return nil, err
	}

	fields := config.Fields{
		"method":     req.Method,
		"url":        target,
		"status":     resp.StatusCode,
		"duration":   duration.String(),
		"request_id": requestID,
	}
	if bodySnippet != "" {
		fields["body"] = bodySnippet
	}
	config.DebugWithFields("httpclient request done", fields)
	return resp, nil
}

// New는 주어진 설정으로 http.Client를 생성한다.
// Timeout이 0이면 기본값 60초를 사용한다. provider 별 타임아웃은 context 로 따로 건다.
func New(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &loggingRoundTripper{inner: http.DefaultTransport},
	}
}

// NewDefault는 공통 기본 설정을 사용하는 http.Client를 생성한다.
func NewDefault() *http.Client {
	return New(Config{})
}

// Wrap 은 이미 있는 클라이언트(테스트 서버 클라이언트 등)에 로깅 트랜스포트를 씌운다.
func Wrap(c *http.Client) *http.Client {
	if c == nil {
		return NewDefault()
	}
	inner := c.Transport
	if inner == nil {
		inner = http.DefaultTransport
	}
	if _, ok := inner.(*loggingRoundTripper); ok {
		return c
	}
	wrapped := *c
	wrapped.Transport = &loggingRoundTripper{inner: inner}
	return &wrapped
}

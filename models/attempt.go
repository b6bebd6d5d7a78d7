package models

import "time"

// Attempt 는 provider 한 번 호출의 결정 기록이다.
// 실행 보고서와 구조화 로그에 그대로 사용된다.
type Attempt struct {
	Kind       ProviderKind `json:"kind"`
	Provider   string       `json:"provider"`
	Succeeded  bool         `json:"succeeded"`
	ErrorKind  string       `json:"error_kind,omitempty"`
	Error      string       `json:"error,omitempty"`
	DurationMs int64        `json:"duration_ms"`
	StartedAt  time.Time    `json:"started_at"`
}

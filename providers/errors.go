package providers

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

// ErrorKind 는 provider 실패의 분류이다. 오케스트레이터는 종류와 무관하게 다음 provider 로 넘어가지만,
// 로그와 실행 보고서에는 종류가 남는다.
type ErrorKind string

const (
	KindMissingCredential ErrorKind = "MissingCredential"
	KindTransport         ErrorKind = "Transport"
	KindMalformedResponse ErrorKind = "MalformedResponse"
	KindProviderRefused   ErrorKind = "ProviderRefused"
	KindQuotaExhausted    ErrorKind = "QuotaExhausted"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrTransport         = errors.New("transport error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrProviderRefused   = errors.New("provider refused")
	ErrQuotaExhausted    = errors.New("quota exhausted")
)

var sentinels = map[ErrorKind]error{
	KindMissingCredential: ErrMissingCredential,
	KindTransport:         ErrTransport,
	KindMalformedResponse: ErrMalformedResponse,
	KindProviderRefused:   ErrProviderRefused,
	KindQuotaExhausted:    ErrQuotaExhausted,
}

// Error is returned by every adapter. errors.Is matches both the kind sentinel and the cause.
type Error struct {
	Kind     ErrorKind
	Provider string
	Status   int
	Body     string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status=%d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += " body=" + e.Body
	}
	return msg
}

func (e *Error) Unwrap() []error {
	out := []error{sentinels[e.Kind]}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func newError(kind ErrorKind, provider string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// KindOf 는 err 체인에서 ErrorKind 를 찾는다. provider 오류가 아니면 "" 이다.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// maxBodySnippet 은 Error.Body 에 남기는 응답 본문의 최대 룬 수이다.
const maxBodySnippet = 300

// statusError 는 non-2xx 응답을 오류 종류로 분류한다.
// 401/403 은 키가 없거나 잘못된 것으로 보고, 400 계열의 정책 위반 응답은 Refused 로 본다.
func statusError(provider string, status int, body []byte) *Error {
	snippet := string(body)
	// 키릴 문자 응답이 잘리지 않도록 바이트가 아닌 룬 단위로 자른다.
	if utf8.RuneCountInString(snippet) > maxBodySnippet {
		snippet = string([]rune(snippet)[:maxBodySnippet])
	}
	kind := KindTransport
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindMissingCredential
	case status == http.StatusPaymentRequired:
		kind = KindQuotaExhausted
	case status == http.StatusBadRequest && looksLikeRefusal(snippet):
		kind = KindProviderRefused
	case status == http.StatusUnavailableForLegalReasons:
		kind = KindProviderRefused
	}
	return &Error{Kind: kind, Provider: provider, Status: status, Body: snippet}
}

// retryable 은 같은 provider 에 짧게 재시도할 가치가 있는 상태 코드이다.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ProviderKind string

const (
	KindText  ProviderKind = "text"
	KindImage ProviderKind = "image"
)

// request shape ids
const (
	ShapeChatCompletion = "chat_completion"
	ShapeGemini         = "gemini"
	ShapeHFTextToImage  = "hf_text_to_image"
	ShapeClipDrop       = "clipdrop"
	ShapeOpenAIImages   = "openai_images"
)

// auth schemes
const (
	AuthBearer = "bearer"
	AuthHeader = "header"
	AuthNone   = "none"
)

// ProviderDescriptor 는 설정에서 해석된 provider 의 런타임 정보이다.
// APIKey 가 비어 있으면 어댑터는 MissingCredential 을 반환한다.
type ProviderDescriptor struct {
	Kind              ProviderKind
	Name              string
	Shape             string
	Endpoint          string
	APIKey            string
	AuthScheme        string
	AuthHeader        string
	Model             string
	MaxOutput         int
	Temperature       float64
	Timeout           time.Duration
	Headers           map[string]string
	AllowedSizes      []Size
	Retries           int
	RetryDelay        time.Duration
	RequestsPerMinute int
	RequestsPerDay    int
}

type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseSize parses "WIDTHxHEIGHT".
func ParseSize(s string) (Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Size{}, fmt.Errorf("invalid size %q", s)
	}
	wi, err := strconv.Atoi(w)
	if err != nil || wi <= 0 {
		return Size{}, fmt.Errorf("invalid width in %q", s)
	}
	hi, err := strconv.Atoi(h)
	if err != nil || hi <= 0 {
		return Size{}, fmt.Errorf("invalid height in %q", s)
	}
	return Size{Width: wi, Height: hi}, nil
}

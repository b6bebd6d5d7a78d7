package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"ai-blog/models"
)

// ChatCompletion 은 OpenAI 호환 /chat/completions 엔드포인트(Groq, OpenRouter 등) 어댑터이다.
type ChatCompletion struct {
	base
}

func NewChatCompletion(d models.ProviderDescriptor, client *http.Client) *ChatCompletion {
	return &ChatCompletion{base: newBase(d, client)}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      *chatMessage `json:"message"`
		FinishReason string       `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// GenerateText 는 첫 번째 choice 의 content 를 앞뒤 공백을 제거해서 반환한다.
func (c *ChatCompletion) GenerateText(ctx context.Context, prompt string, maxOutput int) (string, error) {
	if err := c.precheck(ctx); err != nil {
		return "", err
	}
	if maxOutput <= 0 {
		maxOutput = c.desc.MaxOutput
	}

	payload, err := json.Marshal(chatRequest{
		Model:       c.desc.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxOutput,
		Temperature: c.desc.Temperature,
	})
	if err != nil {
		return "", newError(KindTransport, c.desc.Name, err)
	}

	res, err := c.send(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.desc.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var out chatResponse
	if err := json.Unmarshal(res.Body, &out); err != nil {
		return "", newError(KindMalformedResponse, c.desc.Name, fmt.Errorf("decode: %w", err))
	}

	// OpenRouter 는 상위 모델 오류를 200 과 error 객체로 돌려주기도 한다.
	if out.Error != nil && out.Error.Message != "" {
		kind := KindTransport
		if looksLikeRefusal(out.Error.Message) {
			kind = KindProviderRefused
		}
		return "", newError(kind, c.desc.Name, fmt.Errorf("%s", out.Error.Message))
	}

	if len(out.Choices) == 0 || out.Choices[0].Message == nil {
		return "", newError(KindMalformedResponse, c.desc.Name, fmt.Errorf("no choices in response"))
	}
	choice := out.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", newError(KindProviderRefused, c.desc.Name, fmt.Errorf("finish_reason=content_filter"))
	}

	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", newError(KindMalformedResponse, c.desc.Name, errEmptyContent)
	}
	return text, nil
}

package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"ai-blog/models"
)

// Gemini 는 google.golang.org/genai 클라이언트로 Gemini API 를 호출한다.
// HTTP 전송은 공용 로깅 클라이언트를 그대로 쓴다.
type Gemini struct {
	base
}

func NewGemini(d models.ProviderDescriptor, client *http.Client) *Gemini {
	if d.AuthScheme == "" {
		d.AuthScheme = models.AuthBearer
	}
	return &Gemini{base: newBase(d, client)}
}

func (g *Gemini) GenerateText(ctx context.Context, prompt string, maxOutput int) (string, error) {
	if err := g.precheck(ctx); err != nil {
		return "", err
	}
	if maxOutput <= 0 {
		maxOutput = g.desc.MaxOutput
	}
	if g.desc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.desc.Timeout)
		defer cancel()
	}

	cc := &genai.ClientConfig{
		APIKey:     g.desc.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.client,
	}
	if g.desc.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.desc.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return "", newError(KindTransport, g.desc.Name, err)
	}

	genCfg := &genai.GenerateContentConfig{}
	if maxOutput > 0 {
		genCfg.MaxOutputTokens = int32(maxOutput)
	}
	if g.desc.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(float32(g.desc.Temperature))
	}

	result, err := client.Models.GenerateContent(ctx, g.desc.Model, genai.Text(prompt), genCfg)
	if err != nil {
		return "", g.classify(err)
	}
	if result == nil {
		return "", newError(KindMalformedResponse, g.desc.Name, fmt.Errorf("nil response"))
	}
	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return "", newError(KindProviderRefused, g.desc.Name, fmt.Errorf("prompt blocked: %s", result.PromptFeedback.BlockReason))
	}
	if len(result.Candidates) == 0 {
		return "", newError(KindMalformedResponse, g.desc.Name, fmt.Errorf("no candidates"))
	}
	switch result.Candidates[0].FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
		return "", newError(KindProviderRefused, g.desc.Name, fmt.Errorf("finish_reason=%s", result.Candidates[0].FinishReason))
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", newError(KindMalformedResponse, g.desc.Name, errEmptyContent)
	}
	return text, nil
}

// classify 는 genai 오류를 상태 코드 기준으로 분류한다.
func (g *Gemini) classify(err error) error {
	status := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		status = apiErrPtr.Code
	}
	if status == 0 {
		return newError(KindTransport, g.desc.Name, err)
	}
	pe := statusError(g.desc.Name, status, []byte(err.Error()))
	pe.Err = err
	pe.Body = ""
	return pe
}

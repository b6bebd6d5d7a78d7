package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"ai-blog/models"
)

// HuggingFace 는 Inference API text-to-image 모델 어댑터이다. 응답은 이미지 바이트 그대로 온다.
type HuggingFace struct {
	base
}

func NewHuggingFace(d models.ProviderDescriptor, client *http.Client) *HuggingFace {
	return &HuggingFace{base: newBase(d, client)}
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	Width             int `json:"width,omitempty"`
	Height            int `json:"height,omitempty"`
	NumInferenceSteps int `json:"num_inference_steps,omitempty"`
}

func (h *HuggingFace) GenerateImage(ctx context.Context, prompt string, width, height int) (Image, error) {
	if err := h.precheck(ctx); err != nil {
		return Image{}, err
	}
	size := SnapSize(width, height, h.desc.AllowedSizes)

	payload, err := json.Marshal(hfRequest{
		Inputs: prompt,
		Parameters: hfParameters{
			Width:             size.Width,
			Height:            size.Height,
			NumInferenceSteps: h.desc.MaxOutput,
		},
	})
	if err != nil {
		return Image{}, newError(KindTransport, h.desc.Name, err)
	}

	res, err := h.send(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.desc.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "image/png")
		return req, nil
	})
	if err != nil {
		return Image{}, err
	}
	return rawImage(h.desc.Name, res)
}

// ClipDrop 은 multipart prompt 필드 하나를 받는 text-to-image API 어댑터이다.
// 출력 크기는 서비스가 정하므로 width/height 는 무시한다.
type ClipDrop struct {
	base
}

func NewClipDrop(d models.ProviderDescriptor, client *http.Client) *ClipDrop {
	if d.AuthScheme == "" || d.AuthScheme == models.AuthBearer {
		d.AuthScheme = models.AuthHeader
	}
	return &ClipDrop{base: newBase(d, client)}
}

func (c *ClipDrop) GenerateImage(ctx context.Context, prompt string, _, _ int) (Image, error) {
	if err := c.precheck(ctx); err != nil {
		return Image{}, err
	}

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	if err := mw.WriteField("prompt", prompt); err != nil {
		return Image{}, newError(KindTransport, c.desc.Name, err)
	}
	if err := mw.Close(); err != nil {
		return Image{}, newError(KindTransport, c.desc.Name, err)
	}
	body := form.Bytes()
	contentType := mw.FormDataContentType()

	res, err := c.send(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.desc.Endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return Image{}, err
	}
	return rawImage(c.desc.Name, res)
}

// OpenAIImages 는 /v1/images/generations 형식(b64_json 응답) 어댑터이다.
type OpenAIImages struct {
	base
}

func NewOpenAIImages(d models.ProviderDescriptor, client *http.Client) *OpenAIImages {
	return &OpenAIImages{base: newBase(d, client)}
}

type openAIImageRequest struct {
	Model          string `json:"model,omitempty"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type openAIImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func (o *OpenAIImages) GenerateImage(ctx context.Context, prompt string, width, height int) (Image, error) {
	if err := o.precheck(ctx); err != nil {
		return Image{}, err
	}
	size := SnapSize(width, height, o.desc.AllowedSizes)

	payload, err := json.Marshal(openAIImageRequest{
		Model:          o.desc.Model,
		Prompt:         prompt,
		N:              1,
		Size:           size.String(),
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return Image{}, newError(KindTransport, o.desc.Name, err)
	}

	res, err := o.send(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.desc.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return Image{}, err
	}

	var out openAIImageResponse
	if err := json.Unmarshal(res.Body, &out); err != nil {
		return Image{}, newError(KindMalformedResponse, o.desc.Name, fmt.Errorf("decode: %w", err))
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return Image{}, newError(KindMalformedResponse, o.desc.Name, fmt.Errorf("data[0].b64_json missing"))
	}
	data, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return Image{}, newError(KindMalformedResponse, o.desc.Name, fmt.Errorf("b64_json: %w", err))
	}
	return Image{Data: data, Ext: SniffExt(data)}, nil
}

// rawImage 는 바이트 그대로 오는 이미지 응답을 확인한다.
// 200 이면서 JSON 이 오면 이미지가 아니므로 MalformedResponse 로 본다.
func rawImage(provider string, res response) (Image, error) {
	if len(res.Body) == 0 {
		return Image{}, newError(KindMalformedResponse, provider, errEmptyContent)
	}
	if strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		if looksLikeRefusal(string(res.Body)) {
			return Image{}, newError(KindProviderRefused, provider, fmt.Errorf("%.200s", res.Body))
		}
		return Image{}, newError(KindMalformedResponse, provider, fmt.Errorf("expected image, got json: %.200s", res.Body))
	}
	return Image{Data: res.Body, Ext: SniffExt(res.Body)}, nil
}

var imageExts = map[string]string{
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/svg+xml": "svg",
}

// SniffExt 는 바이트 내용으로 이미지 확장자를 정한다. 알 수 없으면 png 이다.
func SniffExt(data []byte) string {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if ext, ok := imageExts[m.String()]; ok {
			return ext
		}
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("<svg")) {
		return "svg"
	}
	return "png"
}

// SnapSize 는 허용 크기 목록 중 |Δw|+|Δh| 가 가장 작은 크기를 고른다.
// 목록이 비어 있으면 요청 크기를 그대로 쓴다. 동률이면 목록에서 앞선 것을 고른다.
func SnapSize(width, height int, allowed []models.Size) models.Size {
	if len(allowed) == 0 {
		return models.Size{Width: width, Height: height}
	}
	best := allowed[0]
	bestDist := abs(best.Width-width) + abs(best.Height-height)
	for _, s := range allowed[1:] {
		if d := abs(s.Width-width) + abs(s.Height-height); d < bestDist {
			best, bestDist = s, d
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

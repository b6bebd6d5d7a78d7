package providers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-blog/config"
	"ai-blog/models"
	"ai-blog/providers"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func textDesc(endpoint string) models.ProviderDescriptor {
	return models.ProviderDescriptor{
		Kind:       models.KindText,
		Name:       "Groq",
		Shape:      models.ShapeChatCompletion,
		Endpoint:   endpoint,
		APIKey:     "test-key",
		AuthScheme: models.AuthBearer,
		Model:      "llama-3.1-8b-instant",
		MaxOutput:  500,
		Timeout:    5 * time.Second,
		Headers:    map[string]string{"X-Title": "AI Blog"},
	}
}

func TestChatCompletionSuccess(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "AI Blog", r.Header.Get("X-Title"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"  ## Title\n\nBody text  "},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	p := providers.NewChatCompletion(textDesc(srv.URL), srv.Client())
	text, err := p.GenerateText(context.Background(), "write", 0)
	require.NoError(t, err)
	assert.Equal(t, "## Title\n\nBody text", text)
	assert.Equal(t, "llama-3.1-8b-instant", got["model"])
	assert.EqualValues(t, 500, got["max_tokens"])
	assert.Equal(t, "Groq", p.Name())
}

func TestChatCompletionErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   providers.ErrorKind
	}{
		{"server error", http.StatusInternalServerError, `oops`, providers.KindTransport},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, providers.KindMissingCredential},
		{"forbidden", http.StatusForbidden, ``, providers.KindMissingCredential},
		{"payment", http.StatusPaymentRequired, `{}`, providers.KindQuotaExhausted},
		{"no choices", http.StatusOK, `{"choices":[]}`, providers.KindMalformedResponse},
		{"not json", http.StatusOK, `<html>`, providers.KindMalformedResponse},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"content":"   "}}]}`, providers.KindMalformedResponse},
		{"content filter", http.StatusOK, `{"choices":[{"message":{"content":"x"},"finish_reason":"content_filter"}]}`, providers.KindProviderRefused},
		{"moderation 400", http.StatusBadRequest, `{"error":{"message":"flagged by moderation"}}`, providers.KindProviderRefused},
		{"error object", http.StatusOK, `{"error":{"message":"upstream timeout"}}`, providers.KindTransport},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			p := providers.NewChatCompletion(textDesc(srv.URL), srv.Client())
			_, err := p.GenerateText(context.Background(), "write", 100)
			require.Error(t, err)
			assert.Equal(t, tc.kind, providers.KindOf(err))
		})
	}
}

func TestErrorBodyTruncatedByRunes(t *testing.T) {
	// 2바이트 문자 뒤에 1바이트를 두어 바이트 단위 절단이면 문자 중간에서 끊기게 한다.
	body := "x" + strings.Repeat("Ошибка сервера ", 40)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	_, err := providers.NewChatCompletion(textDesc(srv.URL), srv.Client()).GenerateText(context.Background(), "x", 10)
	var pe *providers.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, providers.KindTransport, pe.Kind)
	assert.True(t, utf8.ValidString(pe.Body))
	assert.Equal(t, 300, utf8.RuneCountInString(pe.Body))
	assert.True(t, strings.HasPrefix(body, pe.Body))
}

func TestMissingCredentialSkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	d := textDesc(srv.URL)
	d.APIKey = ""
	_, err := providers.NewChatCompletion(d, srv.Client()).GenerateText(context.Background(), "x", 10)
	assert.True(t, errors.Is(err, providers.ErrMissingCredential))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestQuotaExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	d := textDesc(srv.URL)
	d.RequestsPerDay = 1
	p := providers.NewChatCompletion(d, srv.Client())

	_, err := p.GenerateText(context.Background(), "x", 10)
	require.NoError(t, err)
	_, err = p.GenerateText(context.Background(), "x", 10)
	assert.ErrorIs(t, err, providers.ErrQuotaExhausted)
}

func TestRetryOnServiceUnavailable(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":"Model is currently loading"}`)
			return
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ready"}}]}`)
	}))
	defer srv.Close()

	d := textDesc(srv.URL)
	d.Retries = 1
	d.RetryDelay = time.Millisecond
	text, err := providers.NewChatCompletion(d, srv.Client()).GenerateText(context.Background(), "x", 10)
	require.NoError(t, err)
	assert.Equal(t, "ready", text)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestNoRetryByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := providers.NewChatCompletion(textDesc(srv.URL), srv.Client()).GenerateText(context.Background(), "x", 10)
	assert.Equal(t, providers.KindTransport, providers.KindOf(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestTimeoutIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	d := textDesc(srv.URL)
	d.Timeout = 50 * time.Millisecond
	_, err := providers.NewChatCompletion(d, srv.Client()).GenerateText(context.Background(), "x", 10)
	assert.ErrorIs(t, err, providers.ErrTransport)
}

func imageDesc(name, shape, endpoint string) models.ProviderDescriptor {
	return models.ProviderDescriptor{
		Kind:       models.KindImage,
		Name:       name,
		Shape:      shape,
		Endpoint:   endpoint,
		APIKey:     "img-key",
		AuthScheme: models.AuthBearer,
		Timeout:    5 * time.Second,
	}
}

func TestHuggingFaceReturnsPNG(t *testing.T) {
	img := pngBytes(t, 64, 32)
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	}))
	defer srv.Close()

	d := imageDesc("HuggingFace", models.ShapeHFTextToImage, srv.URL)
	d.MaxOutput = 25
	out, err := providers.NewHuggingFace(d, srv.Client()).GenerateImage(context.Background(), "robot", 1024, 512)
	require.NoError(t, err)
	assert.Equal(t, "png", out.Ext)
	assert.Equal(t, img, out.Data)
	assert.Equal(t, "robot", got["inputs"])
	params := got["parameters"].(map[string]any)
	assert.EqualValues(t, 1024, params["width"])
	assert.EqualValues(t, 25, params["num_inference_steps"])
}

func TestHuggingFaceJSONBodyIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"estimated_time": 20}`)
	}))
	defer srv.Close()

	_, err := providers.NewHuggingFace(imageDesc("HF", models.ShapeHFTextToImage, srv.URL), srv.Client()).
		GenerateImage(context.Background(), "robot", 512, 512)
	assert.ErrorIs(t, err, providers.ErrMalformedResponse)
}

func TestClipDropMultipartAndHeader(t *testing.T) {
	img := pngBytes(t, 16, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "img-key", r.Header.Get("x-api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "neural city", r.FormValue("prompt"))
		_, _ = w.Write(img)
	}))
	defer srv.Close()

	out, err := providers.NewClipDrop(imageDesc("ClipDrop", models.ShapeClipDrop, srv.URL), srv.Client()).
		GenerateImage(context.Background(), "neural city", 1024, 1024)
	require.NoError(t, err)
	assert.Equal(t, "png", out.Ext)
}

func TestOpenAIImagesDecodesB64AndSnapsSize(t *testing.T) {
	img := pngBytes(t, 8, 8)
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(img)}},
		})
	}))
	defer srv.Close()

	d := imageDesc("OpenAIImages", models.ShapeOpenAIImages, srv.URL)
	d.AllowedSizes = []models.Size{{Width: 1024, Height: 1024}, {Width: 1792, Height: 1024}, {Width: 1024, Height: 1792}}
	out, err := providers.NewOpenAIImages(d, srv.Client()).GenerateImage(context.Background(), "p", 1200, 630)
	require.NoError(t, err)
	assert.Equal(t, img, out.Data)
	assert.Equal(t, "1024x1024", got["size"])
	assert.Equal(t, "b64_json", got["response_format"])
}

func TestOpenAIImagesMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"url":"https://x"}]}`)
	}))
	defer srv.Close()

	_, err := providers.NewOpenAIImages(imageDesc("OpenAIImages", models.ShapeOpenAIImages, srv.URL), srv.Client()).
		GenerateImage(context.Background(), "p", 1024, 1024)
	assert.ErrorIs(t, err, providers.ErrMalformedResponse)
}

func TestOpenAIImagesContentPolicy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":"content_policy_violation"}}`)
	}))
	defer srv.Close()

	_, err := providers.NewOpenAIImages(imageDesc("OpenAIImages", models.ShapeOpenAIImages, srv.URL), srv.Client()).
		GenerateImage(context.Background(), "p", 1024, 1024)
	assert.ErrorIs(t, err, providers.ErrProviderRefused)
}

func TestSnapSize(t *testing.T) {
	allowed := []models.Size{{Width: 1024, Height: 1024}, {Width: 1792, Height: 1024}, {Width: 1024, Height: 1792}}
	cases := []struct {
		w, h int
		want models.Size
	}{
		{1024, 1024, models.Size{Width: 1024, Height: 1024}},
		{1600, 900, models.Size{Width: 1792, Height: 1024}},
		{800, 1600, models.Size{Width: 1024, Height: 1792}},
		{1200, 630, models.Size{Width: 1024, Height: 1024}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, providers.SnapSize(tc.w, tc.h, allowed))
	}
	assert.Equal(t, models.Size{Width: 640, Height: 480}, providers.SnapSize(640, 480, nil))
}

func TestSniffExt(t *testing.T) {
	assert.Equal(t, "png", providers.SniffExt(pngBytes(t, 2, 2)))
	assert.Equal(t, "jpg", providers.SniffExt([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F', 0}))
	assert.Equal(t, "gif", providers.SniffExt([]byte("GIF89a\x01\x00\x01\x00")))
	assert.Equal(t, "svg", providers.SniffExt([]byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"></svg>`)))
	assert.Equal(t, "png", providers.SniffExt([]byte("not an image")))
}

func TestNewProvidersFromConfig(t *testing.T) {
	cfg := config.Default()
	text, err := providers.NewTextProviders(cfg, http.DefaultClient)
	require.NoError(t, err)
	require.Len(t, text, 3)
	assert.Equal(t, []string{"Groq", "OpenRouter", "Gemini"}, []string{text[0].Name(), text[1].Name(), text[2].Name()})

	images, err := providers.NewImageProviders(cfg, http.DefaultClient)
	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, "HuggingFace", images[0].Name())

	cfg.ImageProviders[0].Shape = "unknown"
	_, err = providers.NewImageProviders(cfg, http.DefaultClient)
	assert.Error(t, err)
}

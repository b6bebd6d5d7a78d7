package config

import (
	"time"

	"ai-blog/models"
)

// Default 는 config.yaml 이 없을 때 사용하는 설정이다.
func Default() AppConfig {
	return AppConfig{
		Logging: LoggingConfig{Level: "info", Output: "stderr"},
		Site: SiteConfig{
			BaseURL:          "https://example.com",
			PostsDir:         "content/posts",
			ImagesDir:        "static/images/posts",
			ImageURLPrefix:   "/images/posts",
			MirrorDir:        "assets/images/posts",
			GalleryDir:       "assets/gallery",
			GalleryURLPrefix: "/assets/gallery",
			GalleryManifest:  "data/gallery.yaml",
			ArticlesIndex:    "data/articles.json",
			LockFile:         ".generate.lock",
		},
		Generation: GenerationConfig{
			Language:      "ru",
			MinBodyChars:  200,
			MaxImageBytes: 10 << 20,
			ImageWidth:    1024,
			ImageHeight:   1024,
			KeepPosts:     10,
			Tags:          []string{"AI", "Искусственный интеллект"},
			Categories:    []string{"Искусственный интеллект"},
			GalleryTags:   []string{"ai", "generated"},
			PostType:      "posts",
			ErrorMarkers: []string{
				"Error:",
				"error code:",
				"Rate limit",
				"rate_limit_exceeded",
				"Internal Server Error",
				"I'm sorry, but I can't",
				"As an AI language model",
			},
			BannedPatterns: []string{
				`(?i)политик`,
				`(?i)(^|[^\p{L}])выбор(ы|ов|ах)([^\p{L}]|$)`,
				`(?i)\bpolitic(s|al)?\b`,
				`(?i)\belections?\b`,
			},
			LockStaleAfter: 2 * time.Hour,
		},
		Topics: TopicsConfig{
			Curated:       defaultTopics,
			FeedItemLimit: 20,
			MaxCandidates: 50,
			FeedTimeout:   15 * time.Second,
		},
		TextProviders: []ProviderConfig{
			{
				Name:        "Groq",
				Shape:       models.ShapeChatCompletion,
				Endpoint:    "https://api.groq.com/openai/v1/chat/completions",
				APIKeyEnv:   "GROQ_API_KEY",
				AuthScheme:  models.AuthBearer,
				Model:       "llama-3.1-8b-instant",
				MaxOutput:   2000,
				Temperature: 0.7,
				Timeout:     60 * time.Second,
				RetryDelay:  5 * time.Second,
			},
			{
				Name:        "OpenRouter",
				Shape:       models.ShapeChatCompletion,
				Endpoint:    "https://openrouter.ai/api/v1/chat/completions",
				APIKeyEnv:   "OPENROUTER_API_KEY",
				AuthScheme:  models.AuthBearer,
				Model:       "openrouter/auto",
				MaxOutput:   2000,
				Temperature: 0.7,
				Timeout:     60 * time.Second,
				RetryDelay:  5 * time.Second,
				Headers: map[string]string{
					"HTTP-Referer": "https://example.com",
					"X-Title":      "AI Blog Generator",
				},
			},
			{
				Name:       "Gemini",
				Shape:      models.ShapeGemini,
				APIKeyEnv:  "GEMINI_API_KEY",
				Model:      "gemini-2.5-flash",
				MaxOutput:  2000,
				Timeout:    60 * time.Second,
				RetryDelay: 5 * time.Second,
			},
		},
		ImageProviders: []ProviderConfig{
			{
				Name:       "HuggingFace",
				Shape:      models.ShapeHFTextToImage,
				Endpoint:   "https://api-inference.huggingface.co/models/runwayml/stable-diffusion-v1-5",
				APIKeyEnv:  "HUGGINGFACE_API_KEY",
				AuthScheme: models.AuthBearer,
				MaxOutput:  30,
				Timeout:    90 * time.Second,
				Retries:    1,
				RetryDelay: 10 * time.Second,
			},
			{
				Name:       "ClipDrop",
				Shape:      models.ShapeClipDrop,
				Endpoint:   "https://clipdrop-api.co/text-to-image/v1",
				APIKeyEnv:  "CLIPDROP_API_KEY",
				AuthScheme: models.AuthHeader,
				AuthHeader: "x-api-key",
				Timeout:    60 * time.Second,
				RetryDelay: 5 * time.Second,
			},
			{
				Name:         "OpenAIImages",
				Shape:        models.ShapeOpenAIImages,
				Endpoint:     "https://api.openai.com/v1/images/generations",
				APIKeyEnv:    "OPENAI_API_KEY",
				AuthScheme:   models.AuthBearer,
				Model:        "dall-e-3",
				AllowedSizes: []string{"1024x1024", "1792x1024", "1024x1792"},
				Timeout:      90 * time.Second,
				RetryDelay:   5 * time.Second,
			},
		},
		Telegram: TelegramConfig{
			APIBase:     "https://api.telegram.org",
			Heading:     "Новая статья",
			LinkLabel:   "Читать статью",
			Hashtags:    "#AI #искусственныйинтеллект",
			TeaserWords: 35,
			Timeout:     30 * time.Second,
		},
		Schedule: ScheduleConfig{
			Hour:     9,
			Timezone: "UTC",
			Count:    1,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			MaxCount:       5,
		},
	}
}

var defaultTopics = []string{
	"Edge computing and artificial intelligence",
	"Генеративные модели в медицине",
	"Как нейросети меняют разработку программного обеспечения",
	"Мультимодальные модели: текст, изображение и звук",
	"Этика и прозрачность алгоритмов машинного обучения",
	"Малые языковые модели на мобильных устройствах",
	"Компьютерное зрение в промышленности",
	"AI-агенты для автоматизации рутинных задач",
	"Обучение с подкреплением в робототехнике",
	"Как работают векторные базы данных",
	"Нейросети для анализа климатических данных",
	"Синтетические данные для обучения моделей",
}

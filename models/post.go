package models

import (
	"time"
)

// Topic 는 한 번의 실행에서 기사 하나를 만들 주제이다.
// Brief 는 피드에서 온 경우에만 채워지는 짧은 요약이다.
type Topic struct {
	Title  string `json:"title"`
	Brief  string `json:"brief,omitempty"`
	Source string `json:"source,omitempty"`
}

// PostRecord is the in-memory post assembled by the orchestrator before it is written.
type PostRecord struct {
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	PublishedAt time.Time `json:"published_at"`
	Body        string    `json:"body"`
	ImageRef    string    `json:"image_ref"`
	AuthorTag   string    `json:"author_tag"`
	Tags        []string  `json:"tags"`
	Categories  []string  `json:"categories"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Draft       bool      `json:"draft"`

	// ImagePath 는 ImageRef 가 가리키는 디스크상의 절대 경로이다.
	ImagePath string `json:"-"`

	// ImageProvider 는 이미지를 만든 provider 이름이다. placeholder 면 "Placeholder".
	ImageProvider string `json:"image_provider"`
}

// ImageExt 는 ImagePath 의 확장자를 점 없이 반환한다.
func (p PostRecord) ImageExt() string {
	for i := len(p.ImagePath) - 1; i >= 0 && p.ImagePath[i] != '/'; i-- {
		if p.ImagePath[i] == '.' {
			return p.ImagePath[i+1:]
		}
	}
	return ""
}

package models

import "time"

// ArticleIndex 는 정적 HTML 빌더가 읽는 data/articles.json 의 구조이다.
type ArticleIndex struct {
	Articles    []Article     `json:"articles"`
	Images      []GalleryItem `json:"images"`
	GeneratedAt time.Time     `json:"generated_at"`
}

type Article struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	Date    string `json:"date"`
	Image   string `json:"image"`
	Content string `json:"content"`
}

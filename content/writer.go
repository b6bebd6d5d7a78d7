package content

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ai-blog/fsutil"
	"ai-blog/models"
)

var ErrWriteFailed = errors.New("write failed")

// Writer 는 PostRecord 를 <PostsDir>/<slug>.md 로 저장한다.
type Writer struct {
	PostsDir string
}

func NewWriter(postsDir string) *Writer {
	return &Writer{PostsDir: postsDir}
}

// PathFor returns the target markdown path for a slug.
func (w *Writer) PathFor(slug string) string {
	return filepath.Join(w.PostsDir, slug+".md")
}

// Render 는 frontmatter + 빈 줄 + 본문을 만든다.
func Render(rec models.PostRecord) ([]byte, error) {
	fm, err := RenderFrontMatter(FrontMatterOf(rec))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(fm)
	buf.WriteString("\n")
	buf.WriteString(strings.TrimSpace(rec.Body))
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// Write 는 임시 파일에 쓴 뒤 rename 하므로 실패해도 대상 경로에 반쯤 쓰인 파일이 남지 않는다.
// 같은 이름의 포스트가 이미 있으면 덮어쓰지 않고 ErrWriteFailed 를 반환한다.
func (w *Writer) Write(rec models.PostRecord) (string, error) {
	if rec.Slug == "" || strings.TrimSpace(rec.Title) == "" || strings.TrimSpace(rec.Body) == "" || rec.ImageRef == "" {
		return "", fmt.Errorf("%w: incomplete post record %q", ErrWriteFailed, rec.Slug)
	}

	path := w.PathFor(rec.Slug)
	if fsutil.Exists(path) {
		return "", fmt.Errorf("%w: %s already exists", ErrWriteFailed, path)
	}

	data, err := Render(rec)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrWriteFailed, path, err)
	}
	return path, nil
}

// Read 는 저장된 포스트 파일을 다시 읽는다.
func Read(path string) (FrontMatter, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FrontMatter{}, "", err
	}
	return ParseFrontMatter(data)
}

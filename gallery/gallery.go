// Package gallery 는 이미지를 갤러리/미러 디렉터리로 복사하고 data/gallery.yaml 에 행을 추가한다.
package gallery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"ai-blog/config"
	"ai-blog/content"
	"ai-blog/fsutil"
	"ai-blog/models"
)

// Updater 는 한 실행 동안 매니페스트를 독점한다는 전제로 read-modify-write 한다.
type Updater struct {
	ManifestPath string
	GalleryDir   string
	GalleryURL   string
	MirrorDirs   []string
	Tags         []string
}

func NewUpdater(cfg config.AppConfig) *Updater {
	s := cfg.Site
	u := &Updater{
		ManifestPath: s.Path(s.GalleryManifest),
		GalleryDir:   s.Path(s.GalleryDir),
		GalleryURL:   s.GalleryURLPrefix,
		Tags:         cfg.Generation.GalleryTags,
	}
	if s.MirrorDir != "" {
		u.MirrorDirs = append(u.MirrorDirs, s.Path(s.MirrorDir))
	}
	return u
}

// Load 는 매니페스트를 읽는다. 파일이 없거나 파싱할 수 없으면 빈 목록을 반환한다.
func Load(path string) []models.GalleryItem {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			config.WarnWithFields("gallery manifest unreadable, treating as empty", config.Fields{"path": path, "error": err.Error()})
		}
		return nil
	}
	var items []models.GalleryItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		config.WarnWithFields("gallery manifest corrupt, treating as empty", config.Fields{"path": path, "error": err.Error()})
		return nil
	}
	return items
}

// Save writes the manifest atomically.
func Save(path string, items []models.GalleryItem) error {
	if items == nil {
		items = []models.GalleryItem{}
	}
	data, err := yaml.Marshal(items)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data, 0o644)
}

// Update 는 이미지를 미러 디렉터리와 갤러리 디렉터리에 <slug>.<ext> 로 복사하고
// 매니페스트 맨 앞에 새 행을 넣는다. 같은 src 가 이미 있어도 중복 제거하지 않는다.
func (u *Updater) Update(rec models.PostRecord) (models.GalleryItem, error) {
	if rec.ImagePath == "" {
		return models.GalleryItem{}, fmt.Errorf("%w: post %s has no image on disk", content.ErrWriteFailed, rec.Slug)
	}
	ext := rec.ImageExt()
	name := rec.Slug + "." + ext

	for _, dir := range u.MirrorDirs {
		if err := fsutil.CopyFileAtomic(rec.ImagePath, filepath.Join(dir, name)); err != nil {
			return models.GalleryItem{}, fmt.Errorf("%w: mirror image to %s: %v", content.ErrWriteFailed, dir, err)
		}
	}
	if err := fsutil.CopyFileAtomic(rec.ImagePath, filepath.Join(u.GalleryDir, name)); err != nil {
		return models.GalleryItem{}, fmt.Errorf("%w: copy image to gallery: %v", content.ErrWriteFailed, err)
	}

	item := models.GalleryItem{
		Src:   strings.TrimRight(u.GalleryURL, "/") + "/" + name,
		Alt:   content.EscapeValue(rec.Title),
		Title: content.EscapeValue(rec.Title),
		Date:  rec.PublishedAt.UTC().Format("2006-01-02"),
		Tags:  append([]string(nil), u.Tags...),
	}

	items := Load(u.ManifestPath)
	items = append([]models.GalleryItem{item}, items...)
	if err := Save(u.ManifestPath, items); err != nil {
		return models.GalleryItem{}, fmt.Errorf("%w: gallery manifest: %v", content.ErrWriteFailed, err)
	}

	config.InfoWithFields("gallery updated", config.Fields{"src": item.Src, "rows": len(items)})
	return item, nil
}

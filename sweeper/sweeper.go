// Package sweeper 는 posts 디렉터리에서 최신 K 개를 제외한 오래된 포스트를 삭제한다.
// 갤러리 매니페스트와 이미지는 건드리지 않는다.
package sweeper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ai-blog/config"
)

type postFile struct {
	name    string
	modTime time.Time
}

// Sweep 은 dir 안의 *.md 파일을 수정 시각 기준으로 정렬해서 최신 keep 개만 남긴다.
// 수정 시각이 같으면 이름 역순(최신 날짜 접미사 우선)으로 정렬한다. 삭제한 경로 목록을 반환한다.
// _index.md 같은 섹션 파일은 대상에서 제외한다.
func Sweep(dir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, fmt.Errorf("sweeper: keep must be positive, got %d", keep)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var posts []postFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".md") || strings.HasPrefix(name, "_") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// 다른 프로세스가 먼저 지운 경우
			continue
		}
		posts = append(posts, postFile{name: name, modTime: info.ModTime()})
	}
	if len(posts) <= keep {
		return nil, nil
	}

	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].modTime.Equal(posts[j].modTime) {
			return posts[i].modTime.After(posts[j].modTime)
		}
		return posts[i].name > posts[j].name
	})

	var removed []string
	var errs []error
	for _, p := range posts[keep:] {
		path := filepath.Join(dir, p.name)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, path)
		config.InfoWithFields("old post removed", config.Fields{"path": path, "mtime": p.modTime.Format(time.RFC3339)})
	}
	return removed, errors.Join(errs...)
}

package gallery_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-blog/config"
	"ai-blog/content"
	"ai-blog/gallery"
	"ai-blog/models"
)

func newUpdater(t *testing.T) (*gallery.Updater, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Site.Root = t.TempDir()
	return gallery.NewUpdater(cfg), cfg.Site.Root
}

func writeImage(t *testing.T, root, slug string) string {
	t.Helper()
	path := filepath.Join(root, "static", "images", "posts", slug+".png")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("png-bytes-"+slug), 0o644))
	return path
}

func TestUpdateCopiesAndPrepends(t *testing.T) {
	u, root := newUpdater(t)
	base := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	for i, slug := range []string{"first-post", "second-post", "third-post"} {
		rec := models.PostRecord{
			Title:       "Post: " + slug,
			Slug:        slug,
			PublishedAt: base.Add(time.Duration(i) * 24 * time.Hour),
			ImagePath:   writeImage(t, root, slug),
		}
		_, err := u.Update(rec)
		require.NoError(t, err)
	}

	items := gallery.Load(u.ManifestPath)
	require.Len(t, items, 3)
	assert.Equal(t, "/assets/gallery/third-post.png", items[0].Src)
	assert.Equal(t, "/assets/gallery/second-post.png", items[1].Src)
	assert.Equal(t, "/assets/gallery/first-post.png", items[2].Src)
	assert.Equal(t, "2026-10-17", items[0].Date)
	assert.Equal(t, "Post - third-post", items[0].Title)
	assert.Equal(t, []string{"ai", "generated"}, items[0].Tags)

	for _, p := range []string{
		filepath.Join(root, "assets", "gallery", "third-post.png"),
		filepath.Join(root, "assets", "images", "posts", "third-post.png"),
	} {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "png-bytes-third-post", string(data))
	}
}

func TestCorruptManifestTreatedAsEmpty(t *testing.T) {
	u, root := newUpdater(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(u.ManifestPath), 0o755))
	require.NoError(t, os.WriteFile(u.ManifestPath, []byte("{{{ not yaml"), 0o644))

	assert.Empty(t, gallery.Load(u.ManifestPath))

	_, err := u.Update(models.PostRecord{Title: "T", Slug: "t", PublishedAt: time.Now(), ImagePath: writeImage(t, root, "t")})
	require.NoError(t, err)
	assert.Len(t, gallery.Load(u.ManifestPath), 1)
}

func TestMissingManifest(t *testing.T) {
	assert.Empty(t, gallery.Load(filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestUpdateWithoutImageFails(t *testing.T) {
	u, _ := newUpdater(t)
	_, err := u.Update(models.PostRecord{Slug: "x"})
	assert.ErrorIs(t, err, content.ErrWriteFailed)

	_, err = u.Update(models.PostRecord{Slug: "x", ImagePath: "/does/not/exist.png"})
	assert.ErrorIs(t, err, content.ErrWriteFailed)
}

func TestDuplicateSrcKept(t *testing.T) {
	u, root := newUpdater(t)
	rec := models.PostRecord{Title: "Same", Slug: "same", PublishedAt: time.Now(), ImagePath: writeImage(t, root, "same")}
	_, err := u.Update(rec)
	require.NoError(t, err)
	_, err = u.Update(rec)
	require.NoError(t, err)
	assert.Len(t, gallery.Load(u.ManifestPath), 2)
}

// Package placeholder 는 모든 이미지 provider 가 실패했을 때 쓰는 배너 이미지를 그린다.
package placeholder

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"ai-blog/fsutil"
)

const (
	Width       = 1200
	Height      = 630
	Ext         = "jpg"
	jpegQuality = 85

	titleSize = 56
	badgeSize = 20
	margin    = 90
	maxLines  = 5
	badgeText = "AI GENERATED"
)

var (
	gradientTop    = color.RGBA{R: 0x1b, G: 0x1f, B: 0x4b, A: 0xff}
	gradientBottom = color.RGBA{R: 0x6a, G: 0x2c, B: 0x91, A: 0xff}
	textColor      = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	badgeFill      = color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0x88}
)

var (
	facesOnce sync.Once
	titleFace font.Face
	badgeFace font.Face
	facesErr  error
)

// Go 폰트는 라틴/키릴 문자를 모두 포함하므로 러시아어 제목도 그릴 수 있다.
func loadFaces() error {
	facesOnce.Do(func() {
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			facesErr = err
			return
		}
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			facesErr = err
			return
		}
		titleFace, facesErr = opentype.NewFace(bold, &opentype.FaceOptions{Size: titleSize, DPI: 72, Hinting: font.HintingFull})
		if facesErr != nil {
			return
		}
		badgeFace, facesErr = opentype.NewFace(regular, &opentype.FaceOptions{Size: badgeSize, DPI: 72, Hinting: font.HintingFull})
	})
	return facesErr
}

// Render 는 topic 으로 배너를 그려 path 에 JPEG 으로 원자적으로 저장한다.
func Render(topic, path string) error {
	data, err := RenderBytes(topic)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write placeholder: %w", err)
	}
	return nil
}

// RenderBytes 는 그라데이션 배경, 가운데 정렬된 제목, 우측 상단 배지를 가진 JPEG 을 만든다.
func RenderBytes(topic string) ([]byte, error) {
	if err := loadFaces(); err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	fillGradient(img)
	drawTitle(img, topic)
	drawBadge(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func fillGradient(img *image.RGBA) {
	for y := 0; y < Height; y++ {
		t := float64(y) / float64(Height-1)
		c := color.RGBA{
			R: lerp(gradientTop.R, gradientBottom.R, t),
			G: lerp(gradientTop.G, gradientBottom.G, t),
			B: lerp(gradientTop.B, gradientBottom.B, t),
			A: 0xff,
		}
		draw.Draw(img, image.Rect(0, y, Width, y+1), image.NewUniform(c), image.Point{}, draw.Src)
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}

func drawTitle(img *image.RGBA, topic string) {
	lines := Wrap(topic, Width-2*margin, func(s string) int {
		return font.MeasureString(titleFace, s).Ceil()
	})
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		lines[maxLines-1] = strings.TrimRight(lines[maxLines-1], " .,") + "…"
	}

	metrics := titleFace.Metrics()
	lineHeight := (metrics.Ascent + metrics.Descent).Ceil() + 10
	blockHeight := lineHeight * len(lines)
	y := (Height-blockHeight)/2 + metrics.Ascent.Ceil()

	d := &font.Drawer{Dst: img, Src: image.NewUniform(textColor), Face: titleFace}
	for _, line := range lines {
		w := d.MeasureString(line).Ceil()
		d.Dot = fixed.P((Width-w)/2, y)
		d.DrawString(line)
		y += lineHeight
	}
}

func drawBadge(img *image.RGBA) {
	d := &font.Drawer{Dst: img, Src: image.NewUniform(textColor), Face: badgeFace}
	w := d.MeasureString(badgeText).Ceil()
	metrics := badgeFace.Metrics()
	h := (metrics.Ascent + metrics.Descent).Ceil()

	const pad = 10
	x1 := Width - 24
	x0 := x1 - w - 2*pad
	y0 := 24
	y1 := y0 + h + 2*pad
	draw.Draw(img, image.Rect(x0, y0, x1, y1), image.NewUniform(badgeFill), image.Point{}, draw.Over)

	d.Dot = fixed.P(x0+pad, y0+pad+metrics.Ascent.Ceil())
	d.DrawString(badgeText)
}

// Wrap 은 단어 단위로 줄을 나눈다. 한 단어가 maxWidth 보다 길면 그 단어만 한 줄에 둔다.
func Wrap(text string, maxWidth int, measure func(string) int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		candidate := line + " " + w
		if measure(candidate) <= maxWidth {
			line = candidate
			continue
		}
		lines = append(lines, line)
		line = w
	}
	return append(lines, line)
}

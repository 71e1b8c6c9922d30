package main

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/charmbracelet/lipgloss"
	"github.com/nfnt/resize"
)

// renderAlbumArt decodes the track's embedded cover and renders it as
// half-block cells, two pixels per terminal row. Returns "" when the track
// has no usable picture.
func renderAlbumArt(track *Track, cells int) string {
	if track == nil || cells <= 0 {
		return ""
	}
	data := track.Picture()
	if len(data) == 0 {
		return ""
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	scaled := resize.Resize(uint(cells), uint(cells), img, resize.Lanczos3)
	bounds := scaled.Bounds()

	var out bytes.Buffer
	for y := bounds.Min.Y; y < bounds.Max.Y-1; y += 2 {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			top := cellColor(scaled, x, y)
			bottom := cellColor(scaled, x, y+1)
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom))
			out.WriteString(style.Render("▀"))
		}
		out.WriteByte('\n')
	}
	return out.String()
}

func cellColor(img image.Image, x, y int) string {
	r, g, b, _ := img.At(x, y).RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

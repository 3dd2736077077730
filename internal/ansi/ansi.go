// Package ansi turns card images into terminal half-block art.
package ansi

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"
)

// Default art size in character cells
const (
	DefaultWidth  = 40
	DefaultHeight = 32
)

// Decode decodes a png, jpeg or gif image
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// FromImage converts an image to ANSI art, width by height cells. Each cell
// is an upper half block: the top two pixels set the foreground, the bottom
// two the background. Without trueColor only the block characters are
// written.
func FromImage(img image.Image, width, height int, trueColor bool) string {
	// Resize image to desired dimensions (doubled for half-block characters)
	resized := resize.Resize(uint(width*2), uint(height*2), img, resize.Lanczos3)

	var buffer strings.Builder
	for y := 0; y < height*2; y += 2 {
		for x := 0; x < width*2; x += 2 {
			col1, _ := colorful.MakeColor(colorAt(resized, x, y))
			col2, _ := colorful.MakeColor(colorAt(resized, x+1, y))
			col3, _ := colorful.MakeColor(colorAt(resized, x, y+1))
			col4, _ := colorful.MakeColor(colorAt(resized, x+1, y+1))

			fg := toRGBA(average(col1, col2))
			bg := toRGBA(average(col3, col4))

			buffer.WriteString(cell('▀', fg, bg, trueColor))
		}
		buffer.WriteString("\n")
	}

	return buffer.String()
}

// colorAt returns the color at a specific coordinate, black outside bounds
func colorAt(img image.Image, x, y int) color.Color {
	bounds := img.Bounds()
	if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
		return img.At(x, y)
	}
	return color.RGBA{0, 0, 0, 255}
}

func average(colors ...colorful.Color) colorful.Color {
	var r, g, b float64
	for _, c := range colors {
		r += c.R
		g += c.G
		b += c.B
	}
	count := float64(len(colors))
	return colorful.Color{R: r / count, G: g / count, B: b / count}
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func cell(char rune, fg, bg color.RGBA, trueColor bool) string {
	if !trueColor {
		return string(char)
	}
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm%c\x1b[0m",
		fg.R, fg.G, fg.B, bg.R, bg.G, bg.B, char)
}

// Strip removes ANSI escape sequences from a string
func Strip(s string) string {
	var result strings.Builder
	inEscape := false
	for _, c := range s {
		if inEscape {
			if c == 'm' {
				inEscape = false
			}
		} else if c == '\033' {
			inEscape = true
		} else {
			result.WriteRune(c)
		}
	}
	return result.String()
}

// Width returns the widest visible line of art
func Width(art string) int {
	widest := 0
	for _, line := range strings.Split(art, "\n") {
		if w := len([]rune(Strip(line))); w > widest {
			widest = w
		}
	}
	return widest
}

// Cache stores generated art on disk keyed by the md5 of the image URL
type Cache struct {
	Dir string
}

func NewCache(dir string) *Cache {
	return &Cache{Dir: dir}
}

func (c *Cache) path(imageURL string) string {
	return filepath.Join(c.Dir, fmt.Sprintf("%x.ansi", md5.Sum([]byte(imageURL))))
}

// Get returns cached art for imageURL
func (c *Cache) Get(imageURL string) (string, bool) {
	data, err := os.ReadFile(c.path(imageURL))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Put writes art for imageURL
func (c *Cache) Put(imageURL, art string) error {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create ANSI cache directory: %w", err)
	}
	if err := os.WriteFile(c.path(imageURL), []byte(art), 0644); err != nil {
		return fmt.Errorf("failed to write ANSI art to file: %w", err)
	}
	return nil
}

// Clear removes all cached art
func (c *Cache) Clear() error {
	return os.RemoveAll(c.Dir)
}

// Load returns the art for imageURL, generating it with download and
// caching it when it is not cached yet.
func (c *Cache) Load(imageURL string, download func(url string) ([]byte, error)) (string, error) {
	if art, ok := c.Get(imageURL); ok {
		return art, nil
	}

	data, err := download(imageURL)
	if err != nil {
		return "", err
	}
	img, err := Decode(data)
	if err != nil {
		return "", err
	}

	art := FromImage(img, DefaultWidth, DefaultHeight, true)
	if err := c.Put(imageURL, art); err != nil {
		return "", err
	}
	return art, nil
}

// WrapText wraps text to a specified width
func WrapText(text string, width int) []string {
	if width < 10 {
		width = 40
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var result []string
	var currentLine string
	for _, word := range words {
		if len(currentLine) == 0 {
			currentLine = word
		} else if len(currentLine)+1+len(word) <= width {
			currentLine += " " + word
		} else {
			result = append(result, currentLine)
			currentLine = word
		}
	}
	if currentLine != "" {
		result = append(result, currentLine)
	}

	return result
}

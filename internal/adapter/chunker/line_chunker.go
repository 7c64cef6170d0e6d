package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"carspire/internal/domain"
)

const (
	DefaultMaxChars = 900
	DefaultMinChars = 10
)

var lineBreaks = regexp.MustCompile(`(\r?\n)+`)

// LineChunker groups consecutive lines into chunks of at most maxChars
// characters. A single line longer than maxChars becomes its own chunk.
type LineChunker struct {
	maxChars int
	minChars int
}

func NewLineChunker(maxChars, minChars int) *LineChunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if minChars < 0 {
		minChars = 0
	}
	return &LineChunker{
		maxChars: maxChars,
		minChars: minChars,
	}
}

func (c *LineChunker) Validate(text string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	if n < c.minChars {
		return domain.NewValidationError("text", "provide at least %d characters, got %d", c.minChars, n)
	}
	return nil
}

func (c *LineChunker) Chunk(text string) ([]string, error) {
	if err := c.Validate(text); err != nil {
		return nil, err
	}
	return Split(text, c.maxChars), nil
}

// Split is the chunking algorithm behind LineChunker. It is pure: the same
// text and maxChars always produce the same chunks.
func Split(text string, maxChars int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	var buf string
	flush := func() {
		if trimmed := strings.TrimSpace(buf); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}

	for _, line := range lineBreaks.Split(text, -1) {
		candidate := line
		if buf != "" {
			candidate = buf + "\n" + line
		}
		if buf != "" && utf8.RuneCountInString(candidate) > maxChars {
			flush()
			buf = line
			continue
		}
		buf = candidate
	}
	flush()

	return chunks
}

// Package tokencount estimates prompt sizes for logging and metrics.
// This package is internal and should not be imported by external projects.
package tokencount

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens with tiktoken, falling back to a character-based
// estimate when the encoding cannot be initialized (tiktoken may download
// data on first use). Counts feed observability only, so the fallback is
// silent.
type Counter struct {
	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// New creates a lazy counter over the cl100k_base encoding.
func New() *Counter {
	return &Counter{}
}

func (c *Counter) init() error {
	c.once.Do(func() {
		c.enc, c.initErr = tiktoken.GetEncoding("cl100k_base")
	})
	return c.initErr
}

// Count returns the token count of text. It never fails.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if err := c.init(); err == nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return estimate(text)
}

// estimate distinguishes CJK and ASCII characters: CJK runs ~1.5
// chars/token, everything else ~4.
func estimate(text string) int {
	totalChars := utf8.RuneCountInString(text)
	cjkCount := 0
	for _, r := range text {
		if isCJK(r) {
			cjkCount++
		}
	}

	cjkTokens := float64(cjkCount) / 1.5
	asciiTokens := float64(totalChars-cjkCount) / 4.0
	estimated := int(cjkTokens + asciiTokens)
	if estimated == 0 {
		estimated = 1
	}
	return estimated
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x3040 && r <= 0x30FF) ||
		(r >= 0xAC00 && r <= 0xD7AF)
}

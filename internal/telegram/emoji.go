package telegram

import (
	"regexp"
	"sort"
	"sync"
)

// EmojiSanitizer remembers custom emoji ids the API refused to render.
// Implementations must be safe for concurrent use.
type EmojiSanitizer interface {
	Block(id string)
	IsBlocked(id string) bool
}

// EmojiBlocklist is the process-wide EmojiSanitizer. It only grows.
type EmojiBlocklist struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewEmojiBlocklist() *EmojiBlocklist {
	return &EmojiBlocklist{ids: make(map[string]struct{})}
}

func (b *EmojiBlocklist) Block(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids[id] = struct{}{}
}

func (b *EmojiBlocklist) IsBlocked(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.ids[id]
	return ok
}

// Blocked lists the blocked ids in sorted order.
func (b *EmojiBlocklist) Blocked() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.ids))
	for id := range b.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var customEmojiRe = regexp.MustCompile(`(?s)<tg-emoji\s+emoji-id="(\d+)"\s*>(.*?)</tg-emoji>`)

// CustomEmoji wraps a fallback glyph into premium emoji markup.
func CustomEmoji(id, fallback string) string {
	if id == "" {
		return fallback
	}
	return `<tg-emoji emoji-id="` + id + `">` + fallback + `</tg-emoji>`
}

func extractEmojiIDs(text string) []string {
	matches := customEmojiRe.FindAllStringSubmatch(text, -1)
	ids := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			ids = append(ids, m[1])
		}
	}
	return ids
}

// stripCustomEmoji replaces markup whose id matches drop with its fallback
// glyph. A nil drop strips every custom emoji.
func stripCustomEmoji(text string, drop func(id string) bool) string {
	return customEmojiRe.ReplaceAllStringFunc(text, func(match string) string {
		m := customEmojiRe.FindStringSubmatch(match)
		if drop != nil && !drop(m[1]) {
			return match
		}
		return m[2]
	})
}

package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{name: "no markup", input: "salom", expect: "salom"},
		{name: "tags removed", input: "<b>Ish</b> <i>bor</i>", expect: "Ish bor"},
		{name: "entities unescaped", input: "a &lt; b &amp;&amp; c", expect: "a < b && c"},
		{name: "links keep label", input: `<a href="https://ishbor.uz">sayt</a>`, expect: "sayt"},
		{name: "multiline", input: "<b>1</b>\n2", expect: "1\n2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, PlainText(tt.input))
		})
	}
}

func TestStripCustomEmoji(t *testing.T) {
	text := CustomEmoji("1", "🔥") + " and " + CustomEmoji("2", "💼")

	assert.Equal(t, "🔥 and 💼", stripCustomEmoji(text, nil))
	assert.Equal(t, "🔥 and "+CustomEmoji("2", "💼"),
		stripCustomEmoji(text, func(id string) bool { return id == "1" }))
	assert.Equal(t, []string{"1", "2"}, extractEmojiIDs(text+CustomEmoji("1", "🔥")))
	assert.Equal(t, "x", CustomEmoji("", "x"))
}

func TestStripIcons(t *testing.T) {
	out, changed := stripIcons(`{"inline_keyboard":[[{"text":"a","callback_data":"b","icon_custom_emoji_id":"9"}]]}`)
	assert.True(t, changed)
	assert.JSONEq(t, `{"inline_keyboard":[[{"text":"a","callback_data":"b"}]]}`, out)

	_, changed = stripIcons(`{"remove_keyboard":true}`)
	assert.False(t, changed)
}

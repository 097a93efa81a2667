package telegram

import (
	"encoding/json"
)

// Markup is any reply_markup payload.
type Markup interface {
	isMarkup()
}

// InlineButton mirrors InlineKeyboardButton including the icon field
// newer clients render next to the label.
type InlineButton struct {
	Text              string `json:"text"`
	CallbackData      string `json:"callback_data,omitempty"`
	URL               string `json:"url,omitempty"`
	IconCustomEmojiID string `json:"icon_custom_emoji_id,omitempty"`
}

type InlineKeyboard struct {
	InlineKeyboard [][]InlineButton `json:"inline_keyboard"`
}

func (InlineKeyboard) isMarkup() {}

type KeyboardButton struct {
	Text              string `json:"text"`
	RequestContact    bool   `json:"request_contact,omitempty"`
	IconCustomEmojiID string `json:"icon_custom_emoji_id,omitempty"`
}

type ReplyKeyboard struct {
	Keyboard        [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard  bool               `json:"resize_keyboard"`
	OneTimeKeyboard bool               `json:"one_time_keyboard"`
}

func (ReplyKeyboard) isMarkup() {}

type RemoveKeyboard struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
}

func (RemoveKeyboard) isMarkup() {}

// CallbackButton is a plain inline button.
func CallbackButton(text, data string) InlineButton {
	return InlineButton{Text: text, CallbackData: data}
}

// URLButton opens a link.
func URLButton(text, url string) InlineButton {
	return InlineButton{Text: text, URL: url}
}

// WithIcon decorates a button with a custom emoji icon.
func (b InlineButton) WithIcon(emojiID string) InlineButton {
	b.IconCustomEmojiID = emojiID
	return b
}

// Rows builds a keyboard from rows of buttons, skipping empty rows.
func Rows(rows ...[]InlineButton) InlineKeyboard {
	kb := InlineKeyboard{InlineKeyboard: make([][]InlineButton, 0, len(rows))}
	for _, row := range rows {
		if len(row) > 0 {
			kb.InlineKeyboard = append(kb.InlineKeyboard, row)
		}
	}
	return kb
}

// Column lays out buttons one per row.
func Column(buttons ...InlineButton) InlineKeyboard {
	rows := make([][]InlineButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineButton{b})
	}
	return Rows(rows...)
}

// ContactKeyboard asks the user to share their phone number.
func ContactKeyboard(label string) ReplyKeyboard {
	return ReplyKeyboard{
		Keyboard:        [][]KeyboardButton{{{Text: label, RequestContact: true}}},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

// stripIcons removes every icon_custom_emoji_id from an encoded
// reply_markup. It reports whether anything was removed.
func stripIcons(raw string) (string, bool) {
	var tree any
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return raw, false
	}
	if !dropKey(tree, "icon_custom_emoji_id") {
		return raw, false
	}
	out, err := json.Marshal(tree)
	if err != nil {
		return raw, false
	}
	return string(out), true
}

func dropKey(node any, key string) bool {
	changed := false
	switch v := node.(type) {
	case map[string]any:
		if _, ok := v[key]; ok {
			delete(v, key)
			changed = true
		}
		for _, child := range v {
			if dropKey(child, key) {
				changed = true
			}
		}
	case []any:
		for _, child := range v {
			if dropKey(child, key) {
				changed = true
			}
		}
	}
	return changed
}

package telegram

import (
	"strings"

	"golang.org/x/net/html"
)

// EscapeHTML escapes user supplied text for parse_mode=HTML.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

// PlainText drops every tag from Telegram HTML and unescapes entities,
// keeping only what a user would read.
func PlainText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF at the end of input; anything else is unrecoverable
			// markup and the text gathered so far is the best we have.
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

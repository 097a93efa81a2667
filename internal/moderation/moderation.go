// Package moderation screens free text users type into the bot before it
// is stored or forwarded to the language model.
package moderation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xaenox/ishbor-bot/internal/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Reason string

const (
	ReasonNone            Reason = ""
	ReasonProfanity       Reason = "profanity"
	ReasonPromptInjection Reason = "prompt_injection"
	ReasonSpam            Reason = "spam"
)

// MaxInputLength bounds sanitized text, in runes.
const MaxInputLength = 500

// repeatedRunLimit is the longest run of one character we accept.
const repeatedRunLimit = 8

type Verdict struct {
	Allowed bool
	Reason  Reason
	Message models.Text
}

var warnings = map[Reason]models.Text{
	ReasonProfanity: {
		Uz: "Iltimos, odobsiz so'zlarsiz yozing.",
		Ru: "Пожалуйста, пишите без нецензурных выражений.",
	},
	ReasonPromptInjection: {
		Uz: "Bu so'rovni qabul qila olmaymiz. Iltimos, faqat ish haqida yozing.",
		Ru: "Мы не можем принять этот запрос. Пожалуйста, пишите только о работе.",
	},
	ReasonSpam: {
		Uz: "Havolalar, elektron pochta va takroriy belgilar taqiqlangan.",
		Ru: "Ссылки, e-mail и повторяющиеся символы запрещены.",
	},
}

type rule struct {
	reason  Reason
	matches func(normalized string) bool
}

func anyOf(patterns ...*regexp.Regexp) func(string) bool {
	return func(s string) bool {
		for _, p := range patterns {
			if p.MatchString(s) {
				return true
			}
		}
		return false
	}
}

// Patterns run against lower-cased text with diacritics removed, so
// "й" is matched as "и" and "o‘" variants collapse.
var (
	profanityUz = regexp.MustCompile(`\b(jalab|qanjiq|dalba[yj]o+b|sik(aman|ay|ib|dim)|ko'?tak|haromi|onangni|itvachcha)\w*`)
	profanityRu = regexp.MustCompile(`(ху[ие]|пизд|еба[нл]|(^|[^а-яa-z])(бля|сук[аи]|мудак|пидор|гандон|залуп))`)

	injectionEn = regexp.MustCompile(`ignore\s+(all\s+)?(the\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules)`)
	injectionRu = regexp.MustCompile(`(игнорируи|забудь)\s+(все\s+)?(предыдущие|прошлые|свои)\s+(инструкции|правила)`)
	injectionUz = regexp.MustCompile(`(oldingi|avvalgi)\s+(ko'?rsatmalar|buyruqlar)\w*\s+(e'?tibor\s+berma|unut)`)
	systemRe    = regexp.MustCompile(`(system\s+prompt|системн\w*\s+промпт|you\s+are\s+now\s+|act\s+as\s+(an?\s+)?(admin|developer|dan)\b)`)
	secretsRe   = regexp.MustCompile(`(api[\s_-]?key|secret[\s_-]?key|access[\s_-]?token|bot[\s_-]?token|\.env\b|env(ironment)?\s+variables?|переменн\w+\s+окружени)`)
	sqlRe       = regexp.MustCompile(`\b(select\s+[\w*,\s]+\s+from|drop\s+(table|database)|insert\s+into|delete\s+from|update\s+\w+\s+set|union\s+(all\s+)?select)\b`)

	// A bare domain counts only with a path: "asp.net" and "socket.io" are skills.
	urlRe   = regexp.MustCompile(`(https?://|www\.|t\.me/|\b[a-z0-9-]+\.(com|ru|uz|net|org|io|me|xyz)/)`)
	emailRe = regexp.MustCompile(`[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)
)

// rules are checked in order; the first match decides.
var rules = []rule{
	{ReasonProfanity, anyOf(profanityUz, profanityRu)},
	{ReasonPromptInjection, anyOf(injectionEn, injectionRu, injectionUz, systemRe, secretsRe, sqlRe)},
	{ReasonSpam, func(s string) bool { return hasRepeatedRun(s, repeatedRunLimit) || urlRe.MatchString(s) || emailRe.MatchString(s) }},
}

// CheckForAbuse screens text and explains a rejection in both languages.
func CheckForAbuse(text string) Verdict {
	normalized := normalize(text)
	if normalized == "" {
		return Verdict{Allowed: true}
	}
	for _, r := range rules {
		if r.matches(normalized) {
			return Verdict{Allowed: false, Reason: r.reason, Message: warnings[r.reason]}
		}
	}
	return Verdict{Allowed: true}
}

func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	result = strings.ToLower(result)
	// Uzbek apostrophes come in several code points.
	return strings.NewReplacer("‘", "'", "’", "'", "ʻ", "'", "ʼ", "'", "`", "'").Replace(result)
}

func hasRepeatedRun(s string, limit int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev && !unicode.IsSpace(r) {
			run++
			if run > limit {
				return true
			}
			continue
		}
		prev, run = r, 1
	}
	return false
}

var bracketStripper = strings.NewReplacer("[", "", "]", "", "{", "", "}", "", "<", "", ">", "")

// SanitizeInput prepares accepted text for prompts: brackets and braces are
// removed, whitespace collapsed and the result cut to MaxInputLength runes.
func SanitizeInput(text string) string {
	text = bracketStripper.Replace(text)
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > MaxInputLength {
		text = string([]rune(text)[:MaxInputLength])
	}
	return text
}

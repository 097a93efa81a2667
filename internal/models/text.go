package models

// Text is a message in both interface languages.
type Text struct {
	Uz string `json:"uz"`
	Ru string `json:"ru"`
}

// In picks the variant for lang, falling back to Uzbek.
func (t Text) In(lang Language) string {
	if lang == LangRu && t.Ru != "" {
		return t.Ru
	}
	return t.Uz
}

// ParseLanguage maps a stored or user supplied code to a Language.
func ParseLanguage(code string) (Language, bool) {
	switch Language(code) {
	case LangUz, LangRu:
		return Language(code), true
	}
	return LangUz, false
}

package models

import "time"

// Language is a user interface language supported by the bot.
type Language string

const (
	LangUz Language = "uz"
	LangRu Language = "ru"
)

// Role distinguishes job seekers from employers.
type Role string

const (
	RoleSeeker   Role = "seeker"
	RoleEmployer Role = "employer"
)

// User is an account of the marketplace as seen by the bot.
type User struct {
	ID             int64     `json:"id"`
	Phone          string    `json:"phone"`
	Name           string    `json:"name"`
	PasswordHash   string    `json:"-"`
	Role           Role      `json:"role"`
	TelegramChatID int64     `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// ResultRef is one ranked entry remembered between pages of search results.
type ResultRef struct {
	ID       int64  `json:"id"`
	Score    int    `json:"score"`
	AIScore  *int   `json:"ai_score,omitempty"`
	AIReason string `json:"ai_reason,omitempty"`
}

// Session is the persisted conversation state of one chat.
type Session struct {
	ChatID       int64             `json:"chat_id"`
	UserID       int64             `json:"user_id,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	State        string            `json:"state"`
	Lang         Language          `json:"lang"`
	Answers      map[string]string `json:"answers,omitempty"`
	OTPHash      string            `json:"otp_hash,omitempty"`
	OTPExpiresAt time.Time         `json:"otp_expires_at,omitempty"`
	OTPAttempts  int               `json:"otp_attempts,omitempty"`
	OTPSentAt    time.Time         `json:"otp_sent_at,omitempty"`
	Page         int               `json:"page,omitempty"`
	Results      []ResultRef       `json:"results,omitempty"`
	Version      int64             `json:"version"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NewSession returns the state of a chat that has never talked to the bot.
func NewSession(chatID int64, lang Language) *Session {
	return &Session{
		ChatID:  chatID,
		Lang:    lang,
		Answers: make(map[string]string),
	}
}

// Authenticated reports whether the chat is linked to an account.
func (s *Session) Authenticated() bool {
	return s.UserID != 0
}

// ClearWizard drops the scratch answers and the result cursor.
func (s *Session) ClearWizard() {
	s.Answers = make(map[string]string)
	s.Page = 0
	s.Results = nil
}

// ClearOTP forgets a pending one-time code. OTPSentAt survives so the
// resend interval still applies.
func (s *Session) ClearOTP() {
	s.OTPHash = ""
	s.OTPExpiresAt = time.Time{}
	s.OTPAttempts = 0
}

// Clone returns a deep copy so handlers can mutate freely and the caller
// can still discard the changes.
func (s *Session) Clone() *Session {
	c := *s
	c.Answers = make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		c.Answers[k] = v
	}
	if s.Results != nil {
		c.Results = make([]ResultRef, len(s.Results))
		copy(c.Results, s.Results)
	}
	return &c
}

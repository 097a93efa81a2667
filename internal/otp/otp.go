// Package otp issues one-time login codes and hands them to a delivery
// channel.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	CodeLength  = 6
	TTL         = 5 * time.Minute
	MaxAttempts = 3
)

// Sender delivers a code to a phone number.
type Sender interface {
	Send(ctx context.Context, phone, code string) error
}

// LogSender writes codes to the log instead of sending an SMS. The code
// itself is only logged when Reveal is set, which dry-run mode does.
type LogSender struct {
	Logger *zap.Logger
	Reveal bool
}

func (s LogSender) Send(ctx context.Context, phone, code string) error {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	fields := []zap.Field{zap.String("phone", MaskPhone(phone))}
	if s.Reveal {
		fields = append(fields, zap.String("code", code))
	}
	log.Info("otp issued", fields...)
	return nil
}

// Generate returns a random numeric code of CodeLength digits.
func Generate() (string, error) {
	return generate(rand.Reader)
}

func generate(r io.Reader) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(CodeLength), nil)
	n, err := rand.Int(r, limit)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n), nil
}

// Hash binds a code to the phone it was sent to.
func Hash(phone, code string) string {
	sum := sha256.Sum256([]byte(phone + ":" + strings.TrimSpace(code)))
	return hex.EncodeToString(sum[:])
}

// Verify compares a typed code against a stored hash in constant time.
func Verify(hash, phone, code string) bool {
	if hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hash), []byte(Hash(phone, code))) == 1
}

// MaskPhone keeps the country code and the last two digits.
func MaskPhone(phone string) string {
	if len(phone) <= 6 {
		return strings.Repeat("*", len(phone))
	}
	return phone[:4] + strings.Repeat("*", len(phone)-6) + phone[len(phone)-2:]
}

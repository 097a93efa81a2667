package telegram

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// APIError is a request the Bot API answered with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
	// RetryAfter is set on 429 responses, in seconds.
	RetryAfter int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

func (e *APIError) describes(fragments ...string) bool {
	desc := strings.ToLower(e.Description)
	for _, f := range fragments {
		if strings.Contains(desc, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNotModified reports an edit whose text and markup equal the current message.
func IsNotModified(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.describes("message is not modified")
}

// IsChatNotFound reports a chat that does not exist or the bot cannot see.
func IsChatNotFound(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.describes("chat not found")
}

// IsMessageGone reports an edit or delete of a message that no longer exists.
func IsMessageGone(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == 400 && apiErr.describes("message to edit not found", "message to delete not found")
}

// IsBlocked reports a user who blocked the bot or deactivated the account.
func IsBlocked(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == 403
}

// IsStaleCallback reports an answerCallbackQuery sent too late.
func IsStaleCallback(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.describes("query is too old", "query id is invalid")
}

func isEntityError(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == 400 && apiErr.describes(
		"can't parse entities",
		"entity",
		"custom emoji",
		"emoji",
		"unsupported start tag",
	)
}

func isButtonError(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == 400 && apiErr.describes("button_", "icon")
}

func isRetryable(err error) bool {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.Code >= 500
	}

	// A gateway in front of the API answered with something that is not JSON.
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

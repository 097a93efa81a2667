package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// EmojiMode controls premium emoji markup in outgoing text.
type EmojiMode string

const (
	// EmojiAuto sends markup, degrades on rejection and learns the blocklist.
	EmojiAuto EmojiMode = "auto"
	// EmojiOn always sends markup. Rejections still degrade but are not learned.
	EmojiOn EmojiMode = "on"
	// EmojiOff strips markup before sending.
	EmojiOff EmojiMode = "off"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxRetries  = 3
	defaultBaseDelay   = 500 * time.Millisecond
	maxConsecutive429  = 5
	defaultParseMode   = tgbotapi.ModeHTML
	textPreviewLogSize = 80
)

// Recipient is a numeric chat id or an @username of a public channel.
type Recipient string

func ChatID(id int64) Recipient {
	return Recipient(strconv.FormatInt(id, 10))
}

func Channel(handle string) Recipient {
	if !strings.HasPrefix(handle, "@") && !strings.HasPrefix(handle, "-") {
		handle = "@" + handle
	}
	return Recipient(handle)
}

type Config struct {
	Token string
	// APIEndpoint is a format string taking the token and the method name.
	APIEndpoint string
	Timeout     time.Duration
	MaxRetries  int
	EmojiMode   EmojiMode
	// HTTPClient replaces the network transport, e.g. with a DryRun.
	HTTPClient tgbotapi.HTTPClient
}

// Client is a Bot API client that retries transient failures, honours
// rate limits and degrades rich text the API refuses to render.
type Client struct {
	api         *tgbotapi.BotAPI
	emoji       EmojiSanitizer
	mode        EmojiMode
	maxRetries  int
	baseDelay   time.Duration
	maxThrottle int
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *zap.Logger
}

func New(cfg Config, emoji EmojiSanitizer, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if emoji == nil {
		emoji = NewEmojiBlocklist()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.EmojiMode == "" {
		cfg.EmojiMode = EmojiAuto
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	// Built by hand instead of tgbotapi.NewBotAPI so startup never
	// depends on a getMe round-trip.
	api := &tgbotapi.BotAPI{
		Token:  cfg.Token,
		Client: httpClient,
		Buffer: 100,
	}
	api.SetAPIEndpoint(cfg.APIEndpoint)

	return &Client{
		api:         api,
		emoji:       emoji,
		mode:        cfg.EmojiMode,
		maxRetries:  cfg.MaxRetries,
		baseDelay:   defaultBaseDelay,
		maxThrottle: maxConsecutive429,
		sleep:       sleepContext,
		logger:      logger,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// contextClient binds one request context to the shared transport.
type contextClient struct {
	ctx  context.Context
	base tgbotapi.HTTPClient
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.base.Do(req.WithContext(c.ctx))
}

var textFields = []string{"text", "caption"}

// CallAPI invokes a Bot API method and returns the raw result.
//
// Before sending, custom emoji markup is removed according to the emoji
// mode and the blocklist. If the API rejects the entities the call is
// repeated once as plain text; if it rejects button icons the call is
// repeated once without them.
func (c *Client) CallAPI(ctx context.Context, method string, params tgbotapi.Params) (json.RawMessage, error) {
	params = c.prepare(params)

	degradedText, degradedButtons := false, false
	for {
		result, err := c.do(ctx, method, params)
		if err == nil {
			return result, nil
		}

		switch {
		case !degradedButtons && isButtonError(err):
			markup, stripped := stripIcons(params["reply_markup"])
			if !stripped {
				return nil, err
			}
			degradedButtons = true
			params["reply_markup"] = markup
			c.logger.Warn("button icons rejected, retrying without them",
				zap.String("method", method), zap.Error(err))

		case !degradedText && isEntityError(err):
			degradedText = true
			c.fallbackToPlain(params)
			c.logger.Warn("rich text rejected, retrying as plain text",
				zap.String("method", method), zap.Error(err))

		default:
			return nil, err
		}
	}
}

func (c *Client) prepare(params tgbotapi.Params) tgbotapi.Params {
	out := make(tgbotapi.Params, len(params))
	for k, v := range params {
		out[k] = v
	}

	var drop func(string) bool
	switch c.mode {
	case EmojiOn:
		return out
	case EmojiOff:
		drop = nil
	default:
		drop = c.emoji.IsBlocked
	}
	for _, field := range textFields {
		if text, ok := out[field]; ok {
			out[field] = stripCustomEmoji(text, drop)
		}
	}
	return out
}

func (c *Client) fallbackToPlain(params tgbotapi.Params) {
	for _, field := range textFields {
		text, ok := params[field]
		if !ok {
			continue
		}
		if c.mode == EmojiAuto {
			for _, id := range extractEmojiIDs(text) {
				c.emoji.Block(id)
				c.logger.Info("custom emoji blocked", zap.String("emoji_id", id))
			}
		}
		params[field] = PlainText(stripCustomEmoji(text, nil))
	}
	delete(params, "parse_mode")
	delete(params, "entities")
}

// do performs one logical request: transient failures are retried with
// exponential backoff and 429 answers are waited out.
func (c *Client) do(ctx context.Context, method string, params tgbotapi.Params) (json.RawMessage, error) {
	attempt, throttled := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := c.request(ctx, method, params)
		if err == nil {
			return result, nil
		}

		if apiErr, ok := asAPIError(err); ok && apiErr.Code == http.StatusTooManyRequests {
			throttled++
			if throttled > c.maxThrottle {
				return nil, err
			}
			wait := time.Duration(apiErr.RetryAfter+1) * time.Second
			c.logger.Warn("rate limited by telegram",
				zap.String("method", method), zap.Duration("wait", wait))
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}
		throttled = 0

		if !isRetryable(err) || attempt >= c.maxRetries {
			return nil, err
		}
		wait := c.baseDelay << attempt
		attempt++
		c.logger.Debug("retrying telegram request",
			zap.String("method", method), zap.Int("attempt", attempt),
			zap.Duration("wait", wait), zap.Error(err))
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (c *Client) request(ctx context.Context, method string, params tgbotapi.Params) (json.RawMessage, error) {
	api := *c.api
	api.Client = contextClient{ctx: ctx, base: c.api.Client}

	resp, err := api.MakeRequest(method, params)
	if err != nil {
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			return nil, &APIError{
				Method:      method,
				Code:        tgErr.Code,
				Description: tgErr.Message,
				RetryAfter:  tgErr.RetryAfter,
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("telegram %s: %w", method, ctxErr)
		}
		return nil, fmt.Errorf("telegram %s: %w", method, err)
	}
	return resp.Result, nil
}

package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/ishbor-bot/internal/logger"
	"go.uber.org/zap"
)

// MessageOptions tune sendMessage and editMessageText. A nil value sends
// HTML without a keyboard.
type MessageOptions struct {
	// ParseMode defaults to HTML. Set Plain to send literal text.
	ParseMode      string
	Plain          bool
	ReplyMarkup    Markup
	DisablePreview bool
}

func (o *MessageOptions) apply(params tgbotapi.Params) error {
	if o == nil {
		params["parse_mode"] = defaultParseMode
		return nil
	}
	if !o.Plain {
		mode := o.ParseMode
		if mode == "" {
			mode = defaultParseMode
		}
		params["parse_mode"] = mode
	}
	if o.DisablePreview {
		params.AddBool("disable_web_page_preview", true)
	}
	if o.ReplyMarkup != nil {
		if err := params.AddInterface("reply_markup", o.ReplyMarkup); err != nil {
			return fmt.Errorf("encode reply markup: %w", err)
		}
	}
	return nil
}

func decodeMessage(method string, raw json.RawMessage) (*tgbotapi.Message, error) {
	// Edits of inline messages answer with a bare true.
	if bytes.Equal(bytes.TrimSpace(raw), []byte("true")) {
		return nil, nil
	}
	var msg tgbotapi.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", method, err)
	}
	return &msg, nil
}

func (c *Client) SendMessage(ctx context.Context, to Recipient, text string, opts *MessageOptions) (*tgbotapi.Message, error) {
	params := tgbotapi.Params{"chat_id": string(to), "text": text}
	if err := opts.apply(params); err != nil {
		return nil, err
	}

	c.logger.Debug("sending message",
		zap.String("chat", string(to)),
		zap.String("text", logger.TruncateForLog(text, textPreviewLogSize)))

	raw, err := c.CallAPI(ctx, "sendMessage", params)
	if err != nil {
		return nil, err
	}
	return decodeMessage("sendMessage", raw)
}

func (c *Client) EditMessage(ctx context.Context, to Recipient, messageID int, text string, opts *MessageOptions) (*tgbotapi.Message, error) {
	params := tgbotapi.Params{"chat_id": string(to), "text": text}
	params.AddNonZero("message_id", messageID)
	if err := opts.apply(params); err != nil {
		return nil, err
	}

	raw, err := c.CallAPI(ctx, "editMessageText", params)
	if err != nil {
		return nil, err
	}
	return decodeMessage("editMessageText", raw)
}

func (c *Client) SendSticker(ctx context.Context, to Recipient, fileID string) (*tgbotapi.Message, error) {
	raw, err := c.CallAPI(ctx, "sendSticker", tgbotapi.Params{"chat_id": string(to), "sticker": fileID})
	if err != nil {
		return nil, err
	}
	return decodeMessage("sendSticker", raw)
}

func (c *Client) SendLocation(ctx context.Context, to Recipient, latitude, longitude float64) (*tgbotapi.Message, error) {
	params := tgbotapi.Params{"chat_id": string(to)}
	params["latitude"] = strconv.FormatFloat(latitude, 'f', 6, 64)
	params["longitude"] = strconv.FormatFloat(longitude, 'f', 6, 64)

	raw, err := c.CallAPI(ctx, "sendLocation", params)
	if err != nil {
		return nil, err
	}
	return decodeMessage("sendLocation", raw)
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	params := tgbotapi.Params{"callback_query_id": callbackID}
	params.AddNonEmpty("text", text)
	params.AddBool("show_alert", alert)

	_, err := c.CallAPI(ctx, "answerCallbackQuery", params)
	return err
}

func (c *Client) DeleteMessage(ctx context.Context, to Recipient, messageID int) error {
	params := tgbotapi.Params{"chat_id": string(to)}
	params.AddNonZero("message_id", messageID)

	_, err := c.CallAPI(ctx, "deleteMessage", params)
	return err
}

func (c *Client) GetChatMember(ctx context.Context, chat Recipient, userID int64) (*tgbotapi.ChatMember, error) {
	params := tgbotapi.Params{"chat_id": string(chat)}
	params.AddNonZero64("user_id", userID)

	raw, err := c.CallAPI(ctx, "getChatMember", params)
	if err != nil {
		return nil, err
	}
	var member tgbotapi.ChatMember
	if err := json.Unmarshal(raw, &member); err != nil {
		return nil, fmt.Errorf("decode getChatMember result: %w", err)
	}
	return &member, nil
}

// SetWebhook registers url for updates. secret, when set, is echoed back
// by Telegram in the X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	if err := params.AddInterface("allowed_updates", []string{"message", "callback_query"}); err != nil {
		return err
	}

	_, err := c.CallAPI(ctx, "setWebhook", params)
	return err
}

func (c *Client) GetWebhookInfo(ctx context.Context) (*tgbotapi.WebhookInfo, error) {
	raw, err := c.CallAPI(ctx, "getWebhookInfo", nil)
	if err != nil {
		return nil, err
	}
	var info tgbotapi.WebhookInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decode getWebhookInfo result: %w", err)
	}
	return &info, nil
}

func (c *Client) GetMe(ctx context.Context) (*tgbotapi.User, error) {
	raw, err := c.CallAPI(ctx, "getMe", nil)
	if err != nil {
		return nil, err
	}
	var user tgbotapi.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("decode getMe result: %w", err)
	}
	return &user, nil
}

// GetUpdates long-polls for updates with ids from offset on. timeout is
// in seconds and must stay below the HTTP client timeout.
func (c *Client) GetUpdates(ctx context.Context, offset, timeout int) ([]tgbotapi.Update, error) {
	params := tgbotapi.Params{}
	params.AddNonZero("offset", offset)
	params.AddNonZero("timeout", timeout)
	if err := params.AddInterface("allowed_updates", []string{"message", "callback_query"}); err != nil {
		return nil, err
	}

	raw, err := c.CallAPI(ctx, "getUpdates", params)
	if err != nil {
		return nil, err
	}
	var updates []tgbotapi.Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("decode getUpdates result: %w", err)
	}
	return updates, nil
}

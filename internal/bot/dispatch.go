package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/ishbor-bot/internal/models"
	"github.com/xaenox/ishbor-bot/internal/telegram"
	"go.uber.org/zap"
)

// ErrInvalidInput marks input the user has to correct. The wrapped
// message is shown to them.
var ErrInvalidInput = errors.New("invalid input")

type inputError struct {
	key  string
	text models.Text
}

func (e *inputError) Error() string { return "invalid input: " + e.key }
func (e *inputError) Unwrap() error { return ErrInvalidInput }

func (e *inputError) message(lang models.Language) string {
	if e.text.Uz != "" {
		return e.text.In(lang)
	}
	return tr(lang, e.key)
}

// html is the message ready for an HTML reply.
func (e *inputError) html(lang models.Language) string {
	if e.text.Uz != "" {
		return telegram.EscapeHTML(e.text.In(lang))
	}
	return tr(lang, e.key)
}

func invalid(key string) error {
	return &inputError{key: key}
}

func rejected(reason string, text models.Text) error {
	return &inputError{key: reason, text: text}
}

type inputKind string

const (
	inputText     inputKind = "text"
	inputContact  inputKind = "contact"
	inputCallback inputKind = "callback"
	inputCommand  inputKind = "command"
)

// Input is the normalized form of an update.
type Input struct {
	Kind         inputKind
	ChatID       int64
	UserID       int64
	FirstName    string
	LastName     string
	LanguageCode string

	Text      string
	MessageID int
	Command   string
	Contact   *tgbotapi.Contact

	CallbackID        string
	CallbackData      string
	CallbackMessageID int
}

// parseInput keeps private chat messages and callback queries; everything
// else is ignored.
func parseInput(update tgbotapi.Update) (Input, bool) {
	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.Chat == nil || !msg.Chat.IsPrivate() || msg.From == nil {
			return Input{}, false
		}
		in := Input{
			ChatID:       msg.Chat.ID,
			UserID:       msg.From.ID,
			FirstName:    msg.From.FirstName,
			LastName:     msg.From.LastName,
			LanguageCode: msg.From.LanguageCode,
			Text:         strings.TrimSpace(msg.Text),
			MessageID:    msg.MessageID,
		}
		switch {
		case msg.IsCommand():
			in.Kind = inputCommand
			in.Command = strings.ToLower(msg.Command())
		case msg.Contact != nil:
			in.Kind = inputContact
			in.Contact = msg.Contact
		case in.Text != "":
			in.Kind = inputText
		default:
			return Input{}, false
		}
		return in, true

	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil || cb.Message.Chat == nil || !cb.Message.Chat.IsPrivate() || cb.From == nil {
			return Input{}, false
		}
		return Input{
			Kind:              inputCallback,
			ChatID:            cb.Message.Chat.ID,
			UserID:            cb.From.ID,
			FirstName:         cb.From.FirstName,
			LastName:          cb.From.LastName,
			LanguageCode:      cb.From.LanguageCode,
			CallbackID:        cb.ID,
			CallbackData:      cb.Data,
			CallbackMessageID: cb.Message.MessageID,
		}, true
	}
	return Input{}, false
}

// convo is the state of one update being handled.
type convo struct {
	*Engine
	ctx      context.Context
	in       Input
	sess     *models.Session
	state    State
	log      *zap.Logger
	answered bool
}

type handlerFunc func(c *convo) error

type route struct {
	state stateKind
	input inputKind
}

func (e *Engine) register(state stateKind, input inputKind, h handlerFunc) {
	e.routes[route{state, input}] = h
}

func (e *Engine) registerRoutes() {
	e.routes = make(map[route]handlerFunc)

	e.commands = map[string]handlerFunc{
		"start":  (*convo).cmdStart,
		"cancel": (*convo).cmdCancel,
		"search": (*convo).cmdSearch,
		"resume": (*convo).cmdResume,
		"lang":   (*convo).cmdLanguage,
		"logout": (*convo).cmdLogout,
		"help":   (*convo).cmdHelp,
	}

	// Callbacks that mean the same thing in every state.
	e.callbacks = map[string]handlerFunc{
		cbLanguage: (*convo).onLanguage,
		cbMenu:     (*convo).onMenu,
		cbCancel:   (*convo).cmdCancel,
	}

	e.register(kindIdle, inputText, (*convo).showMenu)
	e.register(kindLanguage, inputText, (*convo).askLanguage)

	e.register(kindPhone, inputContact, (*convo).onContact)
	e.register(kindPhone, inputText, (*convo).onPhoneText)

	e.register(kindOTP, inputText, (*convo).onOTP)
	e.register(kindOTP, inputCallback, (*convo).onAuthCallback)
	e.register(kindPassword, inputText, (*convo).onPassword)
	e.register(kindPassword, inputCallback, (*convo).onAuthCallback)

	e.register(kindResume, inputText, e.resumeWizard.onText)
	e.register(kindResume, inputCallback, e.resumeWizard.onCallback)
	e.register(kindSearch, inputText, e.searchWizard.onText)
	e.register(kindSearch, inputCallback, e.searchWizard.onCallback)

	e.register(kindBrowsing, inputCallback, (*convo).onBrowse)
	e.register(kindBrowsing, inputText, (*convo).showMenu)
}

func (c *convo) dispatch() error {
	switch c.in.Kind {
	case inputCommand:
		if h, ok := c.commands[c.in.Command]; ok {
			return c.handle(h)
		}
		c.reply(tr(c.sess.Lang, "unknown_command"), nil)
		return nil

	case inputCallback:
		prefix, _, _ := strings.Cut(c.in.CallbackData, ":")
		if h, ok := c.callbacks[prefix]; ok {
			return c.handle(h)
		}
	}

	if h, ok := c.routes[route{c.state.Kind(), c.in.Kind}]; ok {
		return c.handle(h)
	}

	if c.in.Kind == inputCallback {
		c.answerCallback(tr(c.sess.Lang, "outdated"))
		return nil
	}
	if c.state == StateIdle && !c.sess.Authenticated() {
		// First contact without /start.
		return c.cmdStart()
	}
	c.reply(tr(c.sess.Lang, "not_understood"), nil)
	return nil
}

// handle runs h and turns input errors into a localized re-prompt.
func (c *convo) handle(h handlerFunc) error {
	err := h(c)
	var inErr *inputError
	if errors.As(err, &inErr) {
		if c.in.Kind == inputCallback {
			c.answerCallback(inErr.message(c.sess.Lang))
		} else {
			c.reply(inErr.html(c.sess.Lang), nil)
		}
		return nil
	}
	return err
}

func (c *convo) setState(s State) {
	if s != c.state {
		c.log.Debug("state transition", zap.String("from", string(c.state)), zap.String("to", string(s)))
	}
	c.state = s
}

func (c *convo) lang() models.Language {
	return c.sess.Lang
}

func (c *convo) t(key string, args ...any) string {
	return tr(c.sess.Lang, key, args...)
}

// reply sends HTML text to the chat. Delivery failures are logged; the
// conversation state still advances.
func (c *convo) reply(text string, markup telegram.Markup) *tgbotapi.Message {
	msg, err := c.tg.SendMessage(c.ctx, telegram.ChatID(c.in.ChatID), text,
		&telegram.MessageOptions{ReplyMarkup: markup, DisablePreview: true})
	if err != nil {
		c.logDeliveryError("send message failed", err)
		return nil
	}
	return msg
}

func (c *convo) replyPlain(text string) {
	if _, err := c.tg.SendMessage(c.ctx, telegram.ChatID(c.in.ChatID), text, &telegram.MessageOptions{Plain: true}); err != nil {
		c.logDeliveryError("send message failed", err)
	}
}

// edit replaces the message a callback came from, falling back to a new
// message when that is not possible.
func (c *convo) edit(text string, markup telegram.Markup) {
	if c.in.CallbackMessageID == 0 {
		c.reply(text, markup)
		return
	}
	_, err := c.tg.EditMessage(c.ctx, telegram.ChatID(c.in.ChatID), c.in.CallbackMessageID, text,
		&telegram.MessageOptions{ReplyMarkup: markup, DisablePreview: true})
	switch {
	case err == nil, telegram.IsNotModified(err):
	default:
		c.log.Debug("edit failed, sending new message", zap.Error(err))
		c.reply(text, markup)
	}
}

func (c *convo) answerCallback(text string) {
	if c.in.Kind != inputCallback || c.answered {
		return
	}
	c.answered = true
	if err := c.tg.AnswerCallback(c.ctx, c.in.CallbackID, text, false); err != nil && !telegram.IsStaleCallback(err) {
		c.logDeliveryError("answer callback failed", err)
	}
}

func (c *convo) logDeliveryError(msg string, err error) {
	if telegram.IsBlocked(err) {
		c.log.Info("user blocked the bot")
		return
	}
	c.log.Warn(msg, zap.Error(err))
}

func (c *convo) callbackValue() string {
	_, value, _ := strings.Cut(c.in.CallbackData, ":")
	return value
}

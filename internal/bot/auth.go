package bot

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/xaenox/ishbor-bot/internal/models"
	"github.com/xaenox/ishbor-bot/internal/otp"
	"github.com/xaenox/ishbor-bot/internal/storage"
	"github.com/xaenox/ishbor-bot/internal/telegram"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const countryCode = "998"

// normalizePhone accepts the usual ways Uzbek numbers are typed and
// returns +998XXXXXXXXX.
func normalizePhone(raw string) (string, bool) {
	var digits strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "", false
		}
	}
	d := digits.String()
	switch {
	case len(d) == 9:
		d = countryCode + d
	case len(d) == 12 && strings.HasPrefix(d, countryCode):
	default:
		return "", false
	}
	return "+" + d, true
}

func (c *convo) cmdStart() error {
	c.sess.ClearWizard()
	c.sess.ClearOTP()
	c.setState(StateChoosingLanguage)
	c.reply(c.t("welcome"), languageKeyboard())
	return nil
}

func (c *convo) cmdLanguage() error {
	c.setState(StateChoosingLanguage)
	c.reply(c.t("choose_language"), languageKeyboard())
	return nil
}

func (c *convo) askLanguage() error {
	c.reply(c.t("choose_language"), languageKeyboard())
	return nil
}

func (c *convo) onLanguage() error {
	lang, ok := models.ParseLanguage(c.callbackValue())
	if !ok {
		return invalid("invalid_choice")
	}
	c.sess.Lang = lang
	c.answerCallback(c.t("language_set"))

	switch {
	case !c.sess.Authenticated():
		return c.askPhone()
	case c.state == StateChoosingLanguage:
		c.sess.ClearWizard()
		return c.showMenu()
	default:
		c.reply(c.t("language_set"), nil)
		return nil
	}
}

func (c *convo) askPhone() error {
	c.setState(StateAwaitingPhone)
	c.reply(c.t("ask_phone"), telegram.ContactKeyboard(c.t("share_contact")))
	return nil
}

func (c *convo) cmdHelp() error {
	c.reply(c.t("help"), nil)
	return nil
}

func (c *convo) cmdCancel() error {
	c.sess.ClearWizard()
	c.answerCallback(c.t("cancelled"))
	if !c.sess.Authenticated() {
		c.sess.ClearOTP()
		return c.askPhone()
	}
	c.setState(StateIdle)
	c.reply(c.t("cancelled"), nil)
	return c.showMenu()
}

func (c *convo) cmdLogout() error {
	c.sess.UserID = 0
	c.sess.Phone = ""
	c.sess.ClearWizard()
	c.sess.ClearOTP()
	c.reply(c.t("logged_out"), telegram.RemoveKeyboard{RemoveKeyboard: true})
	return c.askPhone()
}

// requireUser loads the linked account, sending unauthenticated chats to
// the phone step. A nil user with a nil error means the caller should stop.
func (c *convo) requireUser() (*models.User, error) {
	if !c.sess.Authenticated() {
		c.answerCallback(c.t("need_login"))
		c.reply(c.t("need_login"), nil)
		return nil, c.askPhone()
	}
	user, err := c.store.GetUser(c.ctx, c.sess.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		c.log.Warn("linked account is gone, logging out", zap.Int64("user_id", c.sess.UserID))
		return nil, c.cmdLogout()
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", c.sess.UserID, err)
	}
	return user, nil
}

func (c *convo) onContact() error {
	contact := c.in.Contact
	if contact.UserID != 0 && contact.UserID != c.in.UserID {
		return invalid("foreign_contact")
	}
	phone, ok := normalizePhone(contact.PhoneNumber)
	if !ok {
		return invalid("invalid_phone")
	}
	return c.beginLogin(phone)
}

func (c *convo) onPhoneText() error {
	phone, ok := normalizePhone(c.in.Text)
	if !ok {
		return invalid("invalid_phone")
	}
	return c.beginLogin(phone)
}

func (c *convo) beginLogin(phone string) error {
	c.sess.Phone = phone
	c.reply("📱 "+telegram.EscapeHTML(phone), telegram.RemoveKeyboard{RemoveKeyboard: true})

	user, err := c.store.GetUserByPhone(c.ctx, phone)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("find user by phone: %w", err)
	}
	if user.HasPassword() {
		c.setState(StateAwaitingPassword)
		c.reply(c.t("ask_password"), passwordKeyboard(c.lang()))
		return nil
	}
	return c.issueOTP()
}

// lockoutKey names the login counter of an account. It is keyed by
// phone so every chat trying the same number shares one counter.
func lockoutKey(phone string) string {
	return "phone:" + phone
}

// lockedFor reports the remaining lockout of the phone being logged in,
// clearing an expired one.
func (c *convo) lockedFor() (time.Duration, error) {
	key := lockoutKey(c.sess.Phone)
	state, err := c.lockouts.Get(c.ctx, key)
	if err != nil {
		return 0, fmt.Errorf("load lockout: %w", err)
	}
	if state.LockedUntil.IsZero() {
		return 0, nil
	}
	if !state.Locked(c.now()) {
		if err := c.lockouts.Clear(c.ctx, key); err != nil {
			return 0, fmt.Errorf("clear lockout: %w", err)
		}
		return 0, nil
	}
	return state.LockedUntil.Sub(c.now()), nil
}

func (c *convo) replyLocked(left time.Duration) {
	c.answerCallback("")
	c.reply(c.t("locked", int(math.Ceil(left.Minutes()))), nil)
}

// registerFailure counts a failed attempt against the account and locks
// it once the limit is reached. It returns the attempts left, zero when
// the account is now locked.
func (c *convo) registerFailure() (int, error) {
	state, err := c.lockouts.RecordFailure(c.ctx, lockoutKey(c.sess.Phone), c.now(),
		c.cfg.MaxLoginAttempts, c.cfg.LockoutDuration)
	if err != nil {
		return 0, fmt.Errorf("record login failure: %w", err)
	}
	if !state.Locked(c.now()) {
		return c.cfg.MaxLoginAttempts - state.FailedCount, nil
	}
	c.sess.ClearOTP()
	c.log.Warn("login locked", zap.Duration("lockout", c.cfg.LockoutDuration))
	return 0, nil
}

func (c *convo) issueOTP() error {
	left, err := c.lockedFor()
	if err != nil {
		return err
	}
	if left > 0 {
		c.replyLocked(left)
		return nil
	}
	if wait := c.sess.OTPSentAt.Add(c.cfg.OTPResendInterval).Sub(c.now()); !c.sess.OTPSentAt.IsZero() && wait > 0 {
		c.answerCallback("")
		c.reply(c.t("otp_resend_wait", int(math.Ceil(wait.Seconds()))), nil)
		return nil
	}
	code, err := otp.Generate()
	if err != nil {
		return err
	}
	if err := c.otp.Send(c.ctx, c.sess.Phone, code); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	c.sess.OTPHash = otp.Hash(c.sess.Phone, code)
	c.sess.OTPExpiresAt = c.now().Add(c.cfg.OTPTTL)
	c.sess.OTPAttempts = 0
	c.sess.OTPSentAt = c.now()

	c.setState(StateAwaitingOTP)
	c.reply(c.t("otp_sent", otp.MaskPhone(c.sess.Phone)), otpKeyboard(c.lang()))
	return nil
}

func (c *convo) onAuthCallback() error {
	switch c.callbackValue() {
	case "resend", "otp":
		if c.sess.Phone == "" {
			return c.askPhone()
		}
		return c.issueOTP()
	}
	return invalid("invalid_choice")
}

func (c *convo) onPassword() error {
	// The password should not stay in the chat history.
	if err := c.tg.DeleteMessage(c.ctx, telegram.ChatID(c.in.ChatID), c.in.MessageID); err != nil {
		c.log.Debug("could not delete password message", zap.Error(err))
	}

	left, err := c.lockedFor()
	if err != nil {
		return err
	}
	if left > 0 {
		c.replyLocked(left)
		return nil
	}

	user, err := c.store.GetUserByPhone(c.ctx, c.sess.Phone)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !user.HasPassword()) {
		return c.issueOTP()
	}
	if err != nil {
		return fmt.Errorf("find user by phone: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(c.in.Text)) != nil {
		remaining, err := c.registerFailure()
		if err != nil {
			return err
		}
		if remaining == 0 {
			c.replyLocked(c.cfg.LockoutDuration)
			return nil
		}
		c.reply(c.t("wrong_password", remaining), passwordKeyboard(c.lang()))
		return nil
	}
	return c.completeLogin(user)
}

func (c *convo) onOTP() error {
	left, err := c.lockedFor()
	if err != nil {
		return err
	}
	if left > 0 {
		c.replyLocked(left)
		return nil
	}
	if c.sess.OTPHash == "" {
		c.reply(c.t("otp_invalidated"), otpKeyboard(c.lang()))
		return nil
	}
	if c.now().After(c.sess.OTPExpiresAt) {
		c.sess.ClearOTP()
		c.reply(c.t("otp_expired"), otpKeyboard(c.lang()))
		return nil
	}

	code := strings.ReplaceAll(c.in.Text, " ", "")
	if len(code) != otp.CodeLength || strings.IndexFunc(code, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return invalid("otp_format")
	}

	if !otp.Verify(c.sess.OTPHash, c.sess.Phone, code) {
		c.sess.OTPAttempts++
		remaining, err := c.registerFailure()
		if err != nil {
			return err
		}
		if remaining == 0 {
			c.replyLocked(c.cfg.LockoutDuration)
			return nil
		}
		if c.sess.OTPAttempts >= c.cfg.OTPMaxAttempts {
			c.sess.ClearOTP()
			c.reply(c.t("otp_invalidated"), otpKeyboard(c.lang()))
			return nil
		}
		c.reply(c.t("otp_wrong", c.cfg.OTPMaxAttempts-c.sess.OTPAttempts), otpKeyboard(c.lang()))
		return nil
	}

	user, err := c.store.GetUserByPhone(c.ctx, c.sess.Phone)
	if errors.Is(err, storage.ErrNotFound) {
		user = &models.User{
			Phone: c.sess.Phone,
			Name:  strings.TrimSpace(c.in.FirstName + " " + c.in.LastName),
			Role:  models.RoleSeeker,
		}
		if err := c.store.CreateUser(c.ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		c.log.Info("account created", zap.Int64("user_id", user.ID))
	} else if err != nil {
		return fmt.Errorf("find user by phone: %w", err)
	}
	return c.completeLogin(user)
}

// completeLogin links the chat to the account. Any successful login
// clears the failure counter.
func (c *convo) completeLogin(user *models.User) error {
	if err := c.store.LinkTelegram(c.ctx, user.ID, c.in.ChatID); err != nil {
		return fmt.Errorf("link telegram: %w", err)
	}
	if err := c.lockouts.Clear(c.ctx, lockoutKey(c.sess.Phone)); err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	c.sess.UserID = user.ID
	c.sess.ClearOTP()
	c.sess.ClearWizard()
	c.log.Info("login succeeded", zap.Int64("user_id", user.ID))

	c.reply(c.t("login_ok"), nil)
	c.setState(StateIdle)
	return c.showMenu()
}

func (c *convo) showMenu() error {
	if !c.sess.Authenticated() {
		return c.cmdStart()
	}
	role := models.RoleSeeker
	if user, err := c.store.GetUser(c.ctx, c.sess.UserID); err == nil {
		role = user.Role
	}
	c.setState(StateIdle)
	c.reply(c.t("menu"), mainMenu(c.lang(), role))
	return nil
}

func (c *convo) onMenu() error {
	switch c.callbackValue() {
	case "search":
		return c.cmdSearch()
	case "resume":
		return c.cmdResume()
	case "lang":
		return c.cmdLanguage()
	case "help":
		return c.cmdHelp()
	}
	return invalid("invalid_choice")
}

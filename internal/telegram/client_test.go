package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scripted struct {
	status int
	body   string
}

const okMessage = `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":1,"type":"private"},"text":"x"}}`

type fakeAPI struct {
	mu        sync.Mutex
	responses []scripted
	requests  []Call
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	f.requests = append(f.requests, Call{Method: path.Base(r.URL.Path), Params: r.PostForm})
	resp := scripted{status: http.StatusOK, body: okMessage}
	if len(f.responses) > 0 {
		resp = f.responses[0]
		f.responses = f.responses[1:]
	}
	f.mu.Unlock()

	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

func (f *fakeAPI) sent() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]url.Values, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.Params)
	}
	return out
}

func newTestClient(t *testing.T, mode EmojiMode, responses ...scripted) (*Client, *fakeAPI, *[]time.Duration) {
	t.Helper()
	api := &fakeAPI{responses: responses}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c := New(Config{
		Token:       "TEST",
		APIEndpoint: srv.URL + "/bot%s/%s",
		EmojiMode:   mode,
	}, NewEmojiBlocklist(), nil)

	var waits []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return c, api, &waits
}

func TestSendMessage_RetriesTransientFailures(t *testing.T) {
	c, api, waits := newTestClient(t, EmojiAuto,
		scripted{http.StatusBadGateway, "<html>bad gateway</html>"},
		scripted{http.StatusInternalServerError, `{"ok":false,"error_code":500,"description":"Internal Server Error"}`},
	)

	msg, err := c.SendMessage(context.Background(), ChatID(1), "salom", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, msg.MessageID)
	assert.Len(t, api.sent(), 3)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, *waits)
}

func TestSendMessage_GivesUpAfterMaxRetries(t *testing.T) {
	fail := scripted{http.StatusInternalServerError, `{"ok":false,"error_code":500,"description":"Internal Server Error"}`}
	c, api, _ := newTestClient(t, EmojiAuto, fail, fail, fail, fail, fail)

	_, err := c.SendMessage(context.Background(), ChatID(1), "salom", nil)
	require.Error(t, err)

	apiErr, ok := asAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 500, apiErr.Code)
	assert.Equal(t, "sendMessage", apiErr.Method)
	assert.Len(t, api.sent(), 4)
}

func TestSendMessage_HonoursRetryAfter(t *testing.T) {
	c, api, waits := newTestClient(t, EmojiAuto,
		scripted{http.StatusTooManyRequests, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 3","parameters":{"retry_after":3}}`},
	)

	_, err := c.SendMessage(context.Background(), ChatID(1), "salom", nil)
	require.NoError(t, err)
	assert.Len(t, api.sent(), 2)
	assert.Equal(t, []time.Duration{4 * time.Second}, *waits)
}

func TestSendMessage_RateLimitDoesNotConsumeRetries(t *testing.T) {
	throttle := scripted{http.StatusTooManyRequests, `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":0}}`}
	fail := scripted{http.StatusBadGateway, "<html></html>"}
	c, api, _ := newTestClient(t, EmojiAuto, fail, throttle, fail, throttle, fail)

	_, err := c.SendMessage(context.Background(), ChatID(1), "salom", nil)
	require.NoError(t, err)
	assert.Len(t, api.sent(), 6)
}

func TestSendMessage_FailsFastOnBadRequest(t *testing.T) {
	c, api, waits := newTestClient(t, EmojiAuto,
		scripted{http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`},
	)

	_, err := c.SendMessage(context.Background(), ChatID(1), "salom", nil)
	require.Error(t, err)
	assert.True(t, IsChatNotFound(err))
	assert.False(t, IsNotModified(err))
	assert.Len(t, api.sent(), 1)
	assert.Empty(t, *waits)
}

func TestEditMessage_NotModified(t *testing.T) {
	c, _, _ := newTestClient(t, EmojiAuto,
		scripted{http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified: specified new message content and reply markup are exactly the same"}`},
	)

	_, err := c.EditMessage(context.Background(), Channel("ishbor_toshkent"), 10, "same", nil)
	assert.True(t, IsNotModified(err))
}

func TestSendMessage_EmojiFallbackAndBlocklist(t *testing.T) {
	c, api, _ := newTestClient(t, EmojiAuto,
		scripted{http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities: custom emoji entity is invalid"}`},
	)
	text := CustomEmoji("5368324170671202286", "🔥") + " <b>Yangi vakansiya</b> &amp; more"

	_, err := c.SendMessage(context.Background(), ChatID(1), text, nil)
	require.NoError(t, err)

	sent := api.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, text, sent[0].Get("text"))
	assert.Equal(t, "HTML", sent[0].Get("parse_mode"))
	assert.Equal(t, "🔥 Yangi vakansiya & more", sent[1].Get("text"))
	assert.Empty(t, sent[1].Get("parse_mode"))

	blocklist := c.emoji.(*EmojiBlocklist)
	assert.Equal(t, []string{"5368324170671202286"}, blocklist.Blocked())

	// The same markup now goes out without a failing round-trip.
	_, err = c.SendMessage(context.Background(), ChatID(1), text, nil)
	require.NoError(t, err)

	sent = api.sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "🔥 <b>Yangi vakansiya</b> &amp; more", sent[2].Get("text"))
	assert.Equal(t, "HTML", sent[2].Get("parse_mode"))
}

func TestSendMessage_EmojiModeOnDoesNotLearn(t *testing.T) {
	c, api, _ := newTestClient(t, EmojiOn,
		scripted{http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`},
	)
	text := CustomEmoji("42", "✅") + " ok"

	_, err := c.SendMessage(context.Background(), ChatID(1), text, nil)
	require.NoError(t, err)
	assert.Len(t, api.sent(), 2)
	assert.False(t, c.emoji.IsBlocked("42"))

	_, err = c.SendMessage(context.Background(), ChatID(1), text, nil)
	require.NoError(t, err)
	assert.Equal(t, text, api.sent()[2].Get("text"))
}

func TestSendMessage_EmojiModeOffStrips(t *testing.T) {
	c, api, _ := newTestClient(t, EmojiOff)

	_, err := c.SendMessage(context.Background(), ChatID(1), CustomEmoji("42", "✅")+" tayyor", nil)
	require.NoError(t, err)
	assert.Equal(t, "✅ tayyor", api.sent()[0].Get("text"))
}

func TestSendMessage_ButtonIconFallback(t *testing.T) {
	c, api, _ := newTestClient(t, EmojiAuto,
		scripted{http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: BUTTON_ICON_INVALID"}`},
	)
	kb := Rows([]InlineButton{CallbackButton("Apply", "apply:1").WithIcon("777")})

	_, err := c.SendMessage(context.Background(), ChatID(1), "job", &MessageOptions{ReplyMarkup: kb})
	require.NoError(t, err)

	sent := api.sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].Get("reply_markup"), "icon_custom_emoji_id")
	assert.NotContains(t, sent[1].Get("reply_markup"), "icon_custom_emoji_id")
	assert.Contains(t, sent[1].Get("reply_markup"), "apply:1")
}

func TestSendMessage_ButtonErrorWithoutIconsFails(t *testing.T) {
	c, api, _ := newTestClient(t, EmojiAuto,
		scripted{http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: BUTTON_DATA_INVALID"}`},
	)

	_, err := c.SendMessage(context.Background(), ChatID(1), "job",
		&MessageOptions{ReplyMarkup: Column(CallbackButton("x", "y"))})
	require.Error(t, err)
	assert.Len(t, api.sent(), 1)
}

func TestCallAPI_ContextCancelled(t *testing.T) {
	c, _, _ := newTestClient(t, EmojiAuto)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.SendMessage(ctx, ChatID(1), "salom", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDryRun(t *testing.T) {
	dry := NewDryRun()
	c := New(Config{Token: "dry", HTTPClient: dry}, nil, nil)
	ctx := context.Background()

	first, err := c.SendMessage(ctx, ChatID(5), "bir", nil)
	require.NoError(t, err)
	second, err := c.SendMessage(ctx, Channel("ishbor_andijon"), "ikki", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, first.MessageID)
	assert.Equal(t, 2, second.MessageID)
	assert.Equal(t, int64(5), first.Chat.ID)
	assert.Equal(t, "ishbor_andijon", second.Chat.UserName)

	edited, err := c.EditMessage(ctx, ChatID(5), first.MessageID, "bir!", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, edited.MessageID)

	require.NoError(t, c.AnswerCallback(ctx, "cb", "", false))
	me, err := c.GetMe(ctx)
	require.NoError(t, err)
	assert.True(t, me.IsBot)

	member, err := c.GetChatMember(ctx, Channel("ishbor_andijon"), me.ID)
	require.NoError(t, err)
	assert.True(t, member.IsAdministrator())

	assert.Len(t, dry.CallsTo("sendMessage"), 2)
	assert.Equal(t, "ikki", dry.CallsTo("sendMessage")[1].Params.Get("text"))
	assert.Len(t, dry.Calls(), 6)
}

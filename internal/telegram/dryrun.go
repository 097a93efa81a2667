package telegram

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Call is one request seen by a DryRun transport.
type Call struct {
	Method string
	Params url.Values
}

// DryRun is a tgbotapi.HTTPClient that never touches the network. It
// answers every method with a plausible result, hands out increasing
// message ids and records the calls for inspection.
type DryRun struct {
	mu        sync.Mutex
	calls     []Call
	messageID int
}

func NewDryRun() *DryRun {
	return &DryRun{}
}

func (d *DryRun) Do(req *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	params, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	method := path.Base(req.URL.Path)

	d.mu.Lock()
	d.calls = append(d.calls, Call{Method: method, Params: params})
	result := d.result(method, params)
	d.mu.Unlock()

	payload, err := json.Marshal(map[string]any{"ok": true, "result": result})
	if err != nil {
		return nil, err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(payload)),
		Request:    req,
	}, nil
}

func (d *DryRun) result(method string, params url.Values) any {
	switch method {
	case "sendMessage", "sendSticker", "sendLocation":
		d.messageID++
		return d.message(d.messageID, params)
	case "editMessageText":
		id, _ := strconv.Atoi(params.Get("message_id"))
		return d.message(id, params)
	case "getMe":
		return map[string]any{"id": 1, "is_bot": true, "first_name": "Ishbor", "username": "ishbor_dry_run_bot"}
	case "getUpdates":
		return []any{}
	case "getWebhookInfo":
		return map[string]any{"url": "", "pending_update_count": 0}
	case "getChatMember":
		return map[string]any{
			"status":            "administrator",
			"user":              map[string]any{"id": 1, "is_bot": true, "first_name": "Ishbor"},
			"can_post_messages": true,
		}
	default:
		return true
	}
}

func (d *DryRun) message(id int, params url.Values) map[string]any {
	chat := map[string]any{"type": "private"}
	target := params.Get("chat_id")
	if n, err := strconv.ParseInt(target, 10, 64); err == nil {
		chat["id"] = n
	} else {
		chat["type"] = "channel"
		chat["username"] = strings.TrimPrefix(target, "@")
	}
	return map[string]any{
		"message_id": id,
		"date":       time.Now().Unix(),
		"chat":       chat,
		"text":       params.Get("text"),
	}
}

// Calls returns a copy of the recorded calls.
func (d *DryRun) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// CallsTo filters the recorded calls by method.
func (d *DryRun) CallsTo(method string) []Call {
	var out []Call
	for _, c := range d.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets the recorded calls.
func (d *DryRun) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/ishbor-bot/internal/models"
	"go.uber.org/zap"
)

func TestParseState(t *testing.T) {
	for _, s := range allStates {
		got, err := ParseState(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseState("resume:photo")
	assert.Error(t, err)
	_, err = ParseState("")
	assert.Error(t, err)
}

func TestStateKinds(t *testing.T) {
	assert.Equal(t, kindResume, StateResumeSkills.Kind())
	assert.Equal(t, kindSearch, StateSearchDistrict.Kind())
	assert.Equal(t, kindBrowsing, StateBrowsingResults.Kind())
	assert.Equal(t, kindOTP, StateAwaitingOTP.Kind())
	assert.Equal(t, kindIdle, StateIdle.Kind())
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+998901234567", "+998901234567", true},
		{"998901234567", "+998901234567", true},
		{"90 123 45 67", "+998901234567", true},
		{"+998 (90) 123-45-67", "+998901234567", true},
		{"901234567", "+998901234567", true},
		{"+79161234567", "", false},
		{"12345", "", false},
		{"+99890123456a", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := normalizePhone(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, models.LangRu, detectLanguage("ru"))
	assert.Equal(t, models.LangRu, detectLanguage("ru-RU"))
	assert.Equal(t, models.LangUz, detectLanguage("uz"))
	assert.Equal(t, models.LangUz, detectLanguage("uz-Cyrl"))
	assert.Equal(t, models.LangUz, detectLanguage("en"))
	assert.Equal(t, models.LangUz, detectLanguage(""))
	assert.Equal(t, models.LangUz, detectLanguage("not a tag"))
}

func TestTextsHaveBothLanguages(t *testing.T) {
	for key, text := range texts {
		assert.NotEmpty(t, text.Uz, "uz text of %s", key)
		assert.NotEmpty(t, text.Ru, "ru text of %s", key)
	}
	assert.Equal(t, "no_such_key", tr(models.LangRu, "no_such_key"))
	assert.Equal(t, "Неверный код. Осталось попыток: 2", tr(models.LangRu, "otp_wrong", 2))
}

func TestParseSalary(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"5000000", 5000000, true},
		{"5 000 000", 5000000, true},
		{"5.000.000", 5000000, true},
		{"2.5 mln", 2500000, true},
		{"3 млн сум", 3000000, true},
		{"4mln so'm", 4000000, true},
		{"1,5 MLN", 1500000, true},
		{"0", 0, false},
		{"-100", 0, false},
		{"2000000000", 0, false},
		{"besh million", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseSalary(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSkills(t *testing.T) {
	c := &convo{log: zap.NewNop()}

	got, err := parseSkills(c, " Excel ,1C,, excel, [Word] ")
	require.NoError(t, err)
	assert.Equal(t, "Excel, 1C, Word", got)
	assert.Equal(t, []string{"Excel", "1C", "Word"}, splitSkills(got))

	got, err = parseSkills(c, "C#, ASP.NET, SQL")
	require.NoError(t, err)
	assert.Equal(t, "C#, ASP.NET, SQL", got)

	_, err = parseSkills(c, "a,b,c,d,e,f,g,h,i,j,k")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = parseSkills(c, "Juda uzun ko'nikma nomi qirq belgidan oshib ketadi albatta")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = parseSkills(c, "Excel, www.example.uz")
	var inErr *inputError
	require.True(t, errors.As(err, &inErr))
	assert.Equal(t, "spam", inErr.key)
}

func TestResumeSummary(t *testing.T) {
	summary := resumeSummary(map[string]string{
		ansTitle:      "Oshpaz <bosh>",
		ansCategory:   "8",
		ansRegion:     "1",
		ansDistrict:   "102",
		ansSalary:     "",
		ansExperience: "3-6",
		ansEmployment: "shift",
	}, models.LangRu)

	assert.Contains(t, summary, "Oshpaz &lt;bosh&gt;")
	assert.Contains(t, summary, "г. Ташкент, Чиланзар")
	assert.Contains(t, summary, "Договорная")
	assert.Contains(t, summary, "не указано")
}

type scriptedSource struct {
	mu      sync.Mutex
	batches [][]tgbotapi.Update
	offsets []int
}

func (s *scriptedSource) GetUpdates(ctx context.Context, offset, timeout int) ([]tgbotapi.Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets = append(s.offsets, offset)
	if len(s.batches) == 0 {
		return nil, nil
	}
	next := s.batches[0]
	s.batches = s.batches[1:]
	return next, nil
}

type countingHandler struct {
	mu  sync.Mutex
	ids []int
}

func (h *countingHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, update.UpdateID)
	return nil
}

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ids)
}

func TestPoller(t *testing.T) {
	source := &scriptedSource{batches: [][]tgbotapi.Update{
		{{UpdateID: 10}, {UpdateID: 11}},
		{{UpdateID: 12}},
	}}
	handler := &countingHandler{}
	p := NewPoller(source, handler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return handler.count() == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	source.mu.Lock()
	defer source.mu.Unlock()
	assert.Equal(t, []int{0, 12, 13}, source.offsets[:3])
}

type stuckHandler struct {
	started chan struct{}
	err     chan error
}

func (h *stuckHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	close(h.started)
	<-ctx.Done()
	h.err <- ctx.Err()
	return ctx.Err()
}

func TestPoller_StuckHandlerIsBounded(t *testing.T) {
	source := &scriptedSource{batches: [][]tgbotapi.Update{{{UpdateID: 1}}}}
	handler := &stuckHandler{started: make(chan struct{}), err: make(chan error, 1)}
	p := NewPoller(source, handler, nil, WithHandlerTimeout(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	<-handler.started
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop while a handler was stuck")
	}
	assert.ErrorIs(t, <-handler.err, context.DeadlineExceeded)
}

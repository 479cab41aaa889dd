package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mfGuruBot/internal/advisor"
	"mfGuruBot/internal/finance"
	"mfGuruBot/internal/storage"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	f.sent = append(f.sent, c)
	f.mu.Unlock()
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeSender) photos() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.sent {
		if _, ok := c.(tgbotapi.PhotoConfig); ok {
			n++
		}
	}
	return n
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	f.sent = nil
	f.mu.Unlock()
}

func (f *fakeSender) last() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type memStore struct {
	sessions map[int64]storage.Session
	messages int
	logged   []loggedMessage
	schemes  []finance.Scheme
}

type loggedMessage struct {
	chatID int64
	ts     int64
	text   string
}

func newMemStore() *memStore { return &memStore{sessions: map[int64]storage.Session{}} }

func (m *memStore) LoadSession(chatID int64) (storage.Session, error) {
	if s, ok := m.sessions[chatID]; ok {
		return s, nil
	}
	return storage.Session{ChatID: chatID}, nil
}

func (m *memStore) SaveSession(s storage.Session) error {
	s.Answers = append([]string(nil), s.Answers...)
	s.UpdatedAt = time.Now()
	m.sessions[s.ChatID] = s
	return nil
}

func (m *memStore) ResetSession(chatID int64) error {
	delete(m.sessions, chatID)
	return nil
}

func (m *memStore) SaveMessage(chatID, _ int64, text string, ts int64) error {
	m.messages++
	m.logged = append(m.logged, loggedMessage{chatID: chatID, ts: ts, text: text})
	return nil
}

func (m *memStore) FetchMessages(chatID int64, since int64) ([]string, error) {
	var out []string
	for _, l := range m.logged {
		if l.chatID == chatID && l.ts >= since {
			out = append(out, l.text)
		}
	}
	return out, nil
}

func (m *memStore) SearchSchemes(query string, limit int) ([]finance.Scheme, error) {
	var out []finance.Scheme
	for _, s := range m.schemes {
		if strings.Contains(strings.ToLower(s.Name), strings.ToLower(query)) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) SchemeName(code string) (string, bool, error) {
	for _, s := range m.schemes {
		if s.Code == code {
			return s.Name, true, nil
		}
	}
	return "", false, nil
}

type fakeAdvisor struct {
	got     finance.Profile
	rec     advisor.Recommendation
	err     error
	report  advisor.FundReport
	reportE error
}

func (f *fakeAdvisor) Advise(_ context.Context, p finance.Profile) (advisor.Recommendation, error) {
	f.got = p
	if f.err != nil {
		return advisor.Recommendation{}, f.err
	}
	rec := f.rec
	rec.Profile = p
	rec.Plan = p.Plan()
	fv, err := finance.ProjectFutureValue(rec.Plan)
	if err != nil {
		return advisor.Recommendation{}, err
	}
	rec.FutureValue = fv
	return rec, nil
}

func (f *fakeAdvisor) Inspect(context.Context, string) (advisor.FundReport, error) {
	return f.report, f.reportE
}

func f64(v float64) *float64 { return &v }

func newTestHandlers() (*Handlers, *fakeSender, *memStore, *fakeAdvisor) {
	sender := &fakeSender{}
	store := newMemStore()
	adv := &fakeAdvisor{}
	h := NewHandlers(sender, store, adv, zap.NewNop())
	h.projectionChart = func(finance.ContributionPlan) ([]byte, error) { return []byte("png"), nil }
	h.navChart = func(finance.Scheme, finance.PriceSeries) ([]byte, error) { return []byte("png"), nil }
	return h, sender, store, adv
}

func msg(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID * 10},
		Date: int(time.Now().Unix()),
		Text: text,
	}
}

func TestConversationFlow(t *testing.T) {
	h, sender, store, adv := newTestHandlers()
	adv.rec = advisor.Recommendation{
		Source: advisor.SourceLive,
		Picks: []advisor.Pick{{
			Candidate: finance.Candidate{
				Scheme:     finance.Scheme{Code: "120503", Name: "Axis_ELSS"},
				Returns:    finance.ReturnsRecord{Risk: 15.2, OneYear: f64(12.5), ThreeYear: f64(14)},
				ExpensePct: 0.6,
			},
			Explanation: "• Achha return",
		}},
	}

	h.HandleMessage(msg(1, "/start"))
	texts := sender.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1], questions[stageAge])

	for _, answer := range []string{"35", "abc"} {
		h.HandleMessage(msg(1, answer))
	}
	texts = sender.texts()
	assert.Contains(t, texts[len(texts)-2], "number")
	assert.Contains(t, texts[len(texts)-1], questions[stageHorizon])
	assert.Equal(t, stageHorizon, store.sessions[1].Stage)

	h.HandleMessage(msg(1, "15 saal"))
	h.HandleMessage(msg(1, "₹5,000"))
	risk, ok := sender.last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.IsType(t, tgbotapi.ReplyKeyboardMarkup{}, risk.ReplyMarkup)

	h.HandleMessage(msg(1, "High"))
	sender.reset()
	h.HandleMessage(msg(1, "index"))

	assert.Equal(t, finance.Profile{Age: "35", Horizon: 15, MonthlySIP: 5000, Risk: finance.RiskHigh, Preference: "index"}, adv.got)
	texts = sender.texts()
	require.GreaterOrEqual(t, len(texts), 4)
	assert.Equal(t, workingNote, texts[0])
	assert.Contains(t, texts[1], "₹5,000/month × 15 years")
	assert.Contains(t, texts[1], "12% p.a.")
	assert.Contains(t, texts[2], `Axis\_ELSS`)
	assert.Contains(t, texts[2], "5Y: n/a")
	assert.NotContains(t, texts[2], "5Y: 0%")
	assert.Contains(t, texts[2], "https://groww.in/mutual-funds/scheme/120503")
	assert.Contains(t, texts[2], "https://coin.zerodha.com/mf/120503")
	assert.Contains(t, texts[len(texts)-1], disclaimer)
	assert.Equal(t, 1, sender.photos())
	assert.Equal(t, stageDone, store.sessions[1].Stage)
	assert.Equal(t, 7, store.messages)

	sender.reset()
	h.HandleMessage(msg(1, "hello again"))
	assert.Contains(t, sender.texts()[0], "/restart")
}

func TestSkipAcceptsDefaults(t *testing.T) {
	h, _, _, adv := newTestHandlers()
	h.HandleMessage(msg(2, "/start"))
	for _, a := range []string{"40", "-", "skip", "something", "kuch bhi"} {
		h.HandleMessage(msg(2, a))
	}
	assert.Equal(t, finance.DefaultHorizonYears, adv.got.Horizon)
	assert.EqualValues(t, finance.DefaultMonthlySIP, adv.got.MonthlySIP)
	assert.Equal(t, finance.RiskModerate, adv.got.Risk)
}

func TestFirstMessageWithoutStartBeginsConversation(t *testing.T) {
	h, sender, store, _ := newTestHandlers()
	h.HandleMessage(msg(3, "hi"))
	texts := sender.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1], questions[stageAge])
	assert.Empty(t, store.sessions[3].Answers)
}

func TestFallbackAndEmptyPicks(t *testing.T) {
	h, sender, _, adv := newTestHandlers()
	adv.rec = advisor.Recommendation{Source: advisor.SourceFallback}
	h.HandleMessage(msg(4, "/start"))
	for _, a := range []string{"30", "10", "10000", "Low", "-"} {
		h.HandleMessage(msg(4, a))
	}
	joined := strings.Join(sender.texts(), "\n")
	assert.Contains(t, joined, fallbackNote)
	assert.Contains(t, joined, noPicksNote)
}

func TestAdviceErrorIsReported(t *testing.T) {
	h, sender, _, adv := newTestHandlers()
	adv.err = errors.New("boom")
	h.HandleMessage(msg(5, "/start"))
	for _, a := range []string{"30", "10", "10000", "Low", "-"} {
		h.HandleMessage(msg(5, a))
	}
	texts := sender.texts()
	assert.Contains(t, texts[len(texts)-1], "gadbad")
	assert.Zero(t, sender.photos())
}

func TestSIPCommand(t *testing.T) {
	h, sender, _, _ := newTestHandlers()

	h.HandleMessage(msg(6, "/sip 10,000 10 moderate"))
	texts := sender.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "*₹2,126,594*")
	assert.Contains(t, texts[0], "Invested: ₹1,200,000")
	assert.Equal(t, 1, sender.photos())

	for _, years := range []string{"0", "61", "5000"} {
		sender.reset()
		h.HandleMessage(msg(6, "/sip 5000 "+years))
		texts := sender.texts()
		require.Len(t, texts, 1, years)
		assert.Contains(t, texts[0], "1 se 60", years)
		assert.Zero(t, sender.photos(), years)
	}
}

func TestHorizonAboveLimitIsAskedAgain(t *testing.T) {
	h, sender, store, adv := newTestHandlers()
	h.HandleMessage(msg(9, "/start"))
	h.HandleMessage(msg(9, "35"))
	h.HandleMessage(msg(9, "9999"))

	texts := sender.texts()
	assert.Contains(t, texts[len(texts)-2], "1 se 60")
	assert.Contains(t, texts[len(texts)-1], questions[stageHorizon])
	assert.Equal(t, stageHorizon, store.sessions[9].Stage)

	for _, a := range []string{"60", "5000", "High", "-"} {
		h.HandleMessage(msg(9, a))
	}
	assert.Equal(t, 60, adv.got.Horizon)
}

func TestFundCommand(t *testing.T) {
	h, sender, store, adv := newTestHandlers()
	adv.report = advisor.FundReport{
		Scheme: finance.Scheme{Code: "118998", Name: "Axis Bluechip Fund"},
		Series: finance.NewPriceSeries([]finance.NAVPoint{
			{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Price: 50},
			{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Price: 51.5},
		}),
		Insufficient: true,
	}
	h.HandleMessage(msg(7, "/fund 118998"))
	texts := sender.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "NAV 51.5 on 03 Jan 2024")
	assert.Contains(t, texts[0], "not computed")
	assert.Equal(t, 1, sender.photos())

	sender.reset()
	adv.reportE = finance.ErrNotFound
	h.HandleMessage(msg(7, "/fund 999999"))
	assert.Contains(t, sender.texts()[0], "nahi mila")

	sender.reset()
	store.schemes = []finance.Scheme{{Code: "118998", Name: "Axis Bluechip Fund"}}
	adv.reportE = errors.New("mfapi down")
	h.HandleMessage(msg(7, "/fund 118998"))
	assert.Contains(t, sender.texts()[0], "Axis Bluechip Fund (118998)")
	assert.Zero(t, sender.photos())
}

func TestFindAndUnknownCommands(t *testing.T) {
	h, sender, store, _ := newTestHandlers()
	store.schemes = []finance.Scheme{{Code: "122639", Name: "Parag Parikh Flexi Cap Fund"}}

	h.HandleMessage(msg(8, "/find parag"))
	assert.Contains(t, sender.texts()[0], "122639")

	sender.reset()
	h.HandleMessage(msg(8, "/stock AAPL"))
	assert.Contains(t, sender.texts()[0], "/help")

	sender.reset()
	h.HandleMessage(msg(8, "/help"))
	assert.Equal(t, helpText, sender.texts()[0])
}

func TestProfileFromAnswers(t *testing.T) {
	p, err := profileFromAnswers([]string{"28", "", "25,000", "mod", "tax"})
	require.NoError(t, err)
	assert.Equal(t, 10, p.Horizon)
	assert.EqualValues(t, 25000, p.MonthlySIP)
	assert.Equal(t, finance.RiskModerate, p.Risk)
	assert.Equal(t, decimal.RequireFromString("10.5").String(), p.Plan().AnnualRatePercent.String())

	_, err = profileFromAnswers([]string{"28", "ten"})
	assert.ErrorIs(t, err, finance.ErrInvalidInput)
}

func TestStatusRecapsRecentAnswers(t *testing.T) {
	h, sender, store, _ := newTestHandlers()
	store.logged = append(store.logged, loggedMessage{chatID: 10, ts: time.Now().Add(-48 * time.Hour).Unix(), text: "stale"})
	h.HandleMessage(msg(10, "/start"))
	for _, a := range []string{"31", "12", "a", "b", "c", "d"} {
		h.HandleMessage(msg(10, a))
	}

	sender.reset()
	h.HandleMessage(msg(10, "/status"))
	texts := sender.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Aapke haal ke jawab:\n• 12\n• a\n• b\n• c\n• d", texts[0])
	assert.Contains(t, texts[1], questions[stageSIP])

	sender.reset()
	h.HandleMessage(msg(11, "/status"))
	texts = sender.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], questions[stageAge])
}

func TestForgetIdleChats(t *testing.T) {
	h, _, _, _ := newTestHandlers()
	h.HandleMessage(msg(1, "/help"))
	h.HandleMessage(msg(2, "/help"))

	assert.Zero(t, h.ForgetIdleChats(time.Now().Add(-time.Hour)))

	busy := h.lockChat(2)
	assert.Equal(t, 1, h.ForgetIdleChats(time.Now().Add(time.Hour)))
	_, ok := h.locks.Load(int64(1))
	assert.False(t, ok)
	_, ok = h.locks.Load(int64(2))
	assert.True(t, ok, "a chat with an update in flight keeps its lock")
	busy.mu.Unlock()

	assert.Equal(t, 1, h.ForgetIdleChats(time.Now().Add(time.Hour)))
	h.HandleMessage(msg(1, "/help"))
	_, ok = h.locks.Load(int64(1))
	assert.True(t, ok)
}

func TestLockChatRetriesAfterEviction(t *testing.T) {
	h, _, _, _ := newTestHandlers()
	first := h.lockChat(5)

	acquired := make(chan *chatState)
	go func() { acquired <- h.lockChat(5) }()

	// evict while the second caller waits on the old state
	h.locks.Delete(int64(5))
	first.mu.Unlock()

	second := <-acquired
	assert.NotSame(t, first, second)
	cur, ok := h.locks.Load(int64(5))
	require.True(t, ok)
	assert.Same(t, second, cur)
	second.mu.Unlock()
}

package telegram

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mfGuruBot/internal/advisor"
	"mfGuruBot/internal/finance"
	"mfGuruBot/internal/logger"
	"mfGuruBot/internal/storage"
)

var (
	// /start, /restart
	reStart  = regexp.MustCompile(`^/(start|restart)(?:@[\w_]+)?$`)
	reHelp   = regexp.MustCompile(`^/help(?:@[\w_]+)?$`)
	reStatus = regexp.MustCompile(`^/status(?:@[\w_]+)?$`)
	// /sip AMOUNT YEARS [low|moderate|high]
	reSIP = regexp.MustCompile(`(?i)^/sip(?:@[\w_]+)?\s+([₹\w,.]+)\s+(\d+)(?:\s+(\w+))?$`)
	// /fund CODE
	reFund = regexp.MustCompile(`^/fund(?:@[\w_]+)?\s+(\d{3,7})$`)
	// /find TEXT
	reFind = regexp.MustCompile(`^/find(?:@[\w_]+)?\s+(.{2,60})$`)
)

const (
	adviceTimeout = 90 * time.Second
	fundTimeout   = 30 * time.Second
	findLimit     = 15
	recapWindow   = 24 * time.Hour
	recapLimit    = 5
)

// Sender is the part of the Bot API the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SessionStore interface {
	LoadSession(chatID int64) (storage.Session, error)
	SaveSession(sess storage.Session) error
	ResetSession(chatID int64) error
	SaveMessage(chatID, userID int64, text string, ts int64) error
	SearchSchemes(query string, limit int) ([]finance.Scheme, error)
	SchemeName(code string) (string, bool, error)
	FetchMessages(chatID int64, since int64) ([]string, error)
}

type Advisor interface {
	Advise(ctx context.Context, p finance.Profile) (advisor.Recommendation, error)
	Inspect(ctx context.Context, code string) (advisor.FundReport, error)
}

type Handlers struct {
	api     Sender
	store   SessionStore
	advisor Advisor
	logger  *zap.Logger

	adviceTimeout   time.Duration
	projectionChart func(finance.ContributionPlan) ([]byte, error)
	navChart        func(finance.Scheme, finance.PriceSeries) ([]byte, error)

	// chat locks serialize updates of one chat so session stages never race.
	locks sync.Map // int64 -> *chatState
}

type chatState struct {
	mu       sync.Mutex
	lastSeen atomic.Int64
}

func NewHandlers(api Sender, store SessionStore, adv Advisor, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		api:             api,
		store:           store,
		advisor:         adv,
		logger:          log.With(zap.String("component", "telegram")),
		adviceTimeout:   adviceTimeout,
		projectionChart: finance.MakeProjectionChart,
		navChart:        finance.MakeNAVChart,
	}
}

// WithAdviceTimeout bounds one full recommendation run.
func (h *Handlers) WithAdviceTimeout(d time.Duration) *Handlers {
	if d > 0 {
		h.adviceTimeout = d
	}
	return h
}

// lockChat acquires the chat's lock. A state evicted by ForgetIdleChats while
// this goroutine waited on it is discarded and the lookup retried.
func (h *Handlers) lockChat(chatID int64) *chatState {
	for {
		v, _ := h.locks.LoadOrStore(chatID, &chatState{})
		st := v.(*chatState)
		st.mu.Lock()
		if cur, ok := h.locks.Load(chatID); ok && cur == st {
			st.lastSeen.Store(time.Now().UnixNano())
			return st
		}
		st.mu.Unlock()
	}
}

// ForgetIdleChats drops the locks of chats last seen before the cutoff. Chats
// with an update in flight are kept. It returns the number of evicted chats.
func (h *Handlers) ForgetIdleChats(before time.Time) int {
	cutoff := before.UnixNano()
	n := 0
	h.locks.Range(func(k, v any) bool {
		st := v.(*chatState)
		if st.lastSeen.Load() >= cutoff || !st.mu.TryLock() {
			return true
		}
		if h.locks.CompareAndDelete(k, st) {
			n++
		}
		st.mu.Unlock()
		return true
	})
	return n
}

func (h *Handlers) HandleMessage(m *tgbotapi.Message) {
	if m == nil || m.Chat == nil {
		return
	}
	chatID := m.Chat.ID
	st := h.lockChat(chatID)
	defer st.mu.Unlock()

	log := logger.WithChat(h.logger, chatID)
	txt := strings.TrimSpace(m.Text)
	if txt != "" {
		var userID int64
		if m.From != nil {
			userID = m.From.ID
		}
		if err := h.store.SaveMessage(chatID, userID, txt, int64(m.Date)); err != nil {
			log.Warn("save message failed", zap.Error(err))
		}
	}

	switch {
	case reStart.MatchString(txt):
		h.handleStart(chatID)

	case reHelp.MatchString(txt):
		h.reply(chatID, helpText)

	case reStatus.MatchString(txt):
		h.handleStatus(chatID)

	case reSIP.MatchString(txt):
		g := reSIP.FindStringSubmatch(txt)
		h.handleSIP(chatID, g[1], g[2], g[3])

	case reFund.MatchString(txt):
		g := reFund.FindStringSubmatch(txt)
		h.handleFund(chatID, g[1])

	case reFind.MatchString(txt):
		g := reFind.FindStringSubmatch(txt)
		h.handleFind(chatID, strings.TrimSpace(g[1]))

	case strings.HasPrefix(txt, "/"):
		h.reply(chatID, "Ye command samajh nahi aaya. /help dekhiye.")

	case txt == "":
		// stickers, photos and other non-text updates are ignored

	default:
		h.handleAnswer(chatID, txt)
	}
}

func (h *Handlers) handleStart(chatID int64) {
	if err := h.store.ResetSession(chatID); err != nil {
		h.fail(chatID, "reset session", err)
		return
	}
	if err := h.store.SaveSession(storage.Session{ChatID: chatID, Stage: stageAge}); err != nil {
		h.fail(chatID, "save session", err)
		return
	}
	h.reply(chatID, "Namaste! Main MF Guru hoon. 5 chhote sawaal, phir aapke liye funds.")
	h.send(questionMessage(chatID, stageAge))
}

func (h *Handlers) handleStatus(chatID int64) {
	sess, err := h.store.LoadSession(chatID)
	if err != nil {
		h.fail(chatID, "load session", err)
		return
	}
	if recap := h.recentRecap(chatID); recap != "" {
		h.reply(chatID, recap)
	}
	if sess.Stage >= stageDone {
		h.reply(chatID, "Aapke saare jawab mil chuke hain. /restart se naya plan banaiye.")
		return
	}
	h.send(questionMessage(chatID, sess.Stage))
}

// recentRecap lists the chat's latest non-command messages from the audit log.
func (h *Handlers) recentRecap(chatID int64) string {
	texts, err := h.store.FetchMessages(chatID, time.Now().Add(-recapWindow).Unix())
	if err != nil {
		logger.WithChat(h.logger, chatID).Warn("fetch messages failed", zap.Error(err))
		return ""
	}
	var answers []string
	for _, t := range texts {
		if !strings.HasPrefix(t, "/") {
			answers = append(answers, t)
		}
	}
	if len(answers) > recapLimit {
		answers = answers[len(answers)-recapLimit:]
	}
	return recapMessage(answers)
}

func (h *Handlers) handleAnswer(chatID int64, txt string) {
	sess, err := h.store.LoadSession(chatID)
	if err != nil {
		h.fail(chatID, "load session", err)
		return
	}
	if sess.UpdatedAt.IsZero() {
		// first contact without /start
		h.handleStart(chatID)
		return
	}
	if sess.Stage >= stageDone {
		h.reply(chatID, "Recommendations bhej di gayi hain. "+restartNote)
		return
	}

	answer := normalizeAnswer(txt)
	if msg, ok := validateAnswer(sess.Stage, answer); !ok {
		h.reply(chatID, msg)
		h.send(questionMessage(chatID, sess.Stage))
		return
	}

	sess.Answers = append(sess.Answers[:min(sess.Stage, len(sess.Answers))], answer)
	sess.Stage++
	if err := h.store.SaveSession(sess); err != nil {
		h.fail(chatID, "save session", err)
		return
	}
	if sess.Stage < stageDone {
		h.send(questionMessage(chatID, sess.Stage))
		return
	}
	h.runAdvice(chatID, sess.Answers)
}

func (h *Handlers) runAdvice(chatID int64, answers []string) {
	log := logger.WithChat(h.logger, chatID)
	profile, err := profileFromAnswers(answers)
	if err != nil {
		h.fail(chatID, "build profile", err)
		return
	}

	working := tgbotapi.NewMessage(chatID, workingNote)
	working.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	h.send(working)

	ctx, cancel := context.WithTimeout(context.Background(), h.adviceTimeout)
	defer cancel()
	rec, err := h.advisor.Advise(ctx, profile)
	if errors.Is(err, finance.ErrInvalidInput) {
		h.reply(chatID, "Horizon aur SIP dono positive hone chahiye. /restart karke dobara try kijiye.")
		return
	}
	if err != nil {
		h.fail(chatID, "advise", err)
		return
	}
	log.Info("sending recommendation", zap.String("run_id", rec.RunID), zap.Int("picks", len(rec.Picks)),
		zap.String("source", string(rec.Source)))

	h.markdown(chatID, futureValueLine(rec))
	if rec.Source == advisor.SourceFallback {
		h.markdown(chatID, fallbackNote)
	}
	if len(rec.Picks) == 0 {
		h.reply(chatID, noPicksNote)
	}
	for i, p := range rec.Picks {
		h.markdown(chatID, pickMessage(i+1, p))
	}

	if img, err := h.projectionChart(rec.Plan); err != nil {
		log.Warn("projection chart failed", zap.Error(err))
	} else {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "sip_projection.png", Bytes: img})
		photo.Caption = fmt.Sprintf("SIP projection • %d years • %s%% p.a.", rec.Plan.Years, rec.Plan.AnnualRatePercent)
		h.send(photo)
	}
	h.reply(chatID, disclaimer+"\n\n"+restartNote)
}

func (h *Handlers) handleSIP(chatID int64, amountText, yearsText, tierText string) {
	amount, err := finance.ParseContribution(amountText)
	if err != nil {
		h.reply(chatID, "Amount samajh nahi aaya. Example: /sip 5000 15 high")
		return
	}
	years, err := finance.ParseHorizon(yearsText)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Years 1 se %d ke beech likhiye. Example: /sip 5000 15 high", finance.MaxHorizonYears))
		return
	}
	tier := finance.ParseRiskTier(tierText)
	plan := finance.ContributionPlan{
		MonthlyAmount:     decimal.NewFromInt(amount),
		Years:             years,
		AnnualRatePercent: finance.RateFor(tier),
	}
	fv, err := finance.ProjectFutureValue(plan)
	if errors.Is(err, finance.ErrInvalidInput) {
		h.reply(chatID, "Amount aur years dono positive hone chahiye.")
		return
	}
	if err != nil {
		h.fail(chatID, "project", err)
		return
	}
	rec := advisor.Recommendation{Plan: plan, FutureValue: fv}
	invested := plan.MonthlyAmount.Mul(decimal.NewFromInt(int64(plan.Years * 12)))
	h.markdown(chatID, futureValueLine(rec)+fmt.Sprintf("\nInvested: %s • %s risk", rupees(invested), tier))

	img, err := h.projectionChart(plan)
	if err != nil {
		logger.WithChat(h.logger, chatID).Warn("projection chart failed", zap.Error(err))
		return
	}
	h.send(tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "sip_projection.png", Bytes: img}))
}

func (h *Handlers) handleFund(chatID int64, code string) {
	ctx, cancel := context.WithTimeout(context.Background(), fundTimeout)
	defer cancel()
	rep, err := h.advisor.Inspect(ctx, code)
	if errors.Is(err, finance.ErrNotFound) {
		h.reply(chatID, fmt.Sprintf("Scheme %s nahi mila. /find se code dhoondiye.", code))
		return
	}
	if err != nil {
		label := code
		if name, ok, _ := h.store.SchemeName(code); ok {
			label = name + " (" + code + ")"
		}
		logger.WithChat(h.logger, chatID).Warn("inspect failed", zap.String("code", code), zap.Error(err))
		h.reply(chatID, fmt.Sprintf("%s ka data abhi nahi mila, thodi der baad try kijiye.", label))
		return
	}
	h.markdown(chatID, fundReportMessage(rep))

	img, err := h.navChart(rep.Scheme, rep.Series)
	if err != nil {
		logger.WithChat(h.logger, chatID).Warn("nav chart failed", zap.String("code", code), zap.Error(err))
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: code + "_nav.png", Bytes: img})
	photo.Caption = rep.Scheme.Name + " • NAV"
	h.send(photo)
}

func (h *Handlers) handleFind(chatID int64, query string) {
	found, err := h.store.SearchSchemes(query, findLimit)
	if err != nil {
		h.fail(chatID, "search schemes", err)
		return
	}
	h.reply(chatID, schemeListMessage(query, found))
}

func (h *Handlers) fail(chatID int64, op string, err error) {
	logger.WithChat(h.logger, chatID).Error(op+" failed", zap.Error(err))
	h.reply(chatID, "Kuch gadbad ho gayi, thodi der baad try kijiye.")
}

func (h *Handlers) reply(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}

func (h *Handlers) markdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	h.send(msg)
}

func (h *Handlers) send(c tgbotapi.Chattable) {
	if _, err := h.api.Send(c); err != nil {
		h.logger.Warn("telegram send failed", zap.Error(err))
	}
}

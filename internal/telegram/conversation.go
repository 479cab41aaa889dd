package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mfGuruBot/internal/finance"
)

const (
	stageAge = iota
	stageHorizon
	stageSIP
	stageRisk
	stagePreference
	stageDone
)

var questions = [...]string{
	"Aapki umar kitni hai? (jaise 35)",
	"Kitne saal ke liye invest karna hai? (default 10)",
	"Har mahine kitna SIP kar sakte hain? (jaise 10,000)",
	"Risk level? (Low / Moderate / High)",
	"Koi special preference? (Tax saving / Index / kuch bhi)",
}

// skipWords are replies that accept a question's default.
var skipWords = map[string]bool{"-": true, "skip": true, "default": true}

func normalizeAnswer(text string) string {
	t := strings.TrimSpace(text)
	if skipWords[strings.ToLower(t)] {
		return ""
	}
	return t
}

// validateAnswer checks one reply for the given stage. The returned message is
// sent back to the user and the question is asked again.
func validateAnswer(stage int, answer string) (string, bool) {
	switch stage {
	case stageHorizon:
		if _, err := finance.ParseHorizon(answer); err != nil {
			return fmt.Sprintf("Saal 1 se %d ke beech ek number mein likhiye, jaise 10.", finance.MaxHorizonYears), false
		}
	case stageSIP:
		if _, err := finance.ParseContribution(answer); err != nil {
			return "SIP amount ek positive number hona chahiye, jaise 5000.", false
		}
	}
	return "", true
}

// profileFromAnswers builds a Profile from the stored replies. Missing answers
// take the same defaults as blank ones.
func profileFromAnswers(answers []string) (finance.Profile, error) {
	get := func(i int) string {
		if i < len(answers) {
			return answers[i]
		}
		return ""
	}
	horizon, err := finance.ParseHorizon(get(stageHorizon))
	if err != nil {
		return finance.Profile{}, fmt.Errorf("horizon: %w", err)
	}
	sip, err := finance.ParseContribution(get(stageSIP))
	if err != nil {
		return finance.Profile{}, fmt.Errorf("sip: %w", err)
	}
	return finance.Profile{
		Age:        get(stageAge),
		Horizon:    horizon,
		MonthlySIP: sip,
		Risk:       finance.ParseRiskTier(get(stageRisk)),
		Preference: get(stagePreference),
	}, nil
}

// questionMessage renders question i; the risk question carries a reply keyboard.
func questionMessage(chatID int64, i int) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("*%d/%d* %s", i+1, len(questions), questions[i]))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if i == stageRisk {
		kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(string(finance.RiskLow)),
			tgbotapi.NewKeyboardButton(string(finance.RiskModerate)),
			tgbotapi.NewKeyboardButton(string(finance.RiskHigh)),
		))
		kb.OneTimeKeyboard = true
		kb.ResizeKeyboard = true
		msg.ReplyMarkup = kb
	} else {
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}
	return msg
}

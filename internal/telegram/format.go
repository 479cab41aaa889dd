package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"mfGuruBot/internal/advisor"
	"mfGuruBot/internal/finance"
)

const (
	disclaimer   = "This is for education only • Not SEBI-registered advice • Past performance ≠ future"
	workingNote  = "Ek minute... aapke liye best funds nikal raha hoon!"
	fallbackNote = "_Live NAV data abhi nahi mil raha, isliye saved fund data dikha raha hoon._"
	noPicksNote  = "Aapke risk level ke liye abhi koi fund filter se pass nahi hua. /restart karke doosra risk level try kijiye."
	restartNote  = "Naya investor? /restart"
)

func md(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s) }

// rupees formats a whole-rupee amount with thousands separators.
func rupees(d decimal.Decimal) string {
	return "₹" + humanize.Comma(d.Round(0).IntPart())
}

// pct prints an optional percentage; absent horizons are "n/a", never 0%.
func pct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + "%"
}

func futureValueLine(rec advisor.Recommendation) string {
	return fmt.Sprintf("%s/month × %d years ≈ *%s* ban sakta hai! (assumed %s%% p.a.)",
		rupees(rec.Plan.MonthlyAmount), rec.Plan.Years, rupees(rec.FutureValue), rec.Plan.AnnualRatePercent.String())
}

func growwURL(code string) string { return "https://groww.in/mutual-funds/scheme/" + code }
func coinURL(code string) string  { return "https://coin.zerodha.com/mf/" + code }

func pickMessage(rank int, p advisor.Pick) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d. %s* | 5Y: %s | Risk: %s%%\n", rank, md(p.Name), pct(p.Returns.FiveYear),
		strconv.FormatFloat(p.Returns.Risk, 'f', -1, 64))
	fmt.Fprintf(&b, "1Y: %s • 3Y: %s • 5Y: %s • Expense: ~%s%%\n\n",
		pct(p.Returns.OneYear), pct(p.Returns.ThreeYear), pct(p.Returns.FiveYear),
		strconv.FormatFloat(p.ExpensePct, 'f', -1, 64))
	b.WriteString("*Kyun perfect hai aapke liye:*\n")
	b.WriteString(md(p.Explanation))
	fmt.Fprintf(&b, "\n\n[Groww →](%s) | [Zerodha Coin →](%s)", growwURL(p.Code), coinURL(p.Code))
	return b.String()
}

func fundReportMessage(rep advisor.FundReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* (%s)\n", md(rep.Scheme.Name), rep.Scheme.Code)
	if rep.Series.Len() > 0 {
		last := rep.Series.Points()[rep.Series.Len()-1]
		fmt.Fprintf(&b, "NAV %s on %s • %s observations\n",
			strconv.FormatFloat(last.Price, 'f', -1, 64), last.Date.Format("02 Jan 2006"), humanize.Comma(int64(rep.Series.Len())))
	}
	if rep.Insufficient {
		fmt.Fprintf(&b, "History is shorter than %s trading days, so returns and risk are not computed.",
			humanize.Comma(finance.MinObservations))
		return b.String()
	}
	fmt.Fprintf(&b, "1Y: %s • 3Y: %s • 5Y: %s • Risk: %s%%",
		pct(rep.Returns.OneYear), pct(rep.Returns.ThreeYear), pct(rep.Returns.FiveYear),
		strconv.FormatFloat(rep.Returns.Risk, 'f', -1, 64))
	fmt.Fprintf(&b, "\n\n[Groww →](%s) | [Zerodha Coin →](%s)", growwURL(rep.Scheme.Code), coinURL(rep.Scheme.Code))
	return b.String()
}

func schemeListMessage(query string, schemes []finance.Scheme) string {
	if len(schemes) == 0 {
		return fmt.Sprintf("No scheme matches %q. The catalogue refreshes every few hours.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Schemes matching %q:\n", query)
	for _, s := range schemes {
		fmt.Fprintf(&b, "%s  %s\n", s.Code, s.Name)
	}
	b.WriteString("\nUse /fund CODE for returns and a NAV chart.")
	return b.String()
}

func recapMessage(answers []string) string {
	if len(answers) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Aapke haal ke jawab:")
	for _, a := range answers {
		b.WriteString("\n• " + a)
	}
	return b.String()
}

const helpText = "MF Guru: free mutual fund helper (education only)\n\n" +
	"- /start - Answer 5 quick questions and get fund ideas\n" +
	"- /restart - Clear your answers and start again\n" +
	"- /status - Show which question you are on\n" +
	"- /sip AMOUNT YEARS [low|moderate|high] - Project a monthly SIP\n" +
	"- /fund CODE - Returns, risk and NAV chart of any scheme\n" +
	"- /find TEXT - Search scheme codes by name\n" +
	"\nReply - or skip to accept a question's default. Data: mfapi.in"

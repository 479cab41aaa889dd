package openai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"mfGuruBot/internal/finance"
)

const (
	DefaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 300
	maxReplyLen      = 1200
)

const systemPrompt = "You explain Indian mutual funds to first-time investors in simple Hinglish. " +
	"Reply with exactly 4 short bullet points starting with •. No links, no headings, no disclaimers."

type Explainer struct {
	cli       oa.Client
	model     string
	maxTokens int64
}

// NewExplainer builds a chat-completion client. Extra request options are
// appended after the API key (base URL overrides, retries).
func NewExplainer(apiKey, model string, maxTokens int64, opts ...option.RequestOption) *Explainer {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	client := oa.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Explainer{cli: client, model: model, maxTokens: maxTokens}
}

// Explain asks the model why fundName suits the investor described by p.
func (e *Explainer) Explain(ctx context.Context, fundName string, p finance.Profile) (string, error) {
	resp, err := e.cli.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model: oa.ChatModel(e.model),
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(systemPrompt),
			oa.UserMessage(BuildPrompt(fundName, p)),
		},
		MaxTokens: oa.Int(e.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	out := sanitizeReply(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("empty response from OpenAI")
	}
	return out, nil
}

// BuildPrompt renders the per-fund user prompt.
func BuildPrompt(fundName string, p finance.Profile) string {
	age := strings.TrimSpace(p.Age)
	if age == "" {
		age = "an adult"
	} else {
		age = "a " + age + " year old"
	}
	return fmt.Sprintf("Explain in simple Hinglish why %s is good for %s with %s risk who invests ₹%s/month for %d years. 4 short bullets only.",
		fundName, age, strings.ToLower(string(p.Risk)), humanize.Comma(p.MonthlySIP), p.Horizon)
}

var (
	reMarkdownImg = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`) // ![alt](url)
	reURL         = regexp.MustCompile(`https?://\S+`)
	reBlankLines  = regexp.MustCompile(`\n{3,}`)
)

// sanitizeReply strips links and media references and caps the length.
func sanitizeReply(text string) string {
	text = reMarkdownImg.ReplaceAllString(text, "")
	text = reURL.ReplaceAllString(text, "")
	text = reBlankLines.ReplaceAllString(strings.TrimSpace(text), "\n\n")
	if r := []rune(text); len(r) > maxReplyLen {
		text = string(r[:maxReplyLen])
	}
	return text
}

// Package llm generates consultant replies through an OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/infohelper/euwork-bot/core/config"
	"github.com/infohelper/euwork-bot/core/logger"
	"github.com/infohelper/euwork-bot/core/telegram/netutil"
	"github.com/infohelper/euwork-bot/core/telegram/state"
)

// ErrEmptyReply is returned when the API answered without usable text.
var ErrEmptyReply = errors.New("llm: empty reply")

// Client wraps go-openai with the bot's prompt layout.
type Client struct {
	api         *openai.Client
	model       string
	instruction string
	temperature float32
	timeout     time.Duration
}

// New builds a client from cfg. httpClient may be nil.
func New(cfg config.OpenAIConfig, httpClient *http.Client) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		oc.BaseURL = strings.TrimRight(base, "/")
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultOpenAITimeout
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = config.DefaultOpenAIModel
	}
	temperature := cfg.SamplingTemperature()
	if temperature == 0 {
		// go-openai omits a zero temperature from the request body.
		temperature = math.SmallestNonzeroFloat32
	}
	return &Client{
		api:         openai.NewClientWithConfig(oc),
		model:       model,
		instruction: cfg.Instruction,
		temperature: temperature,
		timeout:     timeout,
	}
}

// Model returns the configured model id.
func (c *Client) Model() string { return c.model }

// Generate asks the model to answer message for the given profile and its memory.
func (c *Client) Generate(ctx context.Context, p state.Profile, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    BuildMessages(c.instruction, p, message),
		Temperature: c.temperature,
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	took := time.Since(start)
	if err != nil {
		logger.LLM.LogAttrs(ctx, slog.LevelWarn, "",
			slog.String("event", "llm.generate"),
			slog.String("status", "fail"),
			slog.String("model", c.model),
			slog.Int("history", len(p.History)),
			slog.String("err", err.Error()),
			slog.String("err_kind", netutil.Classify(err)),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return "", fmt.Errorf("chat completion: %w", err)
	}

	reply := firstContent(resp)
	if reply == "" {
		logger.LLM.LogAttrs(ctx, slog.LevelWarn, "",
			slog.String("event", "llm.generate"),
			slog.String("status", "fail"),
			slog.String("model", c.model),
			slog.Int("choices", len(resp.Choices)),
			slog.String("err", ErrEmptyReply.Error()),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return "", ErrEmptyReply
	}

	logger.LLM.LogAttrs(ctx, slog.LevelInfo, "",
		slog.String("event", "llm.generate"),
		slog.String("status", "ok"),
		slog.String("model", c.model),
		slog.Int("history", len(p.History)),
		slog.Int("tokens", resp.Usage.TotalTokens),
		slog.Int("reply_len", len([]rune(reply))),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return reply, nil
}

func firstContent(resp openai.ChatCompletionResponse) string {
	for _, choice := range resp.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			return text
		}
	}
	return ""
}

// BuildMessages lays out the conversation: instructions with the profile, memory, then the new message.
func BuildMessages(instruction string, p state.Profile, message string) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(p.History)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt(instruction, p),
	})
	for _, turn := range p.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == state.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	return append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})
}

func systemPrompt(instruction string, p state.Profile) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(instruction))
	b.WriteString("\n\nПрофиль пользователя:\n")
	fmt.Fprintf(&b, "- Возраст: %s\n", orUnknown(p.Age))
	fmt.Fprintf(&b, "- Страна пребывания: %s\n", orUnknown(p.Country))
	fmt.Fprintf(&b, "- Гражданство: %s", orUnknown(p.Citizenship))
	return b.String()
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "не указано"
	}
	return s
}

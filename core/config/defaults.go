package config

import (
	"strings"
	"time"
)

// Defaults applied to zero-valued fields after file and environment are read.
const (
	DefaultPort           = 8080
	DefaultWebhookPath    = "/"
	DefaultRestartCommand = "/start"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultOpenAITimeout  = 30 * time.Second
	DefaultTemperature    = 0.7
	DefaultHistoryLimit   = 10
	DefaultDedupeCapacity = 5000
	DefaultDBConnections  = 5
)

// DefaultInstruction is the system prompt used when none is configured.
const DefaultInstruction = `Ты — консультант по легальному трудоустройству в странах Евросоюза.
Отвечай коротко и по делу, на языке пользователя.
Учитывай возраст, страну пребывания и гражданство пользователя: от них зависят визы, разрешения на работу и доступные программы.
Если данных не хватает для ответа, задай один уточняющий вопрос.`

// DefaultMessages holds the built-in user-facing texts.
var DefaultMessages = MessagesConfig{
	Welcome: "Привет! 👋\nНапиши, пожалуйста, возраст, страну и гражданство одним сообщением.\n\n" +
		"Например:\n25, Poland, Uzbekistan\n\nИли просто отвечай на мои вопросы.",
	AskAge:         "Сколько тебе лет?",
	AskCountry:     "В какой стране ты сейчас находишься?",
	AskCitizenship: "Какое у тебя гражданство?",
	Fallback: "Не получилось подготовить ответ 🙏\n" +
		"Пожалуйста, отправь ещё раз возраст, страну и гражданство, например:\n25, Poland, Uzbekistan",
	NotAuthorized: "Команда доступна только администратору.",
}

// ApplyDefaults fills zero-valued optional fields.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Webhook.Port == 0 && !strings.EqualFold(strings.TrimSpace(cfg.Telegram.RunMode), RunModeLongpoll) {
		cfg.Webhook.Port = DefaultPort
	}
	if strings.TrimSpace(cfg.Webhook.Path) == "" {
		cfg.Webhook.Path = DefaultWebhookPath
	}
	if strings.TrimSpace(cfg.Telegram.RestartCommand) == "" {
		cfg.Telegram.RestartCommand = DefaultRestartCommand
	}

	if strings.TrimSpace(cfg.OpenAI.Model) == "" {
		cfg.OpenAI.Model = DefaultOpenAIModel
	}
	if cfg.OpenAI.Timeout == 0 {
		cfg.OpenAI.Timeout = DefaultOpenAITimeout
	}
	if cfg.OpenAI.Temperature == nil {
		t := float32(DefaultTemperature)
		cfg.OpenAI.Temperature = &t
	}
	if cfg.OpenAI.HistoryLimit == nil {
		n := DefaultHistoryLimit
		cfg.OpenAI.HistoryLimit = &n
	}
	if strings.TrimSpace(cfg.OpenAI.Instruction) == "" {
		cfg.OpenAI.Instruction = DefaultInstruction
	}

	m := &cfg.Messages
	setDefault(&m.Welcome, DefaultMessages.Welcome)
	setDefault(&m.AskAge, DefaultMessages.AskAge)
	setDefault(&m.AskCountry, DefaultMessages.AskCountry)
	setDefault(&m.AskCitizenship, DefaultMessages.AskCitizenship)
	setDefault(&m.Fallback, DefaultMessages.Fallback)
	setDefault(&m.NotAuthorized, DefaultMessages.NotAuthorized)

	if cfg.Dedupe.Capacity == 0 {
		cfg.Dedupe.Capacity = DefaultDedupeCapacity
	}
	if cfg.Storage.Database.MaxConnections == 0 {
		cfg.Storage.Database.MaxConnections = DefaultDBConnections
	}
	if strings.TrimSpace(cfg.Storage.Database.SSLMode) == "" {
		cfg.Storage.Database.SSLMode = "disable"
	}
	if strings.TrimSpace(cfg.Storage.Database.Port) == "" {
		cfg.Storage.Database.Port = "5432"
	}
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

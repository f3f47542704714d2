// Package env loads the gateway's process configuration from its
// recognized environment variables. It follows the teacher module's
// options-with-defaults shape (callsystem.options, transport.options)
// but for whole-process settings instead of a single provider.
package env

import (
	"os"
	"strconv"
	"time"
)

// Settings is the fully-resolved process configuration.
type Settings struct {
	OpenAIAPIKey       string
	OpenAIRealtimeModel string

	DefaultVoice string
	MaleVoice    string
	FemaleVoice  string

	GoogleConfigURL string
	ConfigTTL       time.Duration

	IdleHangupTimeout time.Duration
	IdleSendGoodbye   bool
	IdleGoodbyeLine   string

	NumberSilenceGrace time.Duration
	NumberMinDigits    int

	AutoDNCEnable        bool
	AutoDNCOnCNAM        bool
	AutoDNCOnlyOnPhrase  bool
	AutoDNCDigits        string
	AutoDNCGapMS         int
	AutoPressConfidence  float64
	AutoPressRateLimit   time.Duration
	DNCHangupAfter       time.Duration
	DNCSayLine           string

	SessionErrorLine string

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioOutboundFrom string
	WebhookURL        string

	TelegramBotToken  string
	TelegramChatID    string
	TelegramTZ        string

	TelegramOutboundBotToken       string
	TelegramOutboundChatID         string
	TelegramOutboundAllowedChatID  string
	TelegramOutboundWebhookPath    string
	TelegramOutboundWebhookSecret  string

	OutboundCodeTTL time.Duration

	Port string
}

// Load resolves Settings from os.Getenv, applying documented defaults
// where a key is unset.
func Load() Settings {
	return Settings{
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIRealtimeModel: getOr("OPENAI_REALTIME_MODEL", "gpt-realtime"),

		DefaultVoice: getOr("DEFAULT_VOICE", "trinity"),
		MaleVoice:    getOr("MALE_VOICE", "ballad"),
		FemaleVoice:  getOr("FEMALE_VOICE", "shimmer"),

		GoogleConfigURL: os.Getenv("GOOGLE_CONFIG_URL"),
		ConfigTTL:       getDurationMS("CONFIG_TTL_MS", 20*time.Second),

		IdleHangupTimeout: getDurationSecs("IDLE_HANGUP_SECS", 180*time.Second),
		IdleSendGoodbye:   getBool("IDLE_SEND_GOODBYE", true),
		IdleGoodbyeLine:   getOr("IDLE_GOODBYE_LINE", "I haven't heard from you in a little while, so I'll let you go now. Goodbye."),

		NumberSilenceGrace: getDurationMS("NUMBER_SILENCE_GRACE_MS", 2500*time.Millisecond),
		NumberMinDigits:    getInt("NUMBER_MIN_DIGITS", 10),

		AutoDNCEnable:       getBool("AUTO_DNC_ENABLE", true),
		AutoDNCOnCNAM:       getBool("AUTO_DNC_ON_CNAM", true),
		AutoDNCOnlyOnPhrase: getBool("AUTO_DNC_ONLY_ON_PHRASE", false),
		AutoDNCDigits:       getOr("AUTO_DNC_DIGITS", "9,8"),
		AutoDNCGapMS:        getInt("AUTO_DNC_GAP_MS", 700),
		AutoPressConfidence: getFloat("AUTO_PRESS_CONFIDENCE", 0.90),
		AutoPressRateLimit:  getDurationSecs("AUTO_PRESS_RATE_LIMIT_SECS", 6*time.Hour),
		DNCHangupAfter:      getDurationMS("DNC_HANGUP_AFTER", 1500*time.Millisecond),
		DNCSayLine:          getOr("DNC_SAY_LINE", "You have been removed from our call list. Goodbye."),

		SessionErrorLine: getOr("SESSION_ERROR_LINE", "Sorry, I'm having trouble connecting right now. Please try again shortly. Goodbye."),

		TwilioAccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioOutboundFrom: os.Getenv("TWILIO_OUTBOUND_FROM"),
		WebhookURL:         os.Getenv("WEBHOOK_URL"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		TelegramTZ:       getOr("TELEGRAM_TZ", "UTC"),

		TelegramOutboundBotToken:      os.Getenv("TELEGRAM_OUTBOUND_BOT_TOKEN"),
		TelegramOutboundChatID:        os.Getenv("TELEGRAM_OUTBOUND_CHAT_ID"),
		TelegramOutboundAllowedChatID: os.Getenv("TELEGRAM_OUTBOUND_ALLOWED_CHAT_ID"),
		TelegramOutboundWebhookPath:   getOr("TELEGRAM_OUTBOUND_WEBHOOK_PATH", "/outbound/telegram"),
		TelegramOutboundWebhookSecret: os.Getenv("TELEGRAM_OUTBOUND_WEBHOOK_SECRET"),

		OutboundCodeTTL: getDurationMS("OUTBOUND_CODE_TTL_MS", 120*time.Second),

		Port: getOr("PORT", "8080"),
	}
}

func getOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getDurationMS(key string, def time.Duration) time.Duration {
	n := getInt(key, -1)
	if n < 0 {
		return def
	}
	return time.Duration(n) * time.Millisecond
}

func getDurationSecs(key string, def time.Duration) time.Duration {
	n := getInt(key, -1)
	if n < 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

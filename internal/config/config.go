package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	LLMAPIKey         string `env:"LLM_API_KEY,required"`
	LLMBaseURL        string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel          string `env:"LLM_MODEL" envDefault:"gpt-5.1"`
	LLMEmbeddingModel string `env:"LLM_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	LLMMaxRetries     int    `env:"LLM_MAX_RETRIES" envDefault:"2"`
	LLMCallTimeoutSec int    `env:"LLM_CALL_TIMEOUT_SECONDS" envDefault:"30"`

	JWTSecret           string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	AlertSMTPHost     string `env:"ALERT_SMTP_HOST"`
	AlertSMTPPort     int    `env:"ALERT_SMTP_PORT" envDefault:"587"`
	AlertSMTPUser     string `env:"ALERT_SMTP_USER"`
	AlertSMTPPass     string `env:"ALERT_SMTP_PASS"`
	AlertSMTPFrom     string `env:"ALERT_SMTP_FROM"`
	AlertSMTPFromName string `env:"ALERT_SMTP_FROM_NAME"`
	AlertSMTPUseTLS   bool   `env:"ALERT_SMTP_USE_TLS" envDefault:"false"`
	AlertOperatorMail string `env:"ALERT_OPERATOR_MAIL"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

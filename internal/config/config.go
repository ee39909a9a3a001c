package config

import (
	"os"
	"time"
)

// Config holds everything the server reads from the environment. godotenv
// loads the .env file in main before this runs.
type Config struct {
	Port        string
	DatabaseURL string
	CORSOrigin  string
	CollegeMail string

	JWTSecret string
	JWTTTL    time.Duration

	// Gemini moderation.
	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string

	// SMTP for OTP mail.
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
}

// Load reads configuration from environment variables with development
// defaults. Secrets (JWT, Gemini, SMTP) have no defaults on purpose.
func Load() Config {
	return Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "sqlite://zeroverse.db"),
		CORSOrigin:  getEnv("CORS_ORIGIN", "*"),
		CollegeMail: getEnv("COLLEGE_MAIL_DOMAIN", "nith.ac.in"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    30 * 24 * time.Hour,

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-3-flash-preview"),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUser:     os.Getenv("EMAIL_USER"),
		SMTPPassword: os.Getenv("EMAIL_APP_PASSWORD"),
		MailFrom:     getEnv("MAIL_FROM", os.Getenv("EMAIL_USER")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// Public URLs
	BACKEND_URL     string
	FRONTEND_URL    string
	ALLOWED_ORIGINS string
	// Identity provider token verification
	IDENTITY_JWT_SECRET string
	IDENTITY_JWT_ISSUER string
	// Redis Configuration
	REDIS_URL string
	// SSLCommerz Configuration
	SSLCOMMERZ_STORE_ID       string
	SSLCOMMERZ_STORE_PASSWORD string
	SSLCOMMERZ_IS_LIVE        bool
	PAYMENT_CURRENCY          string
	GATEWAY_TIMEOUT_SECONDS   int
	// Mail Configuration
	SMTP_HOST        string
	SMTP_PORT        int
	SMTP_USERNAME    string
	SMTP_PASSWORD    string
	MAIL_FROM        string
	SENDGRID_API_KEY string
	// Kafka Configuration
	KAFKA_BROKERS          []string
	KAFKA_ENROLLMENT_TOPIC string
	// Invoice storage (S3 compatible)
	INVOICE_BUCKET     string
	INVOICE_REGION     string
	INVOICE_ENDPOINT   string
	INVOICE_ACCESS_KEY string
	INVOICE_SECRET_KEY string
	INVOICE_CDN_URL    string
	// Jobs
	CRON_ENABLED bool
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	smtpPort, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		smtpPort = 587
	}

	gatewayTimeout, err := strconv.Atoi(os.Getenv("GATEWAY_TIMEOUT_SECONDS"))
	if err != nil || gatewayTimeout <= 0 {
		gatewayTimeout = 15
	}

	var kafkaBrokers []string
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			kafkaBrokers = append(kafkaBrokers, b)
		}
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      getEnvOrDefault("DB_HOST", "localhost"),
		DB_PORT:      getEnvOrDefault("DB_PORT", "5432"),
		DB_SSL_MODE:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		PORT:         port,
		// URLs
		BACKEND_URL:     strings.TrimRight(getEnvOrDefault("BACKEND_URL", "http://localhost:8080"), "/"),
		FRONTEND_URL:    strings.TrimRight(getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"), "/"),
		ALLOWED_ORIGINS: getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:3000"),
		// Identity
		IDENTITY_JWT_SECRET: os.Getenv("IDENTITY_JWT_SECRET"),
		IDENTITY_JWT_ISSUER: os.Getenv("IDENTITY_JWT_ISSUER"),
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// SSLCommerz
		SSLCOMMERZ_STORE_ID:       os.Getenv("SSLCOMMERZ_STORE_ID"),
		SSLCOMMERZ_STORE_PASSWORD: os.Getenv("SSLCOMMERZ_STORE_PASSWORD"),
		SSLCOMMERZ_IS_LIVE:        os.Getenv("SSLCOMMERZ_IS_LIVE") == "true",
		PAYMENT_CURRENCY:          getEnvOrDefault("PAYMENT_CURRENCY", "BDT"),
		GATEWAY_TIMEOUT_SECONDS:   gatewayTimeout,
		// Mail
		SMTP_HOST:        getEnvOrDefault("SMTP_HOST", "smtp.gmail.com"),
		SMTP_PORT:        smtpPort,
		SMTP_USERNAME:    os.Getenv("SMTP_USERNAME"),
		SMTP_PASSWORD:    os.Getenv("SMTP_PASSWORD"),
		MAIL_FROM:        getEnvOrDefault("MAIL_FROM", "noreply@activeclassroom.app"),
		SENDGRID_API_KEY: os.Getenv("SENDGRID_API_KEY"),
		// Kafka
		KAFKA_BROKERS:          kafkaBrokers,
		KAFKA_ENROLLMENT_TOPIC: getEnvOrDefault("KAFKA_ENROLLMENT_TOPIC", "enrollment.created"),
		// Invoice storage
		INVOICE_BUCKET:     os.Getenv("INVOICE_BUCKET"),
		INVOICE_REGION:     os.Getenv("INVOICE_REGION"),
		INVOICE_ENDPOINT:   os.Getenv("INVOICE_ENDPOINT"),
		INVOICE_ACCESS_KEY: os.Getenv("INVOICE_ACCESS_KEY"),
		INVOICE_SECRET_KEY: os.Getenv("INVOICE_SECRET_KEY"),
		INVOICE_CDN_URL:    os.Getenv("INVOICE_CDN_URL"),
		// Jobs
		CRON_ENABLED: os.Getenv("CRON_ENABLED") != "false", // Default to enabled
	}

	return envVariables, nil
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

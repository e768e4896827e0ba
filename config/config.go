package config

import (
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	RedisAddr    string
	RedisPass    string
	BaseURL      string
	Port         string

	// Environment is "production" or "development"; it selects the cookie
	// policy and the default logger config.
	Environment string

	// NotifierPolicy is "strict" (notifier failures abort the operation and
	// roll back partial state) or "degraded" (log and continue). Strict is
	// the pre-launch default; do not collapse the two.
	NotifierPolicy string

	SendGridAPIKey string
	FromEmail      string
	FromName       string
	SMSGatewayURL  string

	GoogleClientID   string
	FacebookGraphURL string

	StripeSecretKey string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	ReviewerJWTSecret string

	PublicWebBaseURL   string
	SocialSuccessURL   string
	SocialOnboardURL   string
	SocialFailureURL   string
}

// New sets up all config related services
func New() *Config {

	//setup zap logger and replace default logger
	env := getEnv("ENVIRONMENT", "development")
	var logger *zap.Logger
	if env == "production" {
		logger, _ = zap.NewProduction()
	} else {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:            os.Getenv("DB_URI"),
		DatabaseName:   os.Getenv("DB_NAME"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:      os.Getenv("REDIS_PASSWORD"),
		BaseURL:        os.Getenv("BASE_URL"),
		Port:           os.Getenv("PORT"),
		Environment:    env,
		NotifierPolicy: getEnv("NOTIFIER_POLICY", "strict"),

		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		FromEmail:      getEnv("FROM_EMAIL", "no-reply@tradelink.app"),
		FromName:       getEnv("FROM_NAME", "TradeLink"),
		SMSGatewayURL:  os.Getenv("SMS_GATEWAY_URL"),

		GoogleClientID:   os.Getenv("GOOGLE_CLIENT_ID"),
		FacebookGraphURL: getEnv("FACEBOOK_GRAPH_URL", "https://graph.facebook.com"),

		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),

		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),

		ReviewerJWTSecret: os.Getenv("REVIEWER_JWT_SECRET"),

		PublicWebBaseURL: getEnv("PUBLIC_WEB_BASE_URL", "https://www.tradelink.app"),
		SocialSuccessURL: getEnv("SOCIAL_SUCCESS_URL", "/"),
		SocialOnboardURL: getEnv("SOCIAL_ONBOARD_URL", "/onboarding"),
		SocialFailureURL: getEnv("SOCIAL_FAILURE_URL", "/login?error=social"),
	}

}

// Production reports whether the service runs with the production cookie and
// logging policy.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
}

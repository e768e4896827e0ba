package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/tradelink-app/tradelink-api/config"
	templates "github.com/tradelink-app/tradelink-api/templates/html"
)

// Service sends email through SendGrid and SMS through the configured
// gateway webhook.
type Service struct {
	conf       *config.Config
	httpClient *http.Client
}

// New returns a Notifier over the config's delivery credentials.
func New(conf *config.Config) *Service {
	return &Service{
		conf:       conf,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendEmailCode emails a verification code.
func (s *Service) SendEmailCode(ctx context.Context, email, code string) error {
	subject := "TradeLink verification code"
	plain := "Your TradeLink verification code is: " + code + ". This code will expire in 10 minutes."
	return s.sendEmail(email, subject, plain, templates.RenderCode(code))
}

// SendResetLink emails a password reset link.
func (s *Service) SendResetLink(ctx context.Context, email, link string) error {
	subject := "TradeLink password reset"
	plain := "Reset your TradeLink password using this link: " + link + ". The link expires in 1 hour."
	return s.sendEmail(email, subject, plain, templates.RenderResetLink(link))
}

func (s *Service) sendEmail(toEmail, subject, plain, html string) error {
	if s.conf.SendGridAPIKey == "" {
		return fmt.Errorf("SENDGRID_API_KEY not set")
	}

	from := mail.NewEmail(s.conf.FromName, s.conf.FromEmail)
	to := mail.NewEmail("", toEmail)
	message := mail.NewSingleEmail(from, subject, to, plain, html)

	client := sendgrid.NewSendClient(s.conf.SendGridAPIKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d", response.StatusCode)
	}

	zap.S().Infow("email sent",
		"to", toEmail,
		"subject", subject,
		"statusCode", response.StatusCode,
	)
	return nil
}

// SendSMSCode posts a verification code to the SMS gateway. The gateway owns
// carrier routing; this service only hands over the message.
func (s *Service) SendSMSCode(ctx context.Context, phone, code string) error {
	if s.conf.SMSGatewayURL == "" {
		return fmt.Errorf("SMS_GATEWAY_URL not set")
	}

	body, err := json.Marshal(map[string]string{
		"messageId": uuid.New().String(),
		"to":        phone,
		"message":   "Your TradeLink verification code is: " + code,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.conf.SMSGatewayURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}

	zap.S().Infow("sms sent", "to", phone)
	return nil
}

package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/feedback-system/feedback-system/internal/config"
	"github.com/feedback-system/feedback-system/internal/db/models"
)

// ErrNotConfigured is returned when a notification has no usable recipient or server.
var ErrNotConfigured = errors.New("email not configured")

// SMTPNotifier sends plain-text email through an SMTP relay.
type SMTPNotifier struct {
	smtp       config.SMTPConfig
	adminEmail string
	appURL     string
	// send delivers an assembled message; replaced in tests.
	send func(ctx context.Context, to []string, msg []byte) error
}

// NewSMTPNotifier builds a notifier from the notifications config section.
func NewSMTPNotifier(cfg config.NotificationsConfig) *SMTPNotifier {
	n := &SMTPNotifier{smtp: cfg.SMTP, adminEmail: cfg.AdminEmail, appURL: strings.TrimRight(cfg.AppURL, "/")}
	n.send = n.deliver
	return n
}

// NewFeedback tells the administrators a submission is waiting for review.
func (n *SMTPNotifier) NewFeedback(ctx context.Context, f *models.Feedback) error {
	if n.adminEmail == "" {
		return ErrNotConfigured
	}
	subject := "New Feedback Received - " + string(f.Category)
	body := []string{
		"New feedback has been submitted.",
		"",
		"Name:      " + f.Name,
		"Email:     " + f.Email,
		"Category:  " + string(f.Category),
		fmt.Sprintf("Rating:    %s (%d/5)", stars(f.Rating, true), f.Rating),
		"Submitted: " + f.CreatedAt.UTC().Format(time.RFC1123),
		"",
		"Message:",
		f.Message,
		"",
		"Review it in the dashboard: " + n.appURL + "/admin",
	}
	return n.send(ctx, []string{n.adminEmail}, n.compose(n.adminEmail, subject, body))
}

// FeedbackApproved thanks the submitter.
func (n *SMTPNotifier) FeedbackApproved(ctx context.Context, f *models.Feedback) error {
	body := []string{
		"Dear " + f.Name + ",",
		"",
		"Thank you for your feedback! It has been reviewed and approved.",
		"",
		"Category: " + string(f.Category),
		"Rating:   " + stars(f.Rating, false),
		"Your message:",
		`"` + f.Message + `"`,
		"",
		"We appreciate your input and will use it to improve our services.",
		"",
		"Best regards,",
		"The Team",
	}
	return n.send(ctx, []string{f.Email}, n.compose(f.Email, "Your Feedback Has Been Approved", body))
}

// FeedbackRejected informs the submitter their feedback was not accepted.
func (n *SMTPNotifier) FeedbackRejected(ctx context.Context, f *models.Feedback) error {
	body := []string{
		"Dear " + f.Name + ",",
		"",
		"Thank you for taking the time to submit your feedback. After review, we've determined",
		"that it doesn't meet our current guidelines.",
		"",
		"Category:  " + string(f.Category),
		"Submitted: " + f.CreatedAt.UTC().Format("2006-01-02"),
		"",
		"If you have questions or would like to submit revised feedback, please feel free to contact us.",
		"",
		"Best regards,",
		"The Team",
	}
	return n.send(ctx, []string{f.Email}, n.compose(f.Email, "Regarding Your Recent Feedback", body))
}

func (n *SMTPNotifier) compose(to, subject string, body []string) []byte {
	headers := fmt.Sprintf(
		"From: \"Feedback System\" <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n",
		n.smtp.From, to, subject,
	)
	return []byte(headers + strings.Join(body, "\r\n") + "\r\n")
}

func stars(rating int, withEmpty bool) string {
	if rating < 0 {
		rating = 0
	}
	if rating > models.RatingMax {
		rating = models.RatingMax
	}
	s := strings.Repeat("★", rating)
	if withEmpty {
		s += strings.Repeat("☆", models.RatingMax-rating)
	}
	return s
}

// deliver sends msg over SMTP. UseTLS on port 465 means implicit TLS; UseTLS on any other
// port upgrades with STARTTLS. The whole exchange is bounded by ctx.
func (n *SMTPNotifier) deliver(ctx context.Context, to []string, msg []byte) error {
	cfg := n.smtp
	if cfg.Host == "" || cfg.From == "" {
		return ErrNotConfigured
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	tlsConfig := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}

	dialer := &net.Dialer{}
	var conn net.Conn
	var err error
	if cfg.UseTLS && cfg.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp new client: %w", err)
	}
	defer c.Quit() //nolint:errcheck

	if cfg.UseTLS && cfg.Port != 465 {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return errors.New("smtp server does not support STARTTLS")
		}
		if err := c.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("smtp STARTTLS: %w", err)
		}
	}
	if cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(cfg.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}

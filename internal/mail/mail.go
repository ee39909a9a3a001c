// Package mail sends OTP verification emails over SMTP.
package mail

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Sender delivers one-time codes. Tests swap in a fake.
type Sender interface {
	SendOTP(to, code string) error
}

// SMTPSender sends through a real SMTP server (Gmail app passwords in the
// original deployment).
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
	log      *zap.Logger
}

func NewSMTPSender(host, port, user, password, from string, log *zap.Logger) (*SMTPSender, error) {
	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT %q: %w", port, err)
	}
	return &SMTPSender{host: host, port: p, user: user, password: password, from: from, log: log}, nil
}

func (s *SMTPSender) SendOTP(to, code string) error {
	if s.user == "" || s.password == "" {
		return fmt.Errorf("email credentials not configured")
	}

	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject("Email Verification - ZeroVerse")
	msg.SetBodyString(gomail.TypeTextPlain, fmt.Sprintf(
		"ZeroVerse - Email Verification\n\n"+
			"Your OTP for email verification is: %s\n\n"+
			"This OTP is valid for 10 minutes.\n"+
			"Do not share this code with anyone.\n\n"+
			"If you didn't request this, please ignore this email.\n", code))

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.user),
		gomail.WithPassword(s.password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	s.log.Info("otp email sent", zap.String("to", to))
	return nil
}

// GenerateOTP returns a 6-digit numeric code.
func GenerateOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		// crypto/rand failing means the process is in no state to run.
		panic(err)
	}
	return strconv.FormatInt(n.Int64()+100000, 10)
}

package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

type SmtpConfig struct {
	Server   string   `json:"server"`
	Port     int      `json:"port"`
	Address  string   `json:"address"`
	Password string   `json:"password"`
	To       []string `json:"to"`
}

type Email struct {
	cfg SmtpConfig
}

func NewEmail(cfg SmtpConfig) *Email {
	return &Email{cfg: cfg}
}

func (e *Email) Send(ctx context.Context, msg Message) error {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Slotwatch <%s>", e.cfg.Address)
	mail.To = e.cfg.To
	mail.Subject = msg.Subject
	mail.Text = []byte(msg.Text)
	if msg.HTML != "" {
		mail.HTML = []byte(msg.HTML)
	}

	addr := fmt.Sprintf("%s:%d", e.cfg.Server, e.cfg.Port)
	err := mail.Send(addr, smtp.PlainAuth("", e.cfg.Address, e.cfg.Password, e.cfg.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	return err
}

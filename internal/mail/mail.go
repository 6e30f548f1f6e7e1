// Package mail composes outreach messages and sends them over implicit-TLS SMTP.
package mail

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/shpitdev/dossier-outreach/pkg/pipeline/redact"
)

// Message is one outgoing email. Body already carries the signature.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender dispatches a message. Implementations must not retry on their own.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Signature is the block appended to every approved body.
type Signature struct {
	Name      string
	Company   string
	Role      string
	Phone     string
	InfoEmail string
	Tagline   string
}

// Block renders the signature. Empty lines are dropped.
func (s Signature) Block() string {
	lines := []string{"-- ", "Sincerely,", ""}
	for _, v := range []string{s.Name, s.Company, s.Role, s.Phone, s.InfoEmail, s.Tagline} {
		if v = strings.TrimSpace(v); v != "" {
			lines = append(lines, v)
		}
	}
	return strings.Join(lines, "\n")
}

// Compose joins body and signature with a blank line.
func Compose(body string, sig Signature) string {
	return strings.TrimRight(body, " \t\r\n") + "\n\n" + sig.Block()
}

// SMTPConfig configures the implicit-TLS sender.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
	Timeout  time.Duration
}

// SMTP sends through one server using PLAIN auth over implicit TLS.
type SMTP struct {
	cfg    SMTPConfig
	logger *zap.Logger
}

func NewSMTP(cfg SMTPConfig, logger *zap.Logger) (*SMTP, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, eris.New("mail: smtp host is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, eris.Errorf("mail: invalid smtp port %d", cfg.Port)
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, eris.New("mail: sender address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTP{cfg: cfg, logger: logger}, nil
}

func (s *SMTP) Send(ctx context.Context, m Message) error {
	msg, err := BuildMessage(s.cfg.From, m)
	if err != nil {
		return err
	}
	client, err := gomail.NewClient(s.cfg.Host,
		gomail.WithPort(s.cfg.Port),
		gomail.WithSSL(),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.From),
		gomail.WithPassword(s.cfg.Password),
		gomail.WithTimeout(s.cfg.Timeout),
	)
	if err != nil {
		return eris.Wrap(err, "mail: create smtp client")
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return eris.New("mail: send: " + redact.Secrets(err.Error()))
	}
	s.logger.Info("email sent", zap.String("to", m.To), zap.String("subject", m.Subject))
	return nil
}

// BuildMessage assembles a plain-text message.
func BuildMessage(from string, m Message) (*gomail.Msg, error) {
	if strings.TrimSpace(m.To) == "" {
		return nil, eris.New("mail: recipient address is empty")
	}
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, eris.Wrapf(err, "mail: invalid sender %q", from)
	}
	if err := msg.To(strings.TrimSpace(m.To)); err != nil {
		return nil, eris.Wrapf(err, "mail: invalid recipient %q", m.To)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, m.Body)
	return msg, nil
}

// DryRun logs messages instead of sending them.
type DryRun struct {
	logger *zap.Logger
	sent   []Message
}

func NewDryRun(logger *zap.Logger) *DryRun {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRun{logger: logger}
}

func (d *DryRun) Send(_ context.Context, m Message) error {
	d.sent = append(d.sent, m)
	d.logger.Info("dry run: email not sent",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.Int("body_len", len(m.Body)))
	return nil
}

// IsDryRun reports whether s only records messages.
func IsDryRun(s Sender) bool {
	_, ok := s.(*DryRun)
	return ok
}

// Sent returns the messages recorded so far.
func (d *DryRun) Sent() []Message {
	return append([]Message(nil), d.sent...)
}

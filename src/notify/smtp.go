package notify

import (
	"context"
	"fmt"
	"time"

	"vigila/src/helpers"
	"vigila/src/logger"
	"vigila/src/models"

	"github.com/wneessen/go-mail"
)

// SendFunc delivers one built message.
type SendFunc func(ctx context.Context, msg *mail.Msg) error

// SMTPNotifier e-mails alerts. Port 465 uses implicit TLS, anything else
// mandatory STARTTLS.
type SMTPNotifier struct {
	Config     models.MSMTPConfig
	Threshold  float64
	Send       SendFunc
	RetryDelay time.Duration
	Timeout    time.Duration
	Logger     *logger.Logger

	now func() time.Time
}

// -----------------------------------------------------------------------------

func NewSMTPNotifier(cfg models.MSMTPConfig, threshold float64, log *logger.Logger) *SMTPNotifier {
	n := &SMTPNotifier{
		Config:     cfg,
		Threshold:  threshold,
		RetryDelay: 2 * time.Second,
		Timeout:    30 * time.Second,
		Logger:     log,
		now:        time.Now,
	}
	n.Send = n.dialAndSend
	return n
}

// -----------------------------------------------------------------------------

func (n *SMTPNotifier) Notify(ctx context.Context, recipient string, alerts []models.MVolumeSnapshot) error {
	if len(alerts) == 0 {
		return nil
	}
	if recipient == "" {
		return helpers.NewValidationError("alert recipient is empty")
	}

	// Address problems are permanent, so they fail before the retry loop
	msg, err := n.buildMessage(recipient, alerts)
	if err != nil {
		return err
	}

	return helpers.RetryWithBackoff(ctx, "smtp send", 3, n.RetryDelay, func() error {
		return n.Send(ctx, msg)
	})
}

// -----------------------------------------------------------------------------

func (n *SMTPNotifier) buildMessage(recipient string, alerts []models.MVolumeSnapshot) (*mail.Msg, error) {
	markdown := Markdown(n.Threshold, n.Config.Team, alerts)
	html, err := HTML(markdown)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if n.Config.Team != "" {
		err = msg.FromFormat(n.Config.Team, n.Config.Sender)
	} else {
		err = msg.From(n.Config.Sender)
	}
	if err != nil {
		return nil, helpers.NewValidationError(fmt.Sprintf("invalid alert sender %q: %v", n.Config.Sender, err))
	}
	if err := msg.To(recipient); err != nil {
		return nil, helpers.NewValidationError(fmt.Sprintf("invalid alert recipient %q: %v", recipient, err))
	}

	sent := n.now()
	msg.Subject(Subject(sent))
	msg.SetDateWithValue(sent)
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, markdown)
	msg.AddAlternativeString(mail.TypeTextHTML, html)
	return msg, nil
}

// -----------------------------------------------------------------------------

func (n *SMTPNotifier) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithTimeout(n.Timeout)}
	if n.Config.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if n.Config.Port > 0 {
		opts = append(opts, mail.WithPort(n.Config.Port))
	}
	if n.Config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.Config.Sender),
			mail.WithPassword(n.Config.Password),
		)
	}
	return opts
}

// -----------------------------------------------------------------------------

func (n *SMTPNotifier) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(n.Config.Host, n.clientOptions()...)
	if err != nil {
		return helpers.NewConfigurationError(fmt.Sprintf("smtp client: %v", err))
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return helpers.NewNetworkError("smtp send failed", err)
	}
	n.Logger.Debug("Alert mail sent via %s:%d", n.Config.Host, n.Config.Port)
	return nil
}

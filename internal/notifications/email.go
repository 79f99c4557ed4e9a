package notifications

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mashup/internal/config"
	"mashup/internal/services"
)

const stageName = "notifying"

// Delivery describes one finished mashup to send.
type Delivery struct {
	To          string
	Query       string
	Count       int
	ClipSeconds int
	BundlePath  string
}

// Notifier delivers a packaged artifact to its destination.
type Notifier interface {
	Deliver(ctx context.Context, delivery Delivery) error
}

// NewNotifier returns an SMTP notifier when smtp.host is configured and a
// disabled notifier otherwise.
func NewNotifier(cfg *config.Config) Notifier {
	if cfg == nil || !cfg.EmailEnabled() {
		return disabledNotifier{}
	}
	n := &EmailNotifier{
		host:      cfg.SMTP.Host,
		port:      cfg.SMTP.Port,
		username:  cfg.SMTP.Username,
		password:  cfg.SMTP.Password,
		from:      cfg.SMTP.From,
		tlsPolicy: cfg.SMTP.TLSPolicy,
		timeout:   cfg.SMTPTimeout(),
	}
	n.send = n.dialAndSend
	return n
}

// EmailNotifier sends the bundle as an email attachment.
type EmailNotifier struct {
	host      string
	port      int
	username  string
	password  string
	from      string
	tlsPolicy string
	timeout   time.Duration

	send func(ctx context.Context, msg *mail.Msg) error
}

// Deliver builds and sends the message. Failures carry services.ErrDelivery.
func (n *EmailNotifier) Deliver(ctx context.Context, delivery Delivery) error {
	msg, err := BuildMessage(n.from, delivery)
	if err != nil {
		return err
	}
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	if err := n.send(ctx, msg); err != nil {
		return services.Wrap(services.ErrDelivery, stageName, "smtp send", "email delivery failed", err)
	}
	return nil
}

func (n *EmailNotifier) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(n.port),
		mail.WithTLSPolicy(tlsPolicy(n.tlsPolicy)),
	}
	if n.timeout > 0 {
		opts = append(opts, mail.WithTimeout(n.timeout))
	}
	if n.port == 465 {
		opts = append(opts, mail.WithSSL())
	}
	if n.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.username),
			mail.WithPassword(n.password),
		)
	}
	client, err := mail.NewClient(n.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

func tlsPolicy(value string) mail.TLSPolicy {
	switch value {
	case "none":
		return mail.NoTLS
	case "opportunistic":
		return mail.TLSOpportunistic
	default:
		return mail.TLSMandatory
	}
}

// BuildMessage renders the delivery email with the bundle attached.
func BuildMessage(from string, delivery Delivery) (*mail.Msg, error) {
	to := strings.TrimSpace(delivery.To)
	if to == "" {
		return nil, services.Wrap(services.ErrDelivery, stageName, "build message", "no destination address", nil)
	}
	if _, err := os.Stat(delivery.BundlePath); err != nil {
		return nil, services.Wrap(services.ErrDelivery, stageName, "build message", "bundle is missing", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, services.Wrap(services.ErrDelivery, stageName, "build message", "invalid sender address", err)
	}
	if err := msg.To(to); err != nil {
		return nil, services.Wrap(services.ErrDelivery, stageName, "build message", "invalid destination address", err)
	}
	msg.Subject(Subject(delivery.Query))
	msg.SetBodyString(mail.TypeTextPlain, Body(delivery))
	msg.AttachFile(delivery.BundlePath)
	return msg, nil
}

// Subject returns "Your <Query> mashup" with the query title-cased.
func Subject(query string) string {
	title := cases.Title(language.English).String(strings.TrimSpace(query))
	return fmt.Sprintf("Your %s mashup", title)
}

// Body returns the plain-text message body.
func Body(delivery Delivery) string {
	var b strings.Builder
	b.WriteString("Hello,\n\n")
	b.WriteString("Your mashup is ready and attached to this email as a zip file.\n\n")
	fmt.Fprintf(&b, "Singer: %s\n", strings.TrimSpace(delivery.Query))
	fmt.Fprintf(&b, "Videos requested: %d\n", delivery.Count)
	fmt.Fprintf(&b, "Clip duration: %d seconds\n", delivery.ClipSeconds)
	b.WriteString("\nEnjoy!\n")
	return b.String()
}

type disabledNotifier struct{}

func (disabledNotifier) Deliver(context.Context, Delivery) error {
	return services.Wrap(services.ErrDelivery, stageName, "deliver", "email delivery is not configured", nil)
}

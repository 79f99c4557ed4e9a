package notifications

import (
	"context"

	"github.com/wneessen/go-mail"
)

// SetSenderForTests swaps the SMTP dial for fn on an EmailNotifier.
func SetSenderForTests(n Notifier, fn func(context.Context, *mail.Msg) error) {
	if email, ok := n.(*EmailNotifier); ok {
		email.send = fn
	}
}

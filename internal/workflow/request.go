package workflow

import (
	"fmt"
	"net/mail"
	"strings"

	"mashup/internal/config"
	"mashup/internal/encoding"
	"mashup/internal/services"
)

const (
	minCountExclusive       = 10
	minClipSecondsExclusive = 20
)

// Request is one mashup order as received from the CLI or HTTP intake.
type Request struct {
	Query       string
	Count       int
	ClipSeconds int
	Destination string
	OutputKind  encoding.OutputKind
}

// Policy holds the intake rules that vary by entry point and configuration.
// Zero upper bounds disable the corresponding check.
type Policy struct {
	RequireDestination bool
	MaxCount           int
	MaxClipSeconds     int
}

// PolicyFromConfig returns the configured upper bounds.
func PolicyFromConfig(cfg *config.Config) Policy {
	if cfg == nil {
		return Policy{}
	}
	return Policy{MaxCount: cfg.Limits.MaxCount, MaxClipSeconds: cfg.Limits.MaxClipSeconds}
}

// Normalize trims the text fields and canonicalizes the destination address
// when it parses.
func (r *Request) Normalize() {
	r.Query = strings.TrimSpace(r.Query)
	r.Destination = strings.TrimSpace(r.Destination)
	if r.Destination != "" {
		if addr, err := mail.ParseAddress(r.Destination); err == nil {
			r.Destination = addr.Address
		}
	}
	if r.OutputKind == "" {
		r.OutputKind = encoding.KindAudio
	}
}

// Validate checks the request against policy. Failures carry
// services.ErrValidation and a message suitable for the caller.
func (r Request) Validate(policy Policy) error {
	if strings.TrimSpace(r.Query) == "" {
		return invalid("Singer name must not be empty.")
	}
	if r.Count <= minCountExclusive {
		return invalid("NumberOfVideos must be greater than 10.")
	}
	if policy.MaxCount > 0 && r.Count > policy.MaxCount {
		return invalid(fmt.Sprintf("NumberOfVideos must not exceed %d.", policy.MaxCount))
	}
	if r.ClipSeconds <= minClipSecondsExclusive {
		return invalid("AudioDuration must be greater than 20 seconds.")
	}
	if policy.MaxClipSeconds > 0 && r.ClipSeconds > policy.MaxClipSeconds {
		return invalid(fmt.Sprintf("AudioDuration must not exceed %d seconds.", policy.MaxClipSeconds))
	}
	switch r.OutputKind {
	case encoding.KindAudio, encoding.KindVideo:
	default:
		return invalid("Output kind must be audio or video.")
	}

	destination := strings.TrimSpace(r.Destination)
	if destination == "" {
		if policy.RequireDestination {
			return invalid("Email address is required.")
		}
		return nil
	}
	addr, err := mail.ParseAddress(destination)
	if err != nil || !strings.Contains(addr.Address, "@") {
		return invalid(fmt.Sprintf("Email address %q is not valid.", destination))
	}
	return nil
}

func invalid(message string) error {
	return services.Wrap(services.ErrValidation, "intake", "validate", message, nil)
}

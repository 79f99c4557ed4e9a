package workflow

import (
	"errors"
	"testing"

	"mashup/internal/encoding"
	"mashup/internal/services"
)

func validRequest() Request {
	return Request{
		Query:       "Test Artist",
		Count:       11,
		ClipSeconds: 21,
		Destination: "user@example.com",
		OutputKind:  encoding.KindAudio,
	}
}

func TestValidateAcceptsMinimums(t *testing.T) {
	if err := validRequest().Validate(Policy{RequireDestination: true}); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Request)
		policy  Policy
		message string
	}{
		{"empty query", func(r *Request) { r.Query = "   " }, Policy{}, "Singer name must not be empty."},
		{"count at bound", func(r *Request) { r.Count = 10 }, Policy{}, "NumberOfVideos must be greater than 10."},
		{"count over limit", func(r *Request) { r.Count = 51 }, Policy{MaxCount: 50}, "NumberOfVideos must not exceed 50."},
		{"clip at bound", func(r *Request) { r.ClipSeconds = 20 }, Policy{}, "AudioDuration must be greater than 20 seconds."},
		{"clip over limit", func(r *Request) { r.ClipSeconds = 301 }, Policy{MaxClipSeconds: 300}, "AudioDuration must not exceed 300 seconds."},
		{"bad kind", func(r *Request) { r.OutputKind = "gif" }, Policy{}, "Output kind must be audio or video."},
		{"missing email", func(r *Request) { r.Destination = "" }, Policy{RequireDestination: true}, "Email address is required."},
		{"malformed email", func(r *Request) { r.Destination = "not-an-address" }, Policy{}, `Email address "not-an-address" is not valid.`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			err := req.Validate(tc.policy)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if got := services.Details(err).Message; got != tc.message {
				t.Fatalf("message = %q, want %q", got, tc.message)
			}
		})
	}
}

func TestValidateDestinationOptionalForCLI(t *testing.T) {
	req := validRequest()
	req.Destination = ""
	if err := req.Validate(Policy{}); err != nil {
		t.Fatalf("expected optional destination, got %v", err)
	}
}

func TestNormalizeTrimsAndCanonicalizes(t *testing.T) {
	req := Request{Query: "  Test Artist ", Destination: " Fan <fan@example.com> "}
	req.Normalize()
	if req.Query != "Test Artist" {
		t.Fatalf("unexpected query %q", req.Query)
	}
	if req.Destination != "fan@example.com" {
		t.Fatalf("unexpected destination %q", req.Destination)
	}
	if req.OutputKind != encoding.KindAudio {
		t.Fatalf("expected audio default, got %q", req.OutputKind)
	}
}

func TestPluralSeconds(t *testing.T) {
	cases := map[float64]string{1: "1 second", 15: "15 seconds", 12.54: "12.5 seconds", 0: "0 seconds"}
	for value, want := range cases {
		if got := pluralSeconds(value); got != want {
			t.Fatalf("pluralSeconds(%v) = %q, want %q", value, got, want)
		}
	}
}

package alerts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"
)

func newTestEmailSender(send func(context.Context, *gomail.Msg) error) *EmailSender {
	return &EmailSender{
		host:      "smtp.example.com",
		port:      587,
		fromName:  "Ops Alerts",
		fromEmail: "alerts@example.com",
		send:      send,
	}
}

func TestEmailSender_BuildsMessage(t *testing.T) {
	var captured *gomail.Msg
	s := newTestEmailSender(func(_ context.Context, m *gomail.Msg) error {
		captured = m
		return nil
	})

	err := s.Send(context.Background(), Recipient{ID: uuid.New(), Name: "Ops", Email: "ops@example.com"}, Message{Subject: "breach", Body: "details"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured == nil {
		t.Fatal("expected message to be sent")
	}
	to := captured.GetToString()
	if len(to) != 1 || !strings.Contains(to[0], "<ops@example.com>") {
		t.Fatalf("unexpected recipients %v", to)
	}
	if subj := captured.GetGenHeader(gomail.HeaderSubject); len(subj) != 1 || subj[0] != "breach" {
		t.Fatalf("unexpected subject %v", subj)
	}
}

func TestEmailSender_RecipientRejectionIsPermanent(t *testing.T) {
	s := newTestEmailSender(func(context.Context, *gomail.Msg) error {
		return &gomail.SendError{Reason: gomail.ErrSMTPRcptTo}
	})

	err := s.Send(context.Background(), Recipient{ID: uuid.New(), Email: "gone@example.com"}, Message{Subject: "x"})
	if !IsPermanent(err) {
		t.Fatalf("expected permanent failure, got %v", err)
	}
}

func TestEmailSender_ConnectionErrorIsTransient(t *testing.T) {
	s := newTestEmailSender(func(context.Context, *gomail.Msg) error {
		return errors.New("dial tcp: connection refused")
	})

	err := s.Send(context.Background(), Recipient{ID: uuid.New(), Email: "ops@example.com"}, Message{Subject: "x"})
	if err == nil || IsPermanent(err) {
		t.Fatalf("expected transient failure, got %v", err)
	}
}

func TestEmailSender_InvalidAddressIsPermanent(t *testing.T) {
	s := newTestEmailSender(func(context.Context, *gomail.Msg) error { return nil })

	err := s.Send(context.Background(), Recipient{ID: uuid.New(), Email: "not an address"}, Message{Subject: "x"})
	if !IsPermanent(err) {
		t.Fatalf("expected permanent failure, got %v", err)
	}
}

func TestEmailSender_MissingAddress(t *testing.T) {
	s := newTestEmailSender(func(context.Context, *gomail.Msg) error { return nil })

	err := s.Send(context.Background(), Recipient{ID: uuid.New()}, Message{Subject: "x"})
	if !errors.Is(err, ErrNoDestination) {
		t.Fatalf("expected ErrNoDestination, got %v", err)
	}
}

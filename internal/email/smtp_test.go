package email

import (
	"strings"
	"testing"

	gomail "github.com/wneessen/go-mail"
)

func TestBuildMessageSetsHeaders(t *testing.T) {
	s := &SMTPSender{fromName: "Test", fromEmail: "hello@example.com"}

	msg, err := s.buildMessage("lead@example.com", "Welcome, Ada!", "<p>hi</p>", "abc@example.com")
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}

	unsub := msg.GetGenHeader(gomail.HeaderListUnsubscribe)
	if len(unsub) != 1 || !strings.Contains(unsub[0], "mailto:hello@example.com") {
		t.Errorf("List-Unsubscribe = %v, want mailto to sender address", unsub)
	}
	if got := msg.GetGenHeader(gomail.HeaderSubject); len(got) != 1 || got[0] != "Welcome, Ada!" {
		t.Errorf("Subject = %v", got)
	}
}

func TestBuildMessageRejectsBadAddress(t *testing.T) {
	s := &SMTPSender{fromName: "Test", fromEmail: "hello@example.com"}

	_, err := s.buildMessage("not-an-address", "Hi", "<p>hi</p>", "abc@example.com")
	if err == nil {
		t.Fatal("expected error for malformed recipient")
	}
	if !IsPermanent(err) {
		t.Error("malformed recipient must be a permanent failure")
	}
}

func TestMessageIDDomain(t *testing.T) {
	if got := messageIDDomain("hello@mail.example.com"); got != "mail.example.com" {
		t.Errorf("messageIDDomain = %q", got)
	}
	if got := messageIDDomain("nodomain"); got != "localhost" {
		t.Errorf("messageIDDomain fallback = %q", got)
	}
}

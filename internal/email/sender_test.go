package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"nurture_backend/internal/sequence"
)

func TestEveryRegistryTemplateHasCopy(t *testing.T) {
	r := sequence.NewDefaultRegistry()
	for _, id := range r.IDs() {
		steps, err := r.Resolve(id)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", id, err)
		}
		for _, step := range steps {
			if _, err := lookupTemplate(step.TemplateID); err != nil {
				t.Errorf("sequence %q references template %q with no copy", id, step.TemplateID)
			}
		}
	}
}

func TestRenderSubstitutesVars(t *testing.T) {
	spec, err := lookupTemplate("welcome-01-hello")
	if err != nil {
		t.Fatal(err)
	}

	subject := renderSubject(spec, Vars{"first_name": "Ada"})
	if subject != "Welcome, Ada!" {
		t.Errorf("subject = %q", subject)
	}

	body, err := renderSequenceTemplate(spec, Vars{"first_name": "Ada"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body, "Great to have you here") {
		t.Error("body missing heading")
	}
	if strings.Contains(body, "{{first_name}}") {
		t.Error("body still contains unexpanded placeholder")
	}
}

func TestRenderLeavesUnknownPlaceholders(t *testing.T) {
	got := expandVars("Hi {{first_name}}, see {{missing}}", Vars{"first_name": "Bo"})
	if got != "Hi Bo, see {{missing}}" {
		t.Errorf("expandVars = %q", got)
	}
}

func TestPermanentClassification(t *testing.T) {
	perm := Permanent("bad address", errors.New("550 no such user"))
	if !IsPermanent(perm) {
		t.Error("Permanent error not classified as permanent")
	}
	if IsPermanent(errors.New("dial tcp: connection refused")) {
		t.Error("plain error classified as permanent")
	}
	if !IsPermanent(errors.Join(errors.New("outer"), perm)) {
		t.Error("wrapped permanent error not detected")
	}
}

func TestNoopSenderRejectsUnknownTemplate(t *testing.T) {
	var s NoopSender
	if _, err := s.SendSequenceEmail(context.Background(), "no-such-template", "a@b.com", nil); err == nil {
		t.Fatal("expected error for unknown template")
	} else if !IsPermanent(err) {
		t.Error("unknown template should be a permanent failure")
	}

	id, err := s.SendSequenceEmail(context.Background(), "welcome-01-hello", "a@b.com", nil)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Error("noop sender must return a message id")
	}
}

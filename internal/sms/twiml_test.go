package sms

import (
	"strings"
	"testing"
)

func TestReplyWrapsBodyInTwiML(t *testing.T) {
	doc, err := Reply("Successfully updated the odometer for Old Blue.")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if !strings.Contains(doc, "<Response>") {
		t.Fatalf("expected <Response> element, got %q", doc)
	}
	if !strings.Contains(doc, "Successfully updated the odometer for Old Blue.") {
		t.Fatalf("expected body text in document, got %q", doc)
	}
	if !strings.Contains(doc, "<Message>") {
		t.Fatalf("expected <Message> element, got %q", doc)
	}
}

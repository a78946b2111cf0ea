package sms

import (
	"encoding/xml"
	"strings"
	"testing"
)

func TestTwiML(t *testing.T) {
	doc := TwiML("Reply CONFIRM & enjoy")
	text := string(doc)
	if !strings.HasPrefix(text, "<?xml") {
		t.Fatalf("expected xml declaration: %s", text)
	}

	var parsed struct {
		XMLName xml.Name `xml:"Response"`
		Message string   `xml:"Message"`
	}
	if err := xml.Unmarshal(doc, &parsed); err != nil {
		t.Fatalf("twiml does not parse: %v", err)
	}
	if parsed.Message != "Reply CONFIRM & enjoy" {
		t.Fatalf("message not escaped correctly: %q", parsed.Message)
	}
}

func TestNormalizeKeyword(t *testing.T) {
	cases := map[string]string{
		"confirm":    "CONFIRM",
		" Confirm ":  "CONFIRM",
		"CANCEL\n":   "CANCEL",
		"  ":         "",
		"reschedule": "RESCHEDULE",
	}
	for in, want := range cases {
		if got := NormalizeKeyword(in); got != want {
			t.Fatalf("NormalizeKeyword(%q) = %q, want %q", in, got, want)
		}
	}
}

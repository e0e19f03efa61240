package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/almlog/ai-dynamic-painting-sub000/id"
)

func TestNew_GeneratesPrefixedID(t *testing.T) {
	reqID := id.NewRequestID()
	if reqID.IsNil() {
		t.Fatal("NewRequestID() returned nil ID")
	}
	if !strings.HasPrefix(reqID.String(), "req_") {
		t.Errorf("request ID %q does not start with %q", reqID.String(), "req_")
	}

	subID := id.NewSubscriptionID()
	if !strings.HasPrefix(subID.String(), "sub_") {
		t.Errorf("subscription ID %q does not start with %q", subID.String(), "sub_")
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		s := id.NewRequestID().String()
		if seen[s] {
			t.Fatalf("duplicate ID generated: %s", s)
		}
		seen[s] = true
	}
}

func TestParse_RoundTrip(t *testing.T) {
	orig := id.NewRequestID()

	parsed, err := id.Parse(orig.String())
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", orig.String(), err)
	}
	if parsed.String() != orig.String() {
		t.Errorf("round trip = %q, want %q", parsed.String(), orig.String())
	}
	if parsed.Prefix() != id.PrefixRequest {
		t.Errorf("Prefix() = %q, want %q", parsed.Prefix(), id.PrefixRequest)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"not-a-typeid",
		"req_!!!!",
	}
	for _, s := range tests {
		if _, err := id.Parse(s); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", s)
		}
	}
}

func TestParseWithPrefix_RejectsWrongPrefix(t *testing.T) {
	subID := id.NewSubscriptionID()

	if _, err := id.ParseRequestID(subID.String()); err == nil {
		t.Errorf("ParseRequestID(%q) succeeded, want prefix mismatch error", subID.String())
	}
	if _, err := id.ParseSubscriptionID(subID.String()); err != nil {
		t.Errorf("ParseSubscriptionID(%q) error: %v", subID.String(), err)
	}
}

func TestNil_Behaviour(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Error("Nil.IsNil() = false")
	}
	if id.Nil.String() != "" {
		t.Errorf("Nil.String() = %q, want empty", id.Nil.String())
	}
	if id.Nil.Prefix() != "" {
		t.Errorf("Nil.Prefix() = %q, want empty", id.Nil.Prefix())
	}
}

func TestID_JSONRoundTrip(t *testing.T) {
	type wrapper struct {
		ID id.RequestID `json:"id"`
	}

	orig := wrapper{ID: id.NewRequestID()}
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var got wrapper
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if got.ID.String() != orig.ID.String() {
		t.Errorf("JSON round trip = %q, want %q", got.ID.String(), orig.ID.String())
	}
}

func TestID_ScanValue(t *testing.T) {
	orig := id.NewRequestID()

	v, err := orig.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if scanned.String() != orig.String() {
		t.Errorf("Scan round trip = %q, want %q", scanned.String(), orig.String())
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if !fromNil.IsNil() {
		t.Error("Scan(nil) should produce the Nil ID")
	}
}

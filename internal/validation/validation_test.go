package validation

import "testing"

func TestIsValidAgentID(t *testing.T) {
	valid := []string{
		"agent_sarah_4f8a9b2c",
		"agent_henri_7d3e1a5b",
		"agent_x",
	}
	for _, id := range valid {
		if !IsValidAgentID(id) {
			t.Errorf("expected %q to be valid", id)
		}
	}

	invalid := []string{
		"",
		"sarah",
		"agent_",
		"agent_Sarah", // uppercase
		"agent_sarah!",
		"agent_" + string(make([]byte, 80)),
	}
	for _, id := range invalid {
		if IsValidAgentID(id) {
			t.Errorf("expected %q to be invalid", id)
		}
	}
}

func TestIsValidCapability(t *testing.T) {
	valid := []string{"sell_electronics", "price_negotiation", "a"}
	for _, tag := range valid {
		if !IsValidCapability(tag) {
			t.Errorf("expected %q to be valid", tag)
		}
	}

	invalid := []string{"", "_leading", "9starts_with_digit", "has space", "Upper"}
	for _, tag := range invalid {
		if IsValidCapability(tag) {
			t.Errorf("expected %q to be invalid", tag)
		}
	}
}

func TestIsValidTrustScore(t *testing.T) {
	for _, score := range []float64{0, 2.5, 5} {
		if !IsValidTrustScore(score) {
			t.Errorf("expected %f to be valid", score)
		}
	}
	for _, score := range []float64{-0.1, 5.1, 100} {
		if IsValidTrustScore(score) {
			t.Errorf("expected %f to be invalid", score)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello  ", 100); got != "hello" {
		t.Errorf("expected trimmed string, got %q", got)
	}
	if got := SanitizeString("abcdef", 3); got != "abc" {
		t.Errorf("expected truncated string, got %q", got)
	}
	if got := SanitizeString("a\x00b", 100); got != "ab" {
		t.Errorf("expected null bytes removed, got %q", got)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "agent_id", Message: "malformed"},
		{Field: "trust_score", Message: "out of range"},
	}
	want := "agent_id: malformed; trust_score: out of range"
	if errs.Error() != want {
		t.Errorf("got %q, want %q", errs.Error(), want)
	}
}

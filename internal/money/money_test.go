package money

import (
	"encoding/json"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Amount
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"450", 45000, false},
		{"450.00", 45000, false},
		{"450.5", 45050, false},
		{"450.55", 45055, false},
		{".50", 50, false},
		{"-12.34", -1234, false},
		{"1.2.3", 0, true},
		{"1.234", 0, true}, // more than 2 decimals is rejected, not rounded
		{"abc", 0, true},
		{"-", 0, true},
		{"--5", 0, true}, // doubled sign must not cancel to a positive amount
		{"+-5", 0, true},
		{"+5", 0, true},
		{"1 2", 0, true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q) expected error, got %d", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		in   Amount
		want string
	}{
		{0, "0.00"},
		{45000, "450.00"},
		{45055, "450.55"},
		{5, "0.05"},
		{-1234, "-12.34"},
	}

	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("Amount(%d).String() = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		Price Amount `json:"price"`
	}

	data, err := json.Marshal(wrapper{Price: 50000})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"price":"500.00"}` {
		t.Errorf("unexpected JSON: %s", data)
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"price":"450.00"}`), &w); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if w.Price != 45000 {
		t.Errorf("expected 45000 cents, got %d", w.Price)
	}

	// Bare numbers are accepted too (lenient inputs from older clients).
	if err := json.Unmarshal([]byte(`{"price":450}`), &w); err != nil {
		t.Fatalf("unmarshal bare number failed: %v", err)
	}
	if w.Price != 45000 {
		t.Errorf("expected 45000 cents, got %d", w.Price)
	}
}

package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseAmountCentsAcceptsZero(t *testing.T) {
	got, err := ParseAmountCents("0")
	if err != nil || got != 0 {
		t.Fatalf("expected 0, got %d (err=%v)", got, err)
	}
}

func TestMoneyFromFloat(t *testing.T) {
	if got := MoneyFromFloat(19.99); got.Cents != 1999 {
		t.Fatalf("got %d", got.Cents)
	}
	if got := MoneyFromFloat(50); got.Cents != 5000 {
		t.Fatalf("got %d", got.Cents)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(Money{Cents: 1230})
	if err != nil || string(b) != "12.30" {
		t.Fatalf("marshal got %s (err=%v)", b, err)
	}
	var m Money
	if err := json.Unmarshal([]byte(`"7,5"`), &m); err != nil || m.Cents != 750 {
		t.Fatalf("string form got %d (err=%v)", m.Cents, err)
	}
	if err := json.Unmarshal([]byte(`42`), &m); err != nil || m.Cents != 4200 {
		t.Fatalf("number form got %d (err=%v)", m.Cents, err)
	}
	if err := json.Unmarshal([]byte(`-3`), &m); err == nil {
		t.Fatal("expected error for negative amount")
	}
}

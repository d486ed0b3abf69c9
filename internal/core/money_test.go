package core

import (
	"encoding/json"
	"errors"
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
		{"12.344", 1234, true},
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.001", 0, false},
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

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{10000, "100"},
		{4050, "40.5"},
		{1, "0.01"},
		{0, "0"},
		{-2500, "-25"},
	}
	for i, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Fatalf("case %d expected %q, got %q", i, tc.want, got)
		}
	}
}

func TestMoneyUnmarshalJSON(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		err   bool
	}{
		{`100`, 10000, false},
		{`40.5`, 4050, false},
		{`"12.34"`, 1234, false},
		{`0.125`, 13, false},
		{`null`, 0, false},
		{`-3`, 0, true},
		{`"nope"`, 0, true},
	}
	for i, tc := range cases {
		var m Money
		err := json.Unmarshal([]byte(tc.in), &m)
		if tc.err {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("case %d expected ErrInvalidAmount, got %v", i, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("case %d unexpected error: %v", i, err)
		}
		if m.Cents != tc.cents {
			t.Fatalf("case %d expected %d cents, got %d", i, tc.cents, m.Cents)
		}
	}
}

func TestMoneyMarshalJSONIsNumber(t *testing.T) {
	b, err := json.Marshal(struct {
		A Money `json:"a"`
	}{Money{Cents: 4050}})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"a":40.5}` {
		t.Fatalf("unexpected encoding %s", b)
	}
}

package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestParseDecimal(t *testing.T) {
	cases := map[string]string{
		"1":                    "1000000000000000000",
		"0.7":                  "700000000000000000",
		"0.999834039454456203": "999834039454456203",
		"12.5":                 "12500000000000000000",
		"0":                    "0",
	}
	for input, atomics := range cases {
		d, err := ParseDecimal(input)
		if err != nil {
			t.Fatalf("parse %s: %v", input, err)
		}
		if got := d.Atomics().Dec(); got != atomics {
			t.Fatalf("parse %s: expected atomics %s, got %s", input, atomics, got)
		}
	}
}

func TestParseDecimalRejects(t *testing.T) {
	for _, input := range []string{"-1", "abc", "0.0000000000000000001"} {
		if _, err := ParseDecimal(input); err == nil {
			t.Fatalf("expected %q to be rejected", input)
		}
	}
}

func TestDecimalString(t *testing.T) {
	for _, input := range []string{"1", "0.7", "1.000165988093018268", "0"} {
		if got := MustParseDecimal(input).String(); got != input {
			t.Fatalf("expected %s, got %s", input, got)
		}
	}
}

func TestDecimalPercentMulInt(t *testing.T) {
	got, err := DecimalPercent(70).MulInt(uint256.NewInt(16511228606))
	if err != nil {
		t.Fatalf("mul: %v", err)
	}
	if got.Uint64() != 11557860024 {
		t.Fatalf("expected 11557860024, got %s", got.Dec())
	}
}

func TestDecimalFromRatio(t *testing.T) {
	d, err := DecimalFromRatio(uint256.NewInt(1), uint256.NewInt(4))
	if err != nil {
		t.Fatalf("ratio: %v", err)
	}
	if d.String() != "0.25" {
		t.Fatalf("expected 0.25, got %s", d)
	}
	if _, err := DecimalFromRatio(uint256.NewInt(1), new(uint256.Int)); !errors.Is(err, ErrDivideByZero) {
		t.Fatalf("expected ErrDivideByZero, got %v", err)
	}
}

func TestDecimalJSON(t *testing.T) {
	type wrapper struct {
		Rate Decimal `json:"rate"`
	}
	raw, err := json.Marshal(wrapper{Rate: MustParseDecimal("1.25")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"rate":"1.25"}` {
		t.Fatalf("unexpected encoding %s", raw)
	}
	var out wrapper
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Rate.Equal(MustParseDecimal("1.25")) {
		t.Fatalf("expected 1.25, got %s", out.Rate)
	}
}

func TestMessageName(t *testing.T) {
	if got := MessageName([]byte(`{"deposit":{}}`)); got != "deposit" {
		t.Fatalf("expected deposit, got %s", got)
	}
	if got := MessageName([]byte(`{"a":{},"b":{}}`)); got != "unknown" {
		t.Fatalf("expected unknown for multi-key message, got %s", got)
	}
}

func TestCoinsAmountOf(t *testing.T) {
	coins := Coins{NewCoinU64("uluna", 5), NewCoinU64("uusd", 7)}
	if coins.AmountOf("uusd").Uint64() != 7 {
		t.Fatalf("expected 7uusd")
	}
	if !coins.AmountOf("ukrw").IsZero() {
		t.Fatalf("expected zero for absent denom")
	}
	if err := (Coins{NewCoinU64("uluna", 1), NewCoinU64("uluna", 2)}).Validate(); err == nil {
		t.Fatalf("expected duplicate denomination error")
	}
}

package transaction

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"deposit":     Deposit,
		" withdrawal": Withdrawal,
		"Dispute":     Dispute,
		"RESOLVE ":    Resolve,
		"chargeback":  Chargeback,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseKind(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseKind("refund"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestKindPredicates(t *testing.T) {
	for _, k := range []Kind{Deposit, Withdrawal} {
		if !k.CarriesAmount() || !k.Disputable() {
			t.Fatalf("%s should carry an amount and be disputable", k)
		}
	}
	for _, k := range []Kind{Dispute, Resolve, Chargeback} {
		if k.CarriesAmount() || k.Disputable() {
			t.Fatalf("%s should not carry an amount nor be disputable", k)
		}
	}
}

func TestNormalizeAmount(t *testing.T) {
	got, err := NormalizeAmount(" 12.34567 ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("12.3457")) {
		t.Fatalf("expected 12.3457, got %s", got)
	}

	for _, bad := range []string{"", "0", "0.0000", "-1", "abc"} {
		if _, err := NormalizeAmount(bad); err == nil {
			t.Fatalf("NormalizeAmount(%q): expected error", bad)
		}
	}
}

package inventory

import "testing"

func TestWallet_Copper(t *testing.T) {
	if got := (Wallet{GP: 1, SP: 5, CP: 3}).Copper(); got != 153 {
		t.Fatalf("Copper() = %d, want 153", got)
	}
}

func TestParseCost(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"10gp", 1000},
		{"15 SP", 150},
		{"3cp", 3},
		{" 2 Gp ", 200},
		{"", 0},
		{"free", 0},
		{"10", 0},
		{"gp", 0},
		{"-5gp", 0},
	}
	for _, c := range cases {
		if got := ParseCost(c.in); got != c.want {
			t.Fatalf("ParseCost(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestDeduct_ExactFunds(t *testing.T) {
	w, err := Deduct(Wallet{SP: 1, CP: 5}, 15)
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if w != (Wallet{}) {
		t.Fatalf("expected empty wallet, got %+v", w)
	}
}

func TestDeduct_Insufficient(t *testing.T) {
	if _, err := Deduct(Wallet{CP: 5}, 20); err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestDeduct_Canonicalizes(t *testing.T) {
	// 15 sp is a non-minimal breakdown; any deduction normalizes it.
	w, err := Deduct(Wallet{SP: 15}, 20)
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if w != (Wallet{GP: 1, SP: 3, CP: 0}) {
		t.Fatalf("expected canonical 1gp 3sp, got %+v", w)
	}
}

func TestDeduct_RoundTripPreservesValue(t *testing.T) {
	start := Wallet{GP: 2, SP: 17, CP: 43}
	const cost = 137
	w, err := Deduct(start, cost)
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	restored := FromCopper(w.Copper() + cost)
	if restored.Copper() != start.Copper() {
		t.Fatalf("value not preserved: %d != %d", restored.Copper(), start.Copper())
	}
	again, err := Deduct(restored, cost)
	if err != nil {
		t.Fatalf("re-deduct: %v", err)
	}
	if again != w {
		t.Fatalf("re-deduct diverged: %+v != %+v", again, w)
	}
}

package inventory

import (
	"regexp"
	"strconv"
	"strings"
)

// Wallet holds an owner's coin in three denominations. Values never go
// negative; 1 gp = 10 sp = 100 cp.
type Wallet struct {
	GP int `json:"gp"`
	SP int `json:"sp"`
	CP int `json:"cp"`
}

const (
	copperPerSilver = 10
	copperPerGold   = 100
)

// Copper collapses the wallet to its copper-equivalent value.
func (w Wallet) Copper() int {
	return w.GP*copperPerGold + w.SP*copperPerSilver + w.CP
}

// FromCopper expands a copper value into the canonical minimal denomination
// breakdown, largest coins first.
func FromCopper(n int) Wallet {
	if n < 0 {
		n = 0
	}
	return Wallet{
		GP: n / copperPerGold,
		SP: (n % copperPerGold) / copperPerSilver,
		CP: n % copperPerSilver,
	}
}

var costPattern = regexp.MustCompile(`^([0-9]+)\s*(gp|sp|cp)$`)

// ParseCost reads a price token like "10gp" or "15 SP" and returns its value
// in copper. Absent or unparsable input means free.
func ParseCost(text string) int {
	m := costPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	switch m[2] {
	case "gp":
		return n * copperPerGold
	case "sp":
		return n * copperPerSilver
	default:
		return n
	}
}

// Deduct subtracts cost (in copper) from the wallet and returns the new
// wallet in canonical form. Note the canonicalization: a wallet holding
// non-minimal denominations (say 15 sp) is normalized by any deduction.
// ErrInsufficientFunds is returned, and the input left untouched, when the
// wallet's total value cannot cover the cost.
func Deduct(w Wallet, costCopper int) (Wallet, error) {
	total := w.Copper()
	if total < costCopper {
		return Wallet{}, ErrInsufficientFunds
	}
	return FromCopper(total - costCopper), nil
}

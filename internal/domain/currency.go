/**
 * @description
 * Currency support is configuration, not code: the set of accepted ISO 4217
 * codes is loaded at startup and consulted wherever an account or payment names
 * a currency. Validation helpers for owner/account slugs and idempotency tokens
 * live here as well since they gate the same creation paths.
 */

package domain

import (
	"regexp"
	"sort"
	"strings"
)

const (
	// MaxNameLength bounds owner and account slugs.
	MaxNameLength = 50
	// MaxUniqueIDLength bounds caller-supplied idempotency tokens.
	MaxUniqueIDLength = 128
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// CurrencyTable is the set of currency codes the ledger accepts. Codes are
// normalized to upper case on load and on lookup.
type CurrencyTable struct {
	codes map[string]struct{}
}

// NewCurrencyTable builds a table from the configured code list. Blank entries
// are dropped.
func NewCurrencyTable(codes []string) CurrencyTable {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		set[c] = struct{}{}
	}
	return CurrencyTable{codes: set}
}

// Contains reports whether the code is an accepted currency.
func (t CurrencyTable) Contains(code string) bool {
	_, ok := t.codes[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// Codes returns the accepted codes in sorted order.
func (t CurrencyTable) Codes() []string {
	out := make([]string, 0, len(t.codes))
	for c := range t.codes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ValidateName checks an owner or account slug: letters, digits, hyphens and
// underscores, at most MaxNameLength characters.
func ValidateName(field, name string) error {
	if name == "" {
		return Validationf("%s is required", field)
	}
	if len(name) > MaxNameLength {
		return Validationf("%s must be at most %d characters", field, MaxNameLength)
	}
	if !slugPattern.MatchString(name) {
		return Validationf("%s may only contain letters, numbers, hyphens and underscores", field)
	}
	return nil
}

// ValidateUniqueID checks a caller-supplied idempotency token.
func ValidateUniqueID(uniqueID string) error {
	if strings.TrimSpace(uniqueID) == "" {
		return Validationf("unique_id must not be blank")
	}
	if len(uniqueID) > MaxUniqueIDLength {
		return Validationf("unique_id must be at most %d characters", MaxUniqueIDLength)
	}
	return nil
}

// Package expiry parses and evaluates the size/age tiered expiry rules
// used by the compaction planner to decide whether a live record has aged
// out.
package expiry

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const daySeconds int64 = 86400

// Tier is one (minimum size, age in days) rule. A record is expired under
// a tier if its value is at least Size bytes and was written at least Days
// days ago.
type Tier struct {
	Size int64 // bytes
	Days int64
}

// Policy is a sorted (largest-size-first) set of expiry tiers.
type Policy struct {
	tiers []Tier
}

// New builds a Policy from already-parsed tiers, sorting them by size
// descending so the largest matching tier is always checked first.
func New(tiers []Tier) *Policy {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Size > sorted[j].Size })
	return &Policy{tiers: sorted}
}

// Empty reports whether the policy has no tiers (expiry disabled).
func (p *Policy) Empty() bool {
	return p == nil || len(p.tiers) == 0
}

// Expired reports whether a record with the given write timestamp (unix
// seconds) and value size is expired under this policy, evaluated at now
// (unix seconds).
//
// Tiers are walked largest-size-first; the first tier whose size threshold
// the record meets is authoritative for the days threshold, and no further
// (smaller) tier is consulted even if it would also match.
func (p *Policy) Expired(tstamp int64, vsz int64, now int64) bool {
	if p.Empty() {
		return false
	}
	for _, tier := range p.tiers {
		if vsz >= tier.Size {
			return tstamp <= now-tier.Days*daySeconds
		}
	}
	return false
}

// ParseSize parses a decimal size optionally suffixed with K or M
// (case-insensitive; no suffix means bytes).
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("expiry: empty size")
	}

	multiplier := int64(1)
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "K"):
		multiplier = 1024
		s = s[:len(s)-1]
	case strings.HasSuffix(upper, "M"):
		multiplier = 1024 * 1024
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "expiry: invalid size %q", s)
	}
	if n < 0 {
		return 0, errors.Errorf("expiry: negative size %q", s)
	}
	return n * multiplier, nil
}

// ParseDays parses a non-negative integer day count.
func ParseDays(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "expiry: invalid days %q", s)
	}
	if n < 0 {
		return 0, errors.Errorf("expiry: negative days %q", s)
	}
	return n, nil
}

// ParseRanges parses the -r flag's comma-separated SIZE:DAYS entries.
func ParseRanges(spec string) ([]Tier, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	var tiers []Tier
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("expiry: invalid tier %q (want SIZE:DAYS)", entry)
		}

		size, err := ParseSize(parts[0])
		if err != nil {
			return nil, err
		}
		days, err := ParseDays(parts[1])
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, Tier{Size: size, Days: days})
	}
	return tiers, nil
}

// ParseLegacy builds the single-tier shorthand policy from -e (expire days)
// and -s (minimum size). expireDays == "" means -e was not given, in which
// case the legacy tier is omitted entirely (ok == false). A missing -s
// defaults to a size of 0, matching "expire anything this old regardless
// of size".
func ParseLegacy(expireDays, minSize string) (tier Tier, ok bool, err error) {
	if expireDays == "" {
		return Tier{}, false, nil
	}
	days, err := ParseDays(expireDays)
	if err != nil {
		return Tier{}, false, err
	}
	if minSize == "" {
		minSize = "0"
	}
	size, err := ParseSize(minSize)
	if err != nil {
		return Tier{}, false, err
	}
	return Tier{Size: size, Days: days}, true, nil
}

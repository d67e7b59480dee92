package rowmodel

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"
)

// NormalizeCommunities accepts a string, a []string, a []any of strings/ints,
// or nil, and returns a sorted, deduplicated list of community tokens.
func NormalizeCommunities(raw any) []string {
	var tokens []string

	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		tokens = strings.Fields(v)
	case []string:
		tokens = append(tokens, v...)
	case []any:
		for _, item := range v {
			switch t := item.(type) {
			case string:
				tokens = append(tokens, strings.Fields(t)...)
			case int:
				tokens = append(tokens, strconv.Itoa(t))
			case int64:
				tokens = append(tokens, strconv.FormatInt(t, 10))
			case float64:
				tokens = append(tokens, strconv.FormatInt(int64(t), 10))
			case fmt.Stringer:
				tokens = append(tokens, t.String())
			}
		}
	default:
		return nil
	}

	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// CommunityHash computes a deterministic SHA-256 digest over the sorted,
// normalized community list, each token followed by a 0x00 separator.
// Stable across runs and platforms.
func CommunityHash(sorted []string) string {
	h := sha256.New()
	for _, tok := range sorted {
		h.Write([]byte(tok))
		h.Write([]byte{0x00})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeASPath joins a list-form AS_PATH with single spaces and collapses
// runs of whitespace in a string-form one. {…} aggregates and (…)
// confederation syntax are preserved as-is.
func NormalizeASPath(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.Join(strings.Fields(v), " ")
	case []string:
		return strings.Join(v, " ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			} else {
				parts = append(parts, fmt.Sprintf("%v", item))
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

// headAS returns the leftmost purely numeric AS_PATH token, or "" if the
// path is empty or the first token is a set/confederation segment.
func headAS(asPath string) string {
	asPath = strings.TrimSpace(asPath)
	if asPath == "" {
		return ""
	}
	first := strings.Fields(asPath)[0]
	if _, err := strconv.Atoi(first); err != nil {
		return ""
	}
	return first
}

// NormalizePrefix lowercases v6 addresses, zeroes host bits, and ensures a
// mask is present. Non-parseable input is returned trimmed and
// lowercased, with the default mask appended when it had none.
func NormalizePrefix(cidr string, afi AFI) string {
	cidr = strings.TrimSpace(cidr)
	if cidr == "" {
		return cidr
	}
	if !strings.Contains(cidr, "/") {
		if afi == AFIv6 {
			cidr += "/128"
		} else {
			cidr += "/32"
		}
	}
	lower := strings.ToLower(cidr)
	prefix, err := netip.ParsePrefix(lower)
	if err != nil {
		return lower
	}
	masked := prefix.Masked()
	return masked.String()
}

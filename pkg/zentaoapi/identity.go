package zentaoapi

import (
	"strings"

	"github.com/go-faster/jx"
)

// personKeys are the record fields a denormalized upstream user object may
// carry a login under. Kept as an explicit list; any other key contributes
// nothing.
var personKeys = map[string]bool{
	"account":  true,
	"realname": true,
	"name":     true,
	"user":     true,
}

// NormalizeAccount canonicalizes a login for comparison: trim + lowercase.
func NormalizeAccount(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ExtractAccounts pulls every normalized account string out of an untyped
// upstream person field. The upstream is inconsistent: sometimes a bare login
// string, sometimes a user record, sometimes a list of either, arbitrarily
// nested. Unrecognized shapes (null, booleans, unknown keys) yield nothing.
// The result is deduplicated.
func ExtractAccounts(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	collect := func(s string) {
		s = NormalizeAccount(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	d := jx.DecodeBytes(raw)
	if err := extractInto(d, collect); err != nil {
		return out
	}
	return out
}

// extractInto walks one JSON value, feeding candidate strings to collect.
func extractInto(d *jx.Decoder, collect func(string)) error {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return err
		}
		collect(s)
		return nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return err
		}
		collect(n.String())
		return nil
	case jx.Array:
		return d.Arr(func(d *jx.Decoder) error {
			return extractInto(d, collect)
		})
	case jx.Object:
		return d.Obj(func(d *jx.Decoder, key string) error {
			if !personKeys[key] {
				return d.Skip()
			}
			return extractInto(d, collect)
		})
	default:
		return d.Skip()
	}
}

// MatchesAccount reports whether an untyped person field refers to the given
// account, case- and whitespace-insensitively.
func MatchesAccount(raw []byte, account string) bool {
	target := NormalizeAccount(account)
	if target == "" {
		return false
	}
	for _, candidate := range ExtractAccounts(raw) {
		if candidate == target {
			return true
		}
	}
	return false
}

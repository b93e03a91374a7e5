package astrofile

import (
	"strings"

	"github.com/gobwas/glob"
)

// Criteria selects files by header value. Keys are field names, optionally
// suffixed with an operator: _lt, _gt, _ne, _contains, _icontains or _match
// (glob with {a,b} alternation). A bare field name tests equality, numerically when both
// sides are numbers and case-insensitively otherwise. All criteria must hold.
type Criteria map[string]string

var operators = []string{"lt", "gt", "ne", "contains", "icontains", "match"}

// splitOperator separates a trailing operator suffix from a criteria key.
func splitOperator(key string) (field, op string) {
	if i := strings.LastIndexByte(key, '_'); i > 0 {
		suffix := strings.ToLower(key[i+1:])
		for _, o := range operators {
			if suffix == o {
				return key[:i], o
			}
		}
	}
	return key, ""
}

// Match reports whether the header lookup satisfies every criterion.
// A missing field never matches.
func (c Criteria) Match(lookup func(field string) any) bool {
	for key, want := range c {
		field, op := splitOperator(key)
		v := lookup(field)
		if v == nil || !matchValue(v, op, want) {
			return false
		}
	}
	return true
}

func matchValue(v any, op, want string) bool {
	got := FormatValue(v)
	fv, vNum := toFloat(v)
	fw, wNum := toFloat(want)
	if _, isStr := v.(string); isStr {
		vNum = false
	}
	numeric := vNum && wNum

	switch op {
	case "":
		if numeric {
			return fv == fw
		}
		return strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want))
	case "ne":
		if numeric {
			return fv != fw
		}
		return !strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want))
	case "lt":
		if numeric {
			return fv < fw
		}
		return got < want
	case "gt":
		if numeric {
			return fv > fw
		}
		return got > want
	case "contains":
		return strings.Contains(got, want)
	case "icontains":
		return strings.Contains(strings.ToLower(got), strings.ToLower(want))
	case "match":
		g, err := glob.Compile(want)
		if err != nil {
			return false
		}
		return g.Match(got)
	}
	return false
}

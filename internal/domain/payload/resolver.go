// Package payload is the single access path into raw technology payloads.
//
// Backend payloads drift between API versions: sections move, fields get
// renamed, optional parts disappear.  Every consumer reads through a Path
// list resolved in order, so the tolerance for unknown shapes lives here and
// nowhere else.  Nothing in this package returns an error for a missing or
// malformed field; absence is reported through the ok result.
package payload

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// Path is a compiled lookup into a decoded payload.
type Path struct {
	raw  string
	expr jp.Expr
}

// ParsePath compiles raw into a Path.  A leading "$" selects full JSONPath
// syntax; anything else is read as dot-separated object keys.
func ParsePath(raw string) (Path, error) {
	if strings.HasPrefix(raw, "$") {
		x, err := jp.ParseString(raw)
		if err != nil {
			return Path{}, err
		}
		return Path{raw: raw, expr: x}, nil
	}
	var x jp.Expr
	for _, key := range strings.Split(raw, ".") {
		if key == "" {
			continue
		}
		x = append(x, jp.Child(key))
	}
	return Path{raw: raw, expr: x}, nil
}

// MustPath is ParsePath for package-level path tables.  It panics on a
// malformed JSONPath.
func MustPath(raw string) Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic("payload: bad path " + strconv.Quote(raw) + ": " + err.Error())
	}
	return p
}

// String returns the path as written.
func (p Path) String() string { return p.raw }

// Under returns p rooted beneath parent.
func (p Path) Under(parent Path) Path {
	x := make(jp.Expr, 0, len(parent.expr)+len(p.expr))
	x = append(x, parent.expr...)
	x = append(x, p.expr...)
	return Path{raw: parent.raw + "." + p.raw, expr: x}
}

// Resolve walks the candidate paths in order and returns the first value that
// is present and not null.  Traversal through a missing or non-object
// intermediate counts as absent.
func Resolve(root interface{}, paths ...Path) (interface{}, bool) {
	if root == nil {
		return nil, false
	}
	for _, p := range paths {
		if len(p.expr) == 0 {
			continue
		}
		if v := p.expr.First(root); v != nil {
			return v, true
		}
	}
	return nil, false
}

// ResolveArray returns the first candidate that resolves to an array.  A
// candidate holding some other type is skipped, not returned.
func ResolveArray(root interface{}, paths ...Path) ([]interface{}, bool) {
	for _, p := range paths {
		if v, ok := Resolve(root, p); ok {
			if arr, isArr := v.([]interface{}); isArr {
				return arr, true
			}
		}
	}
	return nil, false
}

// ResolveObject returns the first candidate that resolves to an object.  An
// empty object still wins: it is present, it just holds nothing.
func ResolveObject(root interface{}, paths ...Path) (map[string]interface{}, bool) {
	for _, p := range paths {
		if v, ok := Resolve(root, p); ok {
			if obj, isObj := v.(map[string]interface{}); isObj {
				return obj, true
			}
		}
	}
	return nil, false
}

// ResolveString returns the first candidate that resolves to a string.
func ResolveString(root interface{}, paths ...Path) (string, bool) {
	for _, p := range paths {
		if v, ok := Resolve(root, p); ok {
			if s, isStr := v.(string); isStr {
				return s, true
			}
		}
	}
	return "", false
}

// Number reports v as a float64 when it is a JSON number.  Strings are not
// numbers here; see Coerce.
func Number(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Coerce is Number plus numeric strings ("12.5", " 3 ").  Empty and
// non-numeric strings are rejected.
func Coerce(v interface{}) (float64, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return Number(v)
}

// Year reports v as a calendar year when it is an integral number.
func Year(v interface{}) (int, bool) {
	f, ok := Coerce(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

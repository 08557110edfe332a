// Package value implements the tagged dynamic value that flows through every
// property map, expression, and rule in the transformation engine: a small
// closed union over integer, float, string, boolean, timestamp, and null,
// with arithmetic, comparison, and tabular-text coercion rules defined once
// so every caller (builder, evaluator, rule engine) agrees on them.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind tags which arm of the union is populated.
type Kind int

const (
	// Null is the zero Kind: a freshly-allocated Value is null, matching
	// the contract that missing/empty cells round-trip to null without
	// any explicit construction.
	Null Kind = iota
	Int
	Float
	String
	Bool
	Timestamp
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Int:
		return "integer"
	case Float:
		return "float"
	case String:
		return "string"
	case Bool:
		return "boolean"
	case Timestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Value is the tagged union. It is a value type (not a pointer) so property
// maps and expression contexts can copy it freely without aliasing concerns.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
	t    time.Time
}

// NullValue is the shared representation of null. Equal to the zero Value.
var NullValue = Value{}

func OfInt(i int64) Value       { return Value{kind: Int, i: i} }
func OfFloat(f float64) Value   { return Value{kind: Float, f: f} }
func OfString(s string) Value   { return Value{kind: String, s: s} }
func OfBool(b bool) Value       { return Value{kind: Bool, b: b} }
func OfTime(t time.Time) Value  { return Value{kind: Timestamp, t: t} }
func OfAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return NullValue
	case Value:
		return x
	case int:
		return OfInt(int64(x))
	case int64:
		return OfInt(x)
	case float64:
		return OfFloat(x)
	case float32:
		return OfFloat(float64(x))
	case bool:
		return OfBool(x)
	case string:
		return OfString(x)
	case time.Time:
		return OfTime(x)
	default:
		return OfString(fmt.Sprintf("%v", x))
	}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }

func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case Int:
		return v.i, true
	case Float:
		return int64(v.f), true
	default:
		return 0, false
	}
}

func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case Int:
		return float64(v.i), true
	case Float:
		return v.f, true
	default:
		return 0, false
	}
}

func (v Value) AsString() (string, bool) {
	if v.kind == String {
		return v.s, true
	}
	return "", false
}

func (v Value) AsBool() (bool, bool) {
	if v.kind == Bool {
		return v.b, true
	}
	return false, false
}

func (v Value) AsTime() (time.Time, bool) {
	if v.kind == Timestamp {
		return v.t, true
	}
	return time.Time{}, false
}

// Truthy reports whether the value counts as true in a logical/conditional
// position: booleans by their own value, numbers by non-zero, strings by
// non-empty, null and anything else as false.
func (v Value) Truthy() bool {
	switch v.kind {
	case Bool:
		return v.b
	case Int:
		return v.i != 0
	case Float:
		return v.f != 0
	case String:
		return v.s != ""
	default:
		return false
	}
}

// Raw returns the value unwrapped to its nearest Go representation, for
// callers (report projection, JSON/YAML marshalling) that need a plain any.
func (v Value) Raw() any {
	switch v.kind {
	case Int:
		return v.i
	case Float:
		return v.f
	case String:
		return v.s
	case Bool:
		return v.b
	case Timestamp:
		return v.t.Format(time.RFC3339)
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case Null:
		return "null"
	case Int:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case String:
		return v.s
	case Bool:
		return strconv.FormatBool(v.b)
	case Timestamp:
		return v.t.Format(time.RFC3339)
	default:
		return ""
	}
}

func isNumeric(k Kind) bool { return k == Int || k == Float }

// Add implements "+" with integer-to-float promotion; any null operand
// yields null (spec P5); adding two strings concatenates.
func Add(a, b Value) Value {
	if a.IsNull() || b.IsNull() {
		return NullValue
	}
	if a.kind == String && b.kind == String {
		return OfString(a.s + b.s)
	}
	if isNumeric(a.kind) && isNumeric(b.kind) {
		return arith(a, b, func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y })
	}
	return NullValue
}

func Sub(a, b Value) Value {
	if a.IsNull() || b.IsNull() || !isNumeric(a.kind) || !isNumeric(b.kind) {
		return NullValue
	}
	return arith(a, b, func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y })
}

func Mul(a, b Value) Value {
	if a.IsNull() || b.IsNull() || !isNumeric(a.kind) || !isNumeric(b.kind) {
		return NullValue
	}
	return arith(a, b, func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y })
}

// Div implements "/" with division-by-zero yielding null rather than an
// error, so a dependent computation gracefully becomes null (spec B1).
func Div(a, b Value) Value {
	if a.IsNull() || b.IsNull() || !isNumeric(a.kind) || !isNumeric(b.kind) {
		return NullValue
	}
	bf, _ := b.AsFloat()
	if bf == 0 {
		return NullValue
	}
	if a.kind == Int && b.kind == Int {
		return OfFloat(float64(a.i) / float64(b.i))
	}
	af, _ := a.AsFloat()
	return OfFloat(af / bf)
}

// Mod implements "%"; zero modulus yields null, mirroring Div.
func Mod(a, b Value) Value {
	if a.IsNull() || b.IsNull() || !isNumeric(a.kind) || !isNumeric(b.kind) {
		return NullValue
	}
	if a.kind == Int && b.kind == Int {
		if b.i == 0 {
			return NullValue
		}
		return OfInt(a.i % b.i)
	}
	af, _ := a.AsFloat()
	bf, _ := b.AsFloat()
	if bf == 0 {
		return NullValue
	}
	return OfFloat(math.Mod(af, bf))
}

// Pow implements "**".
func Pow(a, b Value) Value {
	if a.IsNull() || b.IsNull() || !isNumeric(a.kind) || !isNumeric(b.kind) {
		return NullValue
	}
	af, _ := a.AsFloat()
	bf, _ := b.AsFloat()
	r := math.Pow(af, bf)
	if a.kind == Int && b.kind == Int && bf >= 0 {
		return OfInt(int64(r))
	}
	return OfFloat(r)
}

func arith(a, b Value, iop func(int64, int64) int64, fop func(float64, float64) float64) Value {
	if a.kind == Int && b.kind == Int {
		return OfInt(iop(a.i, b.i))
	}
	af, _ := a.AsFloat()
	bf, _ := b.AsFloat()
	return OfFloat(fop(af, bf))
}

// Equal compares two values after numeric coercion, per spec §3. Two nulls
// are equal; a null and anything else are not.
func Equal(a, b Value) bool {
	if a.IsNull() && b.IsNull() {
		return true
	}
	if a.IsNull() || b.IsNull() {
		return false
	}
	if isNumeric(a.kind) && isNumeric(b.kind) {
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		return af == bf
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case String:
		return a.s == b.s
	case Bool:
		return a.b == b.b
	case Timestamp:
		return a.t.Equal(b.t)
	default:
		return false
	}
}

// Compare implements ordering for < <= > >=. ok is false for incomparable
// types (e.g. string vs number), in which case callers should treat the
// comparison as false per spec §4.4.
func Compare(a, b Value) (cmp int, ok bool) {
	if isNumeric(a.kind) && isNumeric(b.kind) {
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	if a.kind == String && b.kind == String {
		return strings.Compare(a.s, b.s), true
	}
	if a.kind == Timestamp && b.kind == Timestamp {
		switch {
		case a.t.Before(b.t):
			return -1, true
		case a.t.After(b.t):
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

// CoerceString converts the textual form of a tabular cell to a Value of the
// declared type. An empty cell always yields null regardless of declared
// type, per spec §3 ("missing/empty cells yield null").
func CoerceString(cell string, kind string) (Value, error) {
	if cell == "" {
		return NullValue, nil
	}
	switch kind {
	case "integer":
		i, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
		if err != nil {
			// Tolerate "45000.0"-style integer columns emitted by
			// spreadsheet exports, per the original reference's
			// use of pandas (which reads numeric columns as float64
			// by default).
			f, ferr := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if ferr != nil {
				return NullValue, fmt.Errorf("cannot parse %q as integer: %w", cell, err)
			}
			return OfInt(int64(f)), nil
		}
		return OfInt(i), nil
	case "float":
		f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return NullValue, fmt.Errorf("cannot parse %q as float: %w", cell, err)
		}
		return OfFloat(f), nil
	case "boolean":
		b, err := strconv.ParseBool(strings.TrimSpace(cell))
		if err != nil {
			return NullValue, fmt.Errorf("cannot parse %q as boolean: %w", cell, err)
		}
		return OfBool(b), nil
	case "string", "":
		return OfString(cell), nil
	default:
		return NullValue, fmt.Errorf("unknown declared type %q", kind)
	}
}

// FormatPadded implements the id-template format mini-spec from spec §4.3:
// integer zero-padding ("0Nd") and passthrough for anything else.
func FormatPadded(v Value, spec string) (string, error) {
	if spec == "" {
		return v.String(), nil
	}
	if strings.HasSuffix(spec, "d") && len(spec) >= 2 {
		widthPart := spec[:len(spec)-1]
		width := 0
		zeroPad := false
		if strings.HasPrefix(widthPart, "0") && len(widthPart) > 1 {
			zeroPad = true
			widthPart = widthPart[1:]
		} else if widthPart == "0" {
			zeroPad = true
			widthPart = ""
		}
		if widthPart != "" {
			w, err := strconv.Atoi(widthPart)
			if err != nil {
				return "", fmt.Errorf("invalid format spec %q: %w", spec, err)
			}
			width = w
		}
		n, ok := v.AsInt()
		if !ok {
			return "", fmt.Errorf("format spec %q requires an integer value, got %s", spec, v.kind)
		}
		if zeroPad {
			return fmt.Sprintf("%0*d", width, n), nil
		}
		return fmt.Sprintf("%*d", width, n), nil
	}
	return v.String(), nil
}

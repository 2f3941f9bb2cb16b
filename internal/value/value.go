package value

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/cockroachdb/apd/v3"
)

// Value is a sealed interface over every storable value.
// Only the types declared in this package implement it.
type Value interface {
	Kind() Kind
	sealed()
}

// Null is the absence of a value that was nevertheless stored.
type Null struct{}

func (Null) Kind() Kind { return KindNull }
func (Null) sealed()    {}

// Bool is a boolean value.
type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) sealed()    {}

// Int is a signed 64-bit integer.
type Int int64

func (Int) Kind() Kind { return KindInt }
func (Int) sealed()    {}

// Float is an IEEE-754 double. NaN and the infinities are storable.
type Float float64

func (Float) Kind() Kind { return KindFloat }
func (Float) sealed()    {}

// String is a UTF-8 string.
type String string

func (String) Kind() Kind { return KindString }
func (String) sealed()    {}

// Bytes is an opaque byte sequence.
type Bytes []byte

func (Bytes) Kind() Kind { return KindBytes }
func (Bytes) sealed()    {}

// List is an ordered, mutable-in-spirit sequence.
type List []Value

func (List) Kind() Kind { return KindList }
func (List) sealed()    {}

// Tuple is an ordered fixed-arity sequence. It is distinct from List.
type Tuple []Value

func (Tuple) Kind() Kind { return KindTuple }
func (Tuple) sealed()    {}

// Dict maps string keys to values.
// Use SortedKeys() for deterministic iteration.
type Dict map[string]Value

func (Dict) Kind() Kind { return KindDict }
func (Dict) sealed()    {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
func (d Dict) SortedKeys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, CompareUTF16)
	return keys
}

// CompareUTF16 orders strings by UTF-16 code units as RFC 8785 requires.
// Go's native string comparison orders by UTF-8 bytes, which differs for
// characters outside the BMP.
func CompareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// members is the shared representation of Set and FrozenSet, keyed by
// memberKey. The first value inserted for a key is the one kept.
type members map[string]Value

func newMembers(vals []Value) members {
	m := make(members, len(vals))
	for _, v := range vals {
		k := memberKey(v)
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return m
}

// memberKey identifies a set member. Values that Equal reports as equal
// share a key: decimals are reduced, -0.0 folds into 0.0 and datetimes are
// keyed by their UTC instant.
func memberKey(v Value) string {
	var sb strings.Builder
	writeKey(&sb, v)
	return sb.String()
}

func writeKey(sb *strings.Builder, v Value) {
	switch val := v.(type) {
	case Float:
		if val == 0 {
			sb.WriteString("0.0")
			return
		}
	case Decimal:
		sb.WriteString("Decimal('")
		sb.WriteString(val.canonical())
		sb.WriteString("')")
		return
	case DateTime:
		sb.WriteString("datetime(")
		sb.WriteString(val.Time.UTC().Format(time.RFC3339Nano))
		sb.WriteByte(')')
		return
	case Tuple:
		sb.WriteByte('(')
		writeKeys(sb, val)
		sb.WriteByte(')')
		return
	case List:
		sb.WriteByte('[')
		writeKeys(sb, val)
		sb.WriteByte(']')
		return
	case Dict:
		sb.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%q: ", k))
			writeKey(sb, val[k])
		}
		sb.WriteByte('}')
		return
	case Set:
		sb.WriteString("set(")
		sb.WriteString(strings.Join(val.m.keys(), ", "))
		sb.WriteByte(')')
		return
	case FrozenSet:
		sb.WriteString("frozenset(")
		sb.WriteString(strings.Join(val.m.keys(), ", "))
		sb.WriteByte(')')
		return
	}
	writeRepr(sb, v)
}

func writeKeys(sb *strings.Builder, vals []Value) {
	for i, elem := range vals {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeKey(sb, elem)
	}
}

func (m members) keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (m members) sorted() []Value {
	keys := m.keys()
	out := make([]Value, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

// Set is an unordered collection of unique hashable values.
type Set struct {
	m members
}

// NewSet builds a Set, dropping duplicates.
func NewSet(vals ...Value) Set {
	return Set{m: newMembers(vals)}
}

func (Set) Kind() Kind { return KindSet }
func (Set) sealed()    {}

// Len returns the number of members.
func (s Set) Len() int { return len(s.m) }

// Has reports whether a member equal to v is present.
func (s Set) Has(v Value) bool {
	_, ok := s.m[memberKey(v)]
	return ok
}

// Members returns the members in a deterministic order. Insertion order is
// not retained.
func (s Set) Members() []Value { return s.m.sorted() }

// FrozenSet is an immutable Set. It is hashable, so it may itself be a member
// of a Set or FrozenSet.
type FrozenSet struct {
	m members
}

// NewFrozenSet builds a FrozenSet, dropping duplicates.
func NewFrozenSet(vals ...Value) FrozenSet {
	return FrozenSet{m: newMembers(vals)}
}

func (FrozenSet) Kind() Kind { return KindFrozenSet }
func (FrozenSet) sealed()    {}

// Len returns the number of members.
func (s FrozenSet) Len() int { return len(s.m) }

// Has reports whether a member equal to v is present.
func (s FrozenSet) Has(v Value) bool {
	_, ok := s.m[memberKey(v)]
	return ok
}

// Members returns the members in a deterministic order.
func (s FrozenSet) Members() []Value { return s.m.sorted() }

// Decimal is an arbitrary-precision decimal number. The exponent is kept,
// so "19.90" and "19.9" round-trip to their own text.
type Decimal struct {
	d *apd.Decimal
}

// NewDecimal parses a decimal from its text form.
func NewDecimal(s string) (Decimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return Decimal{d: d}, nil
}

// MustDecimal is NewDecimal for literals known to be valid.
func MustDecimal(s string) Decimal {
	d, err := NewDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DecimalFromApd wraps an existing apd decimal. The argument is copied.
func DecimalFromApd(d *apd.Decimal) Decimal {
	var c apd.Decimal
	c.Set(d)
	return Decimal{d: &c}
}

func (Decimal) Kind() Kind { return KindDecimal }
func (Decimal) sealed()    {}

// Apd returns a copy of the underlying apd decimal.
func (d Decimal) Apd() *apd.Decimal {
	var c apd.Decimal
	if d.d != nil {
		c.Set(d.d)
	}
	return &c
}

// String returns the canonical text form.
func (d Decimal) String() string {
	if d.d == nil {
		return "0"
	}
	return d.d.String()
}

// canonical is the text of the reduced value, shared by every spelling of
// the same number ("1.0", "1.00" and "1" all give "1").
func (d Decimal) canonical() string {
	a := d.Apd()
	if a.Form != apd.Finite {
		return a.String()
	}
	if a.IsZero() {
		return "0"
	}
	var r apd.Decimal
	r.Reduce(a)
	return r.String()
}

// Equal compares numerically; non-finite values compare by text.
func (d Decimal) Equal(o Decimal) bool {
	a, b := d.Apd(), o.Apd()
	if a.Form != apd.Finite || b.Form != apd.Finite {
		return a.String() == b.String()
	}
	return a.Cmp(b) == 0
}

const (
	dateLayout      = "2006-01-02"
	timeLayout      = "15:04:05.999999999"
	naiveDateLayout = "2006-01-02T15:04:05"
	// secondsOffsetLayout is RFC 3339 with a +hh:mm:ss offset, for zones
	// whose offset is not a whole number of minutes.
	secondsOffsetLayout = "2006-01-02T15:04:05.999999999Z07:00:00"

	// MaxYear is the last year the four-digit text forms can carry.
	MaxYear = 9999
)

// Date is a calendar date without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (Date) Kind() Kind { return KindDate }
func (Date) sealed()    {}

// Validate reports an error unless d is a real calendar date in years
// 0 through MaxYear.
func (d Date) Validate() error {
	if d.Year < 0 || d.Year > MaxYear {
		return fmt.Errorf("year %d outside 0..%d", d.Year, MaxYear)
	}
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	if t.Year() != d.Year || t.Month() != d.Month || t.Day() != d.Day {
		return fmt.Errorf("%04d-%02d-%02d is not a calendar date", d.Year, int(d.Month), d.Day)
	}
	return nil
}

// String returns YYYY-MM-DD.
func (d Date) String() string {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Format(dateLayout)
}

// DateTime is an instant with its original offset.
type DateTime struct {
	time.Time
}

// NewDateTime wraps t.
func NewDateTime(t time.Time) DateTime {
	return DateTime{Time: t}
}

// ParseDateTime accepts RFC 3339 with optional fractional seconds, and the
// same with a +hh:mm:ss offset. Text without an offset is read as UTC.
func ParseDateTime(s string) (DateTime, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateTime{Time: t}, nil
	}
	if t, err := time.Parse(secondsOffsetLayout, s); err == nil {
		return DateTime{Time: t}, nil
	}
	t, err := time.ParseInLocation(naiveDateLayout, s, time.UTC)
	if err != nil {
		return DateTime{}, fmt.Errorf("parse datetime %q: %w", s, err)
	}
	return DateTime{Time: t}, nil
}

func (DateTime) Kind() Kind { return KindDateTime }
func (DateTime) sealed()    {}

// Validate reports an error unless d's local year is within 0 through
// MaxYear and its offset is under a day.
func (d DateTime) Validate() error {
	if y := d.Year(); y < 0 || y > MaxYear {
		return fmt.Errorf("year %d outside 0..%d", y, MaxYear)
	}
	if _, off := d.Zone(); off <= -24*3600 || off >= 24*3600 {
		return fmt.Errorf("offset %ds is a day or more", off)
	}
	return nil
}

// String returns RFC 3339 with nanoseconds. An offset with a seconds part
// is written as +hh:mm:ss.
func (d DateTime) String() string {
	if _, off := d.Zone(); off%60 != 0 {
		return d.Time.Format(secondsOffsetLayout)
	}
	return d.Time.Format(time.RFC3339Nano)
}

// Time is a time of day without a date or zone.
type Time struct {
	Hour       int
	Minute     int
	Second     int
	Nanosecond int
}

// NewTime builds a Time.
func NewTime(hour, minute, second, nsec int) Time {
	return Time{Hour: hour, Minute: minute, Second: second, Nanosecond: nsec}
}

// ParseTime parses HH:MM:SS with optional fractional seconds.
func ParseTime(s string) (Time, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return Time{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), Nanosecond: t.Nanosecond()}, nil
}

func (Time) Kind() Kind { return KindTime }
func (Time) sealed()    {}

// Validate reports an error unless every field is within its clock range.
func (t Time) Validate() error {
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 ||
		t.Nanosecond < 0 || t.Nanosecond > 999999999 {
		return fmt.Errorf("%02d:%02d:%02d.%09d is not a time of day", t.Hour, t.Minute, t.Second, t.Nanosecond)
	}
	return nil
}

// String returns HH:MM:SS, with trailing fractional digits only when non-zero.
func (t Time) String() string {
	return time.Date(2000, 1, 1, t.Hour, t.Minute, t.Second, t.Nanosecond, time.UTC).Format(timeLayout)
}

// Hashable reports whether v may be a Set or FrozenSet member.
func Hashable(v Value) bool {
	switch val := v.(type) {
	case List, Dict, Set:
		return false
	case Tuple:
		for _, elem := range val {
			if !Hashable(elem) {
				return false
			}
		}
		return true
	case nil:
		return false
	default:
		return true
	}
}

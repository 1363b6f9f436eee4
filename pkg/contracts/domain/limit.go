package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Legacy integer encodings of a slot limit. They only appear in persisted
// documents and API payloads; code works with Limit values.
const (
	legacyDisabled  = -2
	legacyUnlimited = -1
)

// LimitKind tells how a Limit constrains the number of bound identifiers.
type LimitKind uint8

const (
	// LimitUnlimited tracks every identifier without a cap.
	LimitUnlimited LimitKind = iota
	// LimitCapped tracks identifiers up to N.
	LimitCapped
	// LimitDisabled turns tracking off entirely.
	LimitDisabled
)

func (k LimitKind) String() string {
	switch k {
	case LimitUnlimited:
		return "unlimited"
	case LimitCapped:
		return "capped"
	case LimitDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Limit caps the IPs or HWIDs a license may bind. The zero value is unlimited.
type Limit struct {
	kind LimitKind
	n    int
}

// Unlimited returns a limit that tracks without a cap.
func Unlimited() Limit { return Limit{kind: LimitUnlimited} }

// Disabled returns a limit that skips tracking.
func Disabled() Limit { return Limit{kind: LimitDisabled} }

// Capped returns a limit of n identifiers. Negative n is clamped to zero.
func Capped(n int) Limit {
	if n < 0 {
		n = 0
	}
	return Limit{kind: LimitCapped, n: n}
}

// ParseLimit converts the legacy integer encoding: -2 disabled, -1 unlimited,
// n >= 0 capped at n.
func ParseLimit(v int) (Limit, error) {
	switch {
	case v == legacyDisabled:
		return Disabled(), nil
	case v == legacyUnlimited:
		return Unlimited(), nil
	case v >= 0:
		return Capped(v), nil
	default:
		return Limit{}, fmt.Errorf("%w: %d", ErrInvalidLimit, v)
	}
}

// Kind reports the limit kind.
func (l Limit) Kind() LimitKind { return l.kind }

// Max returns the cap for a capped limit and -1 otherwise.
func (l Limit) Max() int {
	if l.kind == LimitCapped {
		return l.n
	}
	return -1
}

// IsDisabled reports whether tracking is off.
func (l Limit) IsDisabled() bool { return l.kind == LimitDisabled }

// IsUnlimited reports whether tracking has no cap.
func (l Limit) IsUnlimited() bool { return l.kind == LimitUnlimited }

// Admits reports whether one more identifier may be bound when used are
// already bound.
func (l Limit) Admits(used int) bool {
	switch l.kind {
	case LimitCapped:
		return used < l.n
	default:
		return true
	}
}

// Int returns the legacy integer encoding.
func (l Limit) Int() int {
	switch l.kind {
	case LimitDisabled:
		return legacyDisabled
	case LimitUnlimited:
		return legacyUnlimited
	default:
		return l.n
	}
}

func (l Limit) String() string {
	if l.kind == LimitCapped {
		return strconv.Itoa(l.n)
	}
	return l.kind.String()
}

// MarshalJSON writes the legacy integer encoding.
func (l Limit) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(l.Int())), nil
}

// UnmarshalJSON reads the legacy integer encoding. A JSON null leaves the
// limit unlimited.
func (l *Limit) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Unlimited()
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidLimit, string(data))
	}
	parsed, err := ParseLimit(v)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

package srs

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

// Grade is the user's self-reported recall strength. The ordering matters:
// a review counts as correct when the grade is Good or better.
type Grade int

const (
	Again Grade = iota + 1 // forgot entirely, reset the card
	Hard                   // recalled with serious difficulty
	Good                   // recalled with normal effort
	Easy                   // recalled effortlessly
)

var ErrUnknownGrade = errors.New("srs: unknown grade")

var gradeNames = [...]string{Again: "again", Hard: "hard", Good: "good", Easy: "easy"}

// gradeAliases maps accepted free-text inputs to canonical grades.
var gradeAliases = map[string]Grade{
	"again": Again, "forgot": Again, "fail": Again, "wrong": Again,
	"hard": Hard, "difficult": Hard,
	"good": Good, "correct": Good, "ok": Good, "okay": Good,
	"easy": Easy, "simple": Easy, "perfect": Easy,
}

func (g Grade) String() string {
	if g.IsValid() {
		return gradeNames[g]
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

func (g Grade) IsValid() bool {
	return g >= Again && g <= Easy
}

// ParseGrade normalizes free-form quality input to a canonical grade.
// Unrecognized input returns ErrUnknownGrade; there is no silent default.
func ParseGrade(s string) (Grade, error) {
	g, ok := gradeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownGrade, s)
	}
	return g, nil
}

func (g Grade) Value() (driver.Value, error) {
	if !g.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGrade, int(g))
	}
	return gradeNames[g], nil
}

func (g *Grade) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("scan grade: unsupported type %T", src)
	}

	parsed, err := ParseGrade(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

func (g Grade) MarshalText() ([]byte, error) {
	if !g.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGrade, int(g))
	}
	return []byte(gradeNames[g]), nil
}

func (g *Grade) UnmarshalText(text []byte) error {
	return g.Scan(text)
}

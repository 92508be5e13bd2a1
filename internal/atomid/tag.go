// Package atomid implements the atom identity model: validated tags,
// origin-keyed AtomIds, and the keyed BLAKE3 digest that names them.
package atomid

import (
	"unicode"
	"unicode/utf8"

	"github.com/ekala-project/atom/internal/errs"
)

// MaxTagBytes is the maximum length of a Tag, in UTF-8 bytes.
const MaxTagBytes = 128

// RootTag is the sentinel tag used for the repository root marker. It is
// never producible by Validate since it begins with an underscore, which
// fails start-character validation.
const RootTag = "__ROOT"

// Tag is a validated Unicode label naming an atom within an origin.
type Tag string

// startCategories are the Unicode general categories a tag's first rune
// must belong to: letters, but not numbers.
var startCategories = []*unicode.RangeTable{
	unicode.Ll, unicode.Lu, unicode.Lt, unicode.Lm, unicode.Lo,
}

// continueCategories extends startCategories with the number categories
// permitted in non-leading positions.
var continueCategories = []*unicode.RangeTable{
	unicode.Ll, unicode.Lu, unicode.Lt, unicode.Lm, unicode.Lo,
	unicode.Nd, unicode.Nl,
}

func isValidStart(r rune) bool {
	return unicode.IsOneOf(startCategories, r)
}

func isValidContinue(r rune) bool {
	if r == '-' || r == '_' {
		return true
	}
	return unicode.IsOneOf(continueCategories, r)
}

// Validate applies the rules of the atom identity model to s and returns
// the corresponding Tag, or an error describing the first violation found.
//
// Rules: non-empty; valid UTF-8; at most MaxTagBytes bytes; first rune in
// Ll/Lu/Lt/Lm/Lo; remaining runes in Ll/Lu/Lt/Lm/Lo/Nd/Nl, '-', or '_'.
func Validate(s string) (Tag, error) {
	if s == "" {
		return "", errs.ErrEmptyTag
	}
	if !utf8.ValidString(s) {
		return "", errs.ErrInvalidUnicode
	}
	if len(s) > MaxTagBytes {
		return "", errs.ErrTagTooLong
	}

	first, size := utf8.DecodeRuneInString(s)
	if !isValidStart(first) {
		return "", &errs.InvalidStartError{Rune: first}
	}

	var offenders []rune
	for _, r := range s[size:] {
		if !isValidContinue(r) {
			offenders = append(offenders, r)
		}
	}
	if len(offenders) > 0 {
		return "", &errs.InvalidCharsError{Offenders: string(offenders)}
	}

	return Tag(s), nil
}

// RootTagValue constructs the sentinel root tag, bypassing Validate. It
// must never be reachable from user-supplied input.
func RootTagValue() Tag {
	return Tag(RootTag)
}

// String implements fmt.Stringer.
func (t Tag) String() string {
	return string(t)
}

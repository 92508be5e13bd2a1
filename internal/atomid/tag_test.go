package atomid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekala-project/atom/internal/errs"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error // compared with errors.As/Is below when non-nil
	}{
		{name: "ok", input: "ok"},
		{name: "ok with dash digit", input: "Ok-1"},
		{name: "unicode letters", input: "ひらがな"},
		{name: "empty", input: "", wantErr: errs.ErrEmptyTag},
		{name: "leading underscore", input: "_bad"},
		{name: "leading digit", input: "1bad"},
		{name: "too long", input: strings.Repeat("a", 129), wantErr: errs.ErrTagTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, err := Validate(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			if tt.name == "leading underscore" || tt.name == "leading digit" {
				var startErr *errs.InvalidStartError
				require.ErrorAs(t, err, &startErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Tag(tt.input), tag)
		})
	}
}

func TestValidate_TagLengthBoundary(t *testing.T) {
	exact := strings.Repeat("a", MaxTagBytes)
	_, err := Validate(exact)
	assert.NoError(t, err)

	over := strings.Repeat("a", MaxTagBytes+1)
	_, err = Validate(over)
	assert.ErrorIs(t, err, errs.ErrTagTooLong)
}

func TestValidate_CombiningMarkStartRejected(t *testing.T) {
	// U+0301 COMBINING ACUTE ACCENT: category Mn, not a valid start rune.
	_, err := Validate("́bad")
	var startErr *errs.InvalidStartError
	require.ErrorAs(t, err, &startErr)
}

func TestRootTagValue(t *testing.T) {
	root := RootTagValue()
	assert.Equal(t, Tag(RootTag), root)

	// The sentinel must never validate: it begins with '_'.
	_, err := Validate(string(root))
	var startErr *errs.InvalidStartError
	require.ErrorAs(t, err, &startErr)
}

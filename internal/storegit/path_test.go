package storegit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "empty", in: "", want: ""},
		{name: "root", in: "/", want: ""},
		{name: "relative", in: "a/b", want: "a/b"},
		{name: "absolute treated as rooted", in: "/a/b", want: "a/b"},
		{name: "trailing slash trimmed", in: "a/b/", want: "a/b"},
		{name: "dot segments cleaned", in: "./a/./b", want: "a/b"},
		{name: "escapes root", in: "../a", wantErr: true},
		{name: "escapes root deep", in: "a/../../b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePath(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

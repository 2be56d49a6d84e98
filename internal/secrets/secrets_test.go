package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/codescan/internal/errors"
)

func TestExpand(t *testing.T) {
	t.Setenv("CODESCAN_TEST_TOKEN", "abc123")
	t.Setenv("CODESCAN_TEST_EMPTY", "")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"empty", "", "", false},
		{"literal", "plain-value", "plain-value", false},
		{"literal dollar", "pa$$word", "pa$$word", false},
		{"variable", "${CODESCAN_TEST_TOKEN}", "abc123", false},
		{"embedded", "Bearer ${CODESCAN_TEST_TOKEN}!", "Bearer abc123!", false},
		{"fallback unused", "${CODESCAN_TEST_TOKEN:-other}", "abc123", false},
		{"fallback used", "${CODESCAN_TEST_UNSET:-other}", "other", false},
		{"empty fallback", "${CODESCAN_TEST_UNSET:-}", "", false},
		{"empty counts as unset", "${CODESCAN_TEST_EMPTY}", "", true},
		{"missing", "${CODESCAN_TEST_UNSET}", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpand_ErrorNamesVariables(t *testing.T) {
	_, err := Expand("${CODESCAN_TEST_A}:${CODESCAN_TEST_B}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CODESCAN_TEST_A")
	assert.Contains(t, err.Error(), "CODESCAN_TEST_B")
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	t.Run("trims trailing newlines only", func(t *testing.T) {
		got, err := ReadFile(write("token", " s3cret \r\n"))
		require.NoError(t, err)
		assert.Equal(t, " s3cret ", got)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := ReadFile(write("empty", "\n"))
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(dir, "nope"))
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
	})

	t.Run("directory", func(t *testing.T) {
		_, err := ReadFile(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a regular file")
	})

	t.Run("too large", func(t *testing.T) {
		big := make([]byte, maxFileSize+1)
		for i := range big {
			big[i] = 'x'
		}
		_, err := ReadFile(write("big", string(big)))
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryLimit))
	})
}

func TestResolve(t *testing.T) {
	t.Setenv("CODESCAN_TEST_PASS", "from-env")
	path := filepath.Join(t.TempDir(), "pass")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))

	got, err := Resolve(path, "${CODESCAN_TEST_PASS}")
	require.NoError(t, err)
	assert.Equal(t, "from-file", got, "file takes precedence")

	got, err = Resolve("", "${CODESCAN_TEST_PASS}")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)

	got, err = Resolve("", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

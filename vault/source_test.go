package vault

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, s Source) string {
	t.Helper()
	rc, err := s.open(context.Background())
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestParseSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.otpd")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))

	tests := []struct {
		name     string
		locator  string
		wantName string
	}{
		{name: "bare path", locator: path, wantName: path},
		{name: "padded path", locator: "  " + path + "\n", wantName: path},
		{name: "file uri", locator: "file://" + path, wantName: path},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSource(tt.locator, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, s.Name)
			assert.Equal(t, "payload", readAll(t, s))
		})
	}
}

func TestParseSource_DriveLetterIsAPath(t *testing.T) {
	s, err := ParseSource(`C:\exports\a.otpd`, nil)
	require.NoError(t, err)
	assert.Equal(t, `C:\exports\a.otpd`, s.Name)
}

func TestParseSource_Rejects(t *testing.T) {
	for _, loc := range []string{"", "   ", "file://", "content://media/1"} {
		_, err := ParseSource(loc, nil)
		assert.ErrorIs(t, err, ErrBadSource, loc)
	}
}

func TestParseSource_Resolver(t *testing.T) {
	var got *url.URL
	s, err := ParseSource("https://example.com/backup.otpd", func(_ context.Context, u *url.URL) (io.ReadCloser, error) {
		got = u
		return io.NopCloser(strings.NewReader("remote")), nil
	})
	require.NoError(t, err)
	assert.Nil(t, got, "resolver runs on open, not on parse")
	assert.Equal(t, "remote", readAll(t, s))
	require.NotNil(t, got)
	assert.Equal(t, "example.com", got.Host)
}

func TestReaderSource(t *testing.T) {
	s := ReaderSource("mem", strings.NewReader("abc"))
	assert.Equal(t, "mem", s.Name)
	assert.Equal(t, "abc", readAll(t, s))

	_, err := ReaderSource("nil", nil).open(context.Background())
	assert.ErrorIs(t, err, ErrBadSource)
}

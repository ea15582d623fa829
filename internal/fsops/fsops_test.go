package fsops

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	fs := afero.NewMemMapFs()

	path := "/test/nested/dir"
	require.NoError(t, EnsureDir(fs, path, 0755))
	assert.True(t, IsDir(fs, path))

	// existing directory is fine
	require.NoError(t, EnsureDir(fs, path, 0755))
}

func TestEnsureDir_FileInTheWay(t *testing.T) {
	fs := afero.NewOsFs()
	dir := t.TempDir()
	require.NoError(t, afero.WriteFile(fs, dir+"/blocker", []byte("x"), 0644))

	err := EnsureDir(fs, dir+"/blocker/sub", 0755)
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/test.txt", []byte("test"), 0644))

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"existing file", "/test.txt", true},
		{"non-existing file", "/nonexistent.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Exists(fs, tt.path))
		})
	}
}

func TestIsDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/d", 0755))
	require.NoError(t, afero.WriteFile(fs, "/f", nil, 0644))

	assert.True(t, IsDir(fs, "/d"))
	assert.False(t, IsDir(fs, "/f"))
	assert.False(t, IsDir(fs, "/missing"))
}

// maxReadRecorder records the largest read request it serves
type maxReadRecorder struct {
	r   io.Reader
	max int
}

func (m *maxReadRecorder) Read(p []byte) (int, error) {
	if len(p) > m.max {
		m.max = len(p)
	}
	return m.r.Read(p)
}

func TestCopyBuffer(t *testing.T) {
	data := strings.Repeat("0123456789", 300)

	t.Run("bounded reads", func(t *testing.T) {
		src := &maxReadRecorder{r: strings.NewReader(data)}
		var dst bytes.Buffer

		n, err := CopyBuffer(&dst, src, make([]byte, 64))
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), n)
		assert.Equal(t, data, dst.String())
		assert.Equal(t, 64, src.max)
	})

	t.Run("short reads", func(t *testing.T) {
		var dst bytes.Buffer
		n, err := CopyBuffer(&dst, iotest.OneByteReader(strings.NewReader(data)), make([]byte, 16))
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), n)
		assert.Equal(t, data, dst.String())
	})

	t.Run("data with eof", func(t *testing.T) {
		var dst bytes.Buffer
		n, err := CopyBuffer(&dst, iotest.DataErrReader(strings.NewReader("abc")), nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("read error propagates", func(t *testing.T) {
		boom := errors.New("boom")
		var dst bytes.Buffer
		_, err := CopyBuffer(&dst, io.MultiReader(strings.NewReader("abc"), iotest.ErrReader(boom)), nil)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, "abc", dst.String())
	})
}

func TestRemoveIfExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/f", []byte("x"), 0644))

	require.NoError(t, RemoveIfExists(fs, "/f"))
	assert.False(t, Exists(fs, "/f"))
	require.NoError(t, RemoveIfExists(fs, "/f"))
}

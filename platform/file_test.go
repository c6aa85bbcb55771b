package platform

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/arm-runtime/errors"
)

func TestFile_ReadSeek(t *testing.T) {
	fsys := NewFSFilesystem(fstest.MapFS{
		"data/map.bin": {Data: []byte("abcdefgh")},
	})
	f, err := OpenFile(fsys, "/data/map.bin")
	require.NoError(t, err)
	defer f.Drop()

	assert.Equal(t, "/data/map.bin", f.Name())
	assert.Equal(t, int64(8), f.Size())

	buf := make([]byte, 3)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("abc"), buf)
	assert.Equal(t, int64(3), f.Pos())

	require.NoError(t, f.Seek(6))
	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("gh"), buf[:n])

	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, f.Seek(100))
	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.True(t, errors.IsKind(f.Seek(-1), errors.KindInvalidInput))
}

func TestOpenFile_Errors(t *testing.T) {
	fsys := NewFSFilesystem(fstest.MapFS{
		"data/map.bin": {Data: []byte{1}},
	})

	_, err := OpenFile(fsys, "data/none.bin")
	assert.True(t, errors.IsKind(err, errors.KindNotFound), "got %v", err)

	_, err = OpenFile(fsys, "data")
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput), "got %v", err)
}

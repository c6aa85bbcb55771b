package platform

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/arm-runtime/errors"
	"github.com/wippyai/arm-runtime/resource"
)

func TestSystem_Canvases(t *testing.T) {
	screen := NewMemoryScreen(8, 8)
	s := NewSystem(WithClock(NewVirtualClock().Clock), WithScreen(screen))

	h, err := s.CreateCanvas(8, 8)
	require.NoError(t, err)
	c, err := s.Canvas(h)
	require.NoError(t, err)
	c.Fill(0, 0, 8, 8, 0xffffffff)

	require.NoError(t, s.Repaint(h))
	assert.Equal(t, uint32(0xffffffff), screen.Last().At(7, 7))

	require.NoError(t, s.DestroyCanvas(h))
	_, err = s.Canvas(h)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
	assert.True(t, errors.IsKind(s.Repaint(h), errors.KindNotFound))

	require.NoError(t, s.Close())
}

func TestSystem_RecordStores(t *testing.T) {
	db, err := OpenDatabase("")
	require.NoError(t, err)
	s := NewSystem(WithDatabase(db))

	h, err := s.OpenRecordStore("hiscore")
	require.NoError(t, err)
	rs, err := s.RecordStore(h)
	require.NoError(t, err)
	_, err = rs.Add([]byte{9})
	require.NoError(t, err)

	_, err = s.Canvas(h)
	assert.True(t, errors.IsKind(err, errors.KindNotFound), "record store handle is not a canvas")

	require.NoError(t, s.CloseRecordStore(h))
	_, err = s.RecordStore(h)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))

	require.NoError(t, s.Close())
}

func TestSystem_Files(t *testing.T) {
	s := NewSystem(WithFilesystem(NewFSFilesystem(fstest.MapFS{
		"level.dat": {Data: []byte{1, 2, 3}},
	})))

	f, err := s.OpenFile("level.dat")
	require.NoError(t, err)
	h, err := s.AddFile(f)
	require.NoError(t, err)

	got, err := s.File(h)
	require.NoError(t, err)
	assert.Same(t, f, got)
	_, err = s.RecordStore(h)
	assert.True(t, errors.IsKind(err, errors.KindNotFound), "file handle is not a record store")

	require.NoError(t, s.CloseFile(h))
	_, err = s.File(h)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))

	// files left open are released with the system
	f, err = s.OpenFile("level.dat")
	require.NoError(t, err)
	_, err = s.AddFile(f)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Resources.Len())
	require.NoError(t, s.Close())
	assert.Zero(t, s.Resources.Len())
}

func TestSystem_MissingCollaborators(t *testing.T) {
	s := NewSystem()
	defer s.Close()

	_, err := s.OpenRecordStore("x")
	assert.True(t, errors.IsKind(err, errors.KindNotInitialized))
	_, err = s.ReadFile("x")
	assert.True(t, errors.IsKind(err, errors.KindNotInitialized))
	_, err = s.OpenFile("x")
	assert.True(t, errors.IsKind(err, errors.KindNotInitialized))

	h, err := s.CreateCanvas(1, 1)
	require.NoError(t, err)
	assert.True(t, errors.IsKind(s.Repaint(h), errors.KindNotInitialized))
}

func TestSystem_LoadCanvasFromFilesystem(t *testing.T) {
	table := resource.NewTable()
	s := NewSystem(
		WithResources(table),
		WithFilesystem(NewFSFilesystem(fstest.MapFS{"bad.png": {Data: []byte("x")}})),
	)
	defer s.Close()

	_, err := s.LoadCanvas("bad.png")
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
	_, err = s.LoadCanvas("none.png")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
	assert.Zero(t, table.Len())
}

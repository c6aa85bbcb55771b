package platform

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/arm-runtime/errors"
)

func TestRecordStore_Memory(t *testing.T) {
	db, err := OpenDatabase("")
	require.NoError(t, err)
	defer db.Close()

	rs, err := db.Open("scores")
	require.NoError(t, err)

	n, err := rs.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	id1, err := rs.Add([]byte("first"))
	require.NoError(t, err)
	id2, err := rs.Add([]byte("second"))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id1)
	assert.Equal(t, uint32(2), id2)

	data, err := rs.Get(id2)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	require.NoError(t, rs.Set(id1, []byte("updated")))
	data, err = rs.Get(id1)
	require.NoError(t, err)
	assert.Equal(t, []byte("updated"), data)

	require.NoError(t, rs.Delete(id1))
	_, err = rs.Get(id1)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
	assert.True(t, errors.IsKind(rs.Delete(id1), errors.KindNotFound))
	assert.True(t, errors.IsKind(rs.Set(id1, nil), errors.KindNotFound))

	id3, err := rs.Add([]byte("third"))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), id3, "ids are not reused")

	ids, err := rs.IDs()
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 3}, ids)

	n, err = rs.Count()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)
}

func TestRecordStore_Isolation(t *testing.T) {
	db, err := OpenDatabase("")
	require.NoError(t, err)
	defer db.Close()

	a, err := db.Open("a")
	require.NoError(t, err)
	ab, err := db.Open("a/b")
	require.NoError(t, err)

	_, err = a.Add([]byte{1})
	require.NoError(t, err)
	_, err = ab.Add([]byte{2})
	require.NoError(t, err)
	_, err = ab.Add([]byte{3})
	require.NoError(t, err)

	na, _ := a.Count()
	nab, _ := ab.Count()
	assert.Equal(t, uint32(1), na)
	assert.Equal(t, uint32(2), nab)

	names, err := db.Stores()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "a/b"}, names)

	_, err = db.Open("")
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestRecordStore_Persists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	db, err := OpenDatabase(dir)
	require.NoError(t, err)
	rs, err := db.Open("save")
	require.NoError(t, err)
	_, err = rs.Add([]byte("level 3"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenDatabase(dir)
	require.NoError(t, err)
	defer db.Close()
	rs, err = db.Open("save")
	require.NoError(t, err)

	data, err := rs.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("level 3"), data)

	id, err := rs.Add(nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), id)
}

package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(problems []Problem) map[ProblemKind]int {
	out := make(map[ProblemKind]int)
	for _, p := range problems {
		out[p.Kind]++
	}
	return out
}

func TestCheckCleanTree(t *testing.T) {
	v, fs := newTestVersioner(t)
	require.NoError(t, fs.MkdirAll("/store/dir", 0o755))
	require.NoError(t, v.Create("/dir/a", 0o644))
	for i := 0; i < 11; i++ {
		_, err := v.Write("/dir/a", []byte("x"), 0)
		require.NoError(t, err)
	}
	require.NoError(t, v.Create("/b", 0o644))

	problems, err := v.Check(false)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestCheckReportsWithoutRepair(t *testing.T) {
	v, fs := newTestVersioner(t)

	// gap at index 1
	require.NoError(t, v.Create("/gap", 0o644))
	for i := 0; i < 3; i++ {
		_, err := v.Write("/gap", []byte("g"), 0)
		require.NoError(t, err)
	}
	require.NoError(t, fs.Remove("/store/gap,1"))

	// stale snapshot above the counter
	require.NoError(t, v.Create("/stale", 0o644))
	writeRaw(t, fs, "/store/stale,3", []byte("s"))

	// untracked file
	writeRaw(t, fs, "/store/plain", []byte("p"))

	// orphan chain
	writeRaw(t, fs, "/store/gone,v", []byte{0, 0, 0, 0})
	writeRaw(t, fs, "/store/gone,0", []byte("o"))

	// garbled counter
	writeRaw(t, fs, "/store/bad", []byte("b"))
	writeRaw(t, fs, "/store/bad,v", []byte{1})

	problems, err := v.Check(false)
	require.NoError(t, err)
	assert.Equal(t, map[ProblemKind]int{Gap: 1, Stale: 1, MissingCounter: 1, Orphan: 1, BadCounter: 1}, kinds(problems))
	for _, p := range problems {
		assert.False(t, p.Repaired)
	}
	assert.True(t, exists(t, fs, "/store/gone,0"))
}

func TestCheckRepair(t *testing.T) {
	v, fs := newTestVersioner(t)

	require.NoError(t, v.Create("/gap", 0o644))
	for _, s := range []string{"a", "b", "c", "d"} {
		_, err := v.Write("/gap", []byte(s), 0)
		require.NoError(t, err)
	}
	// snapshots hold "", "a", "b", "c"
	require.NoError(t, fs.Remove("/store/gap,1"))

	writeRaw(t, fs, "/store/plain", []byte("p"))
	writeRaw(t, fs, "/store/plain,0", []byte("p0"))
	writeRaw(t, fs, "/store/plain,5", []byte("p5"))

	writeRaw(t, fs, "/store/gone,v", []byte{0, 0, 0, 0})
	writeRaw(t, fs, "/store/gone,0", []byte("o"))
	writeRaw(t, fs, "/store/gone,99999999999999999999", []byte("o"))

	problems, err := v.Check(true)
	require.NoError(t, err)
	require.NotEmpty(t, problems)
	for _, p := range problems {
		assert.True(t, p.Repaired, "%s %s", p.Path, p.Kind)
	}

	assert.Equal(t, 2, counterOf(t, v, "/gap"))
	assert.Equal(t, "", readFile(t, fs, "/store/gap,0"))
	assert.Equal(t, "b", readFile(t, fs, "/store/gap,1"))
	assert.Equal(t, "c", readFile(t, fs, "/store/gap,2"))
	assert.False(t, exists(t, fs, "/store/gap,3"))

	assert.Equal(t, 1, counterOf(t, v, "/plain"))
	assert.Equal(t, "p5", readFile(t, fs, "/store/plain,1"))

	assert.False(t, exists(t, fs, "/store/gone,v"))
	assert.False(t, exists(t, fs, "/store/gone,0"))
	assert.False(t, exists(t, fs, "/store/gone,99999999999999999999"))

	problems, err = v.Check(false)
	require.NoError(t, err)
	assert.Empty(t, problems)

	_, err = v.Write("/gap", []byte("e"), 0)
	require.NoError(t, err)
	assert.Equal(t, "d", readFile(t, fs, "/store/gap,3"))
}

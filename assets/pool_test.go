package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("img:"+n), 0o644))
	}
	return dir
}

func TestNextRotatesInNameOrder(t *testing.T) {
	dir := seed(t, "b.jpg", "a.png", "notes.txt", "c.JPEG")
	p := NewPool(dir)

	var got []string
	for i := 0; i < 4; i++ {
		a, err := p.Next()
		require.NoError(t, err)
		got = append(got, a.Filename)
	}
	assert.Equal(t, []string{"a.png", "b.jpg", "c.JPEG", "a.png"}, got)
}

func TestNextPersistsCursor(t *testing.T) {
	dir := seed(t, "a.png", "b.png", "c.png")

	a, err := NewPool(dir).Next()
	require.NoError(t, err)
	assert.Equal(t, "a.png", a.Filename)
	assert.Equal(t, []byte("img:a.png"), a.Data)

	// a fresh pool over the same directory resumes where the last one stopped
	b, err := NewPool(dir).Next()
	require.NoError(t, err)
	assert.Equal(t, "b.png", b.Filename)

	state, err := os.ReadFile(filepath.Join(dir, StateFile))
	require.NoError(t, err)
	assert.JSONEq(t, `{"next":2,"last":"b.png"}`, string(state))
}

func TestNextRecoversFromBadState(t *testing.T) {
	dir := seed(t, "a.png", "b.png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, StateFile), []byte("not json"), 0o644))

	a, err := NewPool(dir).Next()
	require.NoError(t, err)
	assert.Equal(t, "a.png", a.Filename)

	// cursor past the end after images were removed
	require.NoError(t, os.WriteFile(filepath.Join(dir, StateFile), []byte(`{"next":9}`), 0o644))
	a, err = NewPool(dir).Next()
	require.NoError(t, err)
	assert.Equal(t, "a.png", a.Filename)
}

func TestNextEmptyPool(t *testing.T) {
	_, err := NewPool(seed(t, "readme.md")).Next()
	assert.ErrorIs(t, err, ErrEmptyPool)

	_, err = NewPool(filepath.Join(t.TempDir(), "missing")).Next()
	assert.ErrorIs(t, err, ErrEmptyPool)
}

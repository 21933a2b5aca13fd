package keystore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tez-capital/trialbot/logging"
)

func newCodeStore(t *testing.T, codes ...string) (*CodeStore, string) {
	t.Helper()
	dir := t.TempDir()
	s := OpenCodeStore(dir, logging.Discard())
	if len(codes) > 0 {
		require.Equal(t, len(codes), s.AddMany(codes))
	}
	return s, dir
}

func readUnusedFile(t *testing.T, dir string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, UnusedCodesFile))
	require.NoError(t, err)
	var f unusedFile
	require.NoError(t, json.Unmarshal(data, &f))
	return f.Codes
}

func TestTakeOneForPopsNewest(t *testing.T) {
	s, dir := newCodeStore(t, "A", "B", "C")

	code, ok := s.TakeOneFor("u1")
	require.True(t, ok)
	assert.Equal(t, "C", code)
	assert.Equal(t, []string{"A", "B"}, s.ListUnused())

	got, ok := s.IssuedFor("u1")
	require.True(t, ok)
	assert.Equal(t, "C", got)

	assert.Equal(t, []string{"A", "B"}, readUnusedFile(t, dir))

	reopened := OpenCodeStore(dir, logging.Discard())
	assert.Equal(t, []string{"A", "B"}, reopened.ListUnused())
	issued, ok := reopened.IssuedFor("u1")
	require.True(t, ok)
	assert.Equal(t, "C", issued)
}

func TestTakeOneForEmptyPool(t *testing.T) {
	s, _ := newCodeStore(t)
	_, ok := s.TakeOneFor("u1")
	assert.False(t, ok)
	_, ok = s.IssuedFor("u1")
	assert.False(t, ok)
}

func TestPeekRandomDoesNotDeplete(t *testing.T) {
	s, _ := newCodeStore(t, "A", "B", "C")
	s.pick = func(n int) int { return 1 }

	for range 5 {
		code, ok := s.PeekRandom()
		require.True(t, ok)
		assert.Equal(t, "B", code)
	}
	assert.Equal(t, 3, s.CountUnused())
	assert.Empty(t, s.Issued())

	empty, _ := newCodeStore(t)
	_, ok := empty.PeekRandom()
	assert.False(t, ok)
}

func TestAddOneRejectsDuplicates(t *testing.T) {
	s, _ := newCodeStore(t, "A")

	assert.False(t, s.AddOne("A"))
	assert.True(t, s.AddOne("B"))
	assert.False(t, s.AddOne(""))

	_, ok := s.TakeOneFor("u1") // issues B
	require.True(t, ok)
	assert.False(t, s.AddOne("B"), "issued code must not return to the pool")
	assert.Equal(t, []string{"A"}, s.ListUnused())
}

func TestAddManyKeepsDuplicates(t *testing.T) {
	s, _ := newCodeStore(t)

	raw := []string{"", "X", "X", "  Y  "}
	trimmed := make([]string, len(raw))
	for i, c := range raw {
		trimmed[i] = strings.TrimSpace(c)
	}

	assert.Equal(t, 3, s.AddMany(trimmed))
	assert.Equal(t, []string{"X", "X", "Y"}, s.ListUnused())
	assert.Equal(t, 0, s.AddMany([]string{"", ""}))
}

func TestAddDeleteCount(t *testing.T) {
	s, _ := newCodeStore(t)

	adds, deletes := 0, 0
	for _, c := range []string{"a", "b", "c", "d"} {
		if s.AddOne(c) {
			adds++
		}
	}
	for _, c := range []string{"b", "zz", "d"} {
		if s.Delete(c) {
			deletes++
		}
	}
	assert.Equal(t, 4, adds)
	assert.Equal(t, 2, deletes)
	assert.Equal(t, adds-deletes, s.CountUnused())
	assert.Equal(t, []string{"a", "c"}, s.ListUnused())
}

func TestDeleteRemovesFirstMatch(t *testing.T) {
	s, _ := newCodeStore(t, "X", "Y", "X")
	assert.True(t, s.Delete("X"))
	assert.Equal(t, []string{"Y", "X"}, s.ListUnused())
}

func TestWipeUnused(t *testing.T) {
	s, dir := newCodeStore(t, "A", "B")
	assert.Equal(t, 2, s.WipeUnused())
	assert.Equal(t, 0, s.CountUnused())
	assert.Empty(t, readUnusedFile(t, dir))
	assert.Equal(t, 0, s.WipeUnused())
}

func TestUserByCode(t *testing.T) {
	s, _ := newCodeStore(t, "A")
	_, _ = s.TakeOneFor("u9")
	user, ok := s.UserByCode("A")
	require.True(t, ok)
	assert.Equal(t, "u9", user)
	_, ok = s.UserByCode("B")
	assert.False(t, ok)
}

func TestSnapshotHookRunsOnBackedUpMutations(t *testing.T) {
	s, _ := newCodeStore(t)
	var calls int
	var lastUnused []string
	s.OnChange(func(unused []string, used map[string]string) {
		calls++
		lastUnused = unused
	})

	s.AddOne("A")
	s.AddMany([]string{"B"})
	s.TakeOneFor("u1")
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"A"}, lastUnused)

	s.Delete("A")
	assert.Equal(t, 3, calls, "delete does not back up")

	s.WipeUnused()
	assert.Equal(t, 4, calls)
}

func TestOpenCodeStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, UnusedCodesFile), []byte("{not json"), 0o644))

	s := OpenCodeStore(dir, logging.Discard())
	assert.Equal(t, 0, s.CountUnused())
	assert.True(t, s.AddOne("A"))
	assert.Equal(t, []string{"A"}, readUnusedFile(t, dir))
}

package unresolved

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPreservesOrderAndDuplicates(t *testing.T) {
	tbl := New()
	tbl.Add("caller1", "helper")
	tbl.Add("caller1", "other")
	tbl.Add("caller1", "helper")

	require.Equal(t, []string{"helper", "other", "helper"}, tbl.Snapshot()["caller1"])
}

func TestDrainEmptiesTable(t *testing.T) {
	tbl := New()
	tbl.Add("caller1", "helper")

	drained := tbl.Drain()
	assert.Len(t, drained, 1)
	assert.Equal(t, 0, tbl.Len())
}

func TestReplaceInstallsNewContents(t *testing.T) {
	tbl := New()
	tbl.Add("caller1", "helper")
	tbl.Replace(map[string][]string{"caller2": {"x"}})

	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, []string{"x"}, tbl.Snapshot()["caller2"])
}

func TestReplaceNilIsEmpty(t *testing.T) {
	tbl := New()
	tbl.Add("caller1", "helper")
	tbl.Replace(nil)
	assert.Equal(t, 0, tbl.Len())
}

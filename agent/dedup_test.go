package agent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShortChunksNeverDuplicate(t *testing.T) {
	d := NewStreamDedup(DefaultStreamDedupConfig())
	d.RecordSent("hi")
	require.False(t, d.IsDuplicate("hi"))
}

func TestExactDuplicateDetected(t *testing.T) {
	d := NewStreamDedup(DefaultStreamDedupConfig())
	d.RecordSent("this is a long enough chunk")
	require.True(t, d.IsDuplicate("this is a long enough chunk"))
}

func TestNormalizedDuplicateDetected(t *testing.T) {
	d := NewStreamDedup(DefaultStreamDedupConfig())
	d.RecordSent("This Is A Long Chunk")
	require.True(t, d.IsDuplicate("this   is a long chunk"))
}

func TestWindowEvictsOldestFirst(t *testing.T) {
	cfg := StreamDedupConfig{Window: 2, MinLength: 5}
	d := NewStreamDedup(cfg)
	d.RecordSent("first chunk here")
	d.RecordSent("second chunk here")
	d.RecordSent("third chunk here")

	require.False(t, d.IsDuplicate("first chunk here"), "oldest entry should have been evicted")
	require.True(t, d.IsDuplicate("second chunk here"))
	require.True(t, d.IsDuplicate("third chunk here"))
}

func TestClearResetsWindow(t *testing.T) {
	d := NewStreamDedup(DefaultStreamDedupConfig())
	d.RecordSent("this is a long enough chunk")
	d.Clear()
	require.False(t, d.IsDuplicate("this is a long enough chunk"))
}

func TestManyDistinctChunksNoFalsePositive(t *testing.T) {
	d := NewStreamDedup(DefaultStreamDedupConfig())
	for i := 0; i < 60; i++ {
		chunk := fmt.Sprintf("distinct streaming chunk number %d", i)
		require.False(t, d.IsDuplicate(chunk))
		d.RecordSent(chunk)
	}
}

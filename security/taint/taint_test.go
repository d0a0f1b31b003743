package taint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaintPropagationOverConcatenation(t *testing.T) {
	v1 := New("fresh content from web", NewLabelSet(ExternalNetwork), "http_fetch")
	v2 := Clean("; rm -rf /", "literal")
	v3 := Merge(v1, v2)

	require.True(t, v3.Labels.Has(ExternalNetwork))
	require.Len(t, v3.Labels, 1)

	violation := CheckSink(v3, ShellExecSink())
	require.NotNil(t, violation)
	require.Equal(t, ExternalNetwork, violation.Label)
	require.Equal(t, "shell_exec", violation.Sink)
	require.Equal(t, "http_fetch", violation.Source)

	declassified := Declassify(v3, ExternalNetwork)
	require.Nil(t, CheckSink(declassified, ShellExecSink()))
}

func TestCheckSinkOkWhenNoOverlap(t *testing.T) {
	v := New("x", NewLabelSet(UserInput), "chat")
	require.Nil(t, CheckSink(v, NetFetchSink()))
}

func TestCanonicalSinks(t *testing.T) {
	require.True(t, ShellExecSink().Blocked.Has(ExternalNetwork))
	require.True(t, ShellExecSink().Blocked.Has(UntrustedAgent))
	require.True(t, ShellExecSink().Blocked.Has(UserInput))

	require.True(t, NetFetchSink().Blocked.Has(Secret))
	require.True(t, NetFetchSink().Blocked.Has(Pii))

	require.True(t, AgentMessageSink().Blocked.Has(Secret))
	require.False(t, AgentMessageSink().Blocked.Has(Pii))
}

func TestDeclassifyOnlyRemovesNamedLabel(t *testing.T) {
	v := New("x", NewLabelSet(Secret, Pii), "vault")
	d := Declassify(v, Secret)
	require.False(t, d.Labels.Has(Secret))
	require.True(t, d.Labels.Has(Pii))
}

func TestIsTainted(t *testing.T) {
	require.False(t, Clean("x", "literal").IsTainted())
	require.True(t, New("x", NewLabelSet(Pii), "db").IsTainted())
}

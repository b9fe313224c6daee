package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Modes(t *testing.T) {
	for _, mode := range []string{"prod", "production", "dev", ""} {
		l, err := New(mode)
		require.NoError(t, err, "mode=%q", mode)
		require.NotNil(t, l)
	}
}

func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core)).With("thread_id", "t-1")

	l.Warn("query failed", "op", "SizeTable")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "query failed", entries[0].Message)
	fields := entries[0].ContextMap()
	require.Equal(t, "t-1", fields["thread_id"])
	require.Equal(t, "SizeTable", fields["op"])
}

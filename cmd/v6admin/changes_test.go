package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("2024-05-01T10:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), got)

	got, err = parseSince("36h", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), got)

	for _, raw := range []string{"yesterday", "-1h", ""} {
		_, err := parseSince(raw, now)
		assert.Error(t, err, raw)
	}
}

func TestRootCommand_ListsSubcommands(t *testing.T) {
	root := newRootCommand(&app{})
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"schema", "seed", "changes"})

	schema, _, err := root.Find([]string{"schema"})
	require.NoError(t, err)
	assert.NotNil(t, schema.Flags().Lookup("drop"))
}

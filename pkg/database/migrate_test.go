package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Embedded(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_schema.sql", names[0])

	sql, err := migrationsFS.ReadFile("migrations/001_schema.sql")
	require.NoError(t, err)
	assert.Contains(t, string(sql), "CREATE TABLE IF NOT EXISTS tutors")
	assert.Contains(t, string(sql), "CREATE TABLE IF NOT EXISTS messages")
}

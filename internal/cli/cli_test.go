package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_RecordAndStatus(t *testing.T) {
	t.Setenv("FITQUEST_HOME", t.TempDir())

	out, err := runCLI(t, "workout", "--user", "ana", "--hour", "6", "--modality", "run")
	require.NoError(t, err)
	assert.Contains(t, out, "Workout recorded")
	assert.Contains(t, out, "Streak: 1 day(s)")
	assert.Contains(t, out, "first_workout")

	out, err = runCLI(t, "diet", "--user", "ana")
	require.NoError(t, err)
	assert.Contains(t, out, "Diet day recorded")

	out, err = runCLI(t, "xp", "--user", "ana", "--amount", "10", "--reason", "bonus")
	require.NoError(t, err)
	assert.Contains(t, out, "+10 XP")

	out, err = runCLI(t, "status", "--user", "ana")
	require.NoError(t, err)
	assert.Contains(t, out, "USER")
	assert.Contains(t, out, "ana")
	assert.Contains(t, out, "WORKOUTS  1")
	assert.Contains(t, out, "CHALLENGE")

	out, err = runCLI(t, "users")
	require.NoError(t, err)
	assert.Contains(t, out, "ana")
}

func TestCLI_XPRejectsNonPositive(t *testing.T) {
	t.Setenv("FITQUEST_HOME", t.TempDir())
	_, err := runCLI(t, "xp", "--user", "bo", "--amount", "0")
	assert.Error(t, err)
}

func TestCLI_RequiresUser(t *testing.T) {
	t.Setenv("FITQUEST_HOME", t.TempDir())
	_, err := runCLI(t, "diet", "--user", "")
	assert.Error(t, err)
}

func TestCLI_Migrate(t *testing.T) {
	t.Setenv("FITQUEST_HOME", t.TempDir())
	_, err := runCLI(t, "workout", "--user", "cy", "--hour", "-1")
	require.NoError(t, err)

	out, err := runCLI(t, "migrate", "--documents")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema version: 2")
	assert.Contains(t, out, "Documents migrated: 1/1")
}

func TestCLI_UsersEmpty(t *testing.T) {
	t.Setenv("FITQUEST_HOME", t.TempDir())
	out, err := runCLI(t, "users")
	require.NoError(t, err)
	assert.Contains(t, out, "No users yet")
}

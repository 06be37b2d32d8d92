package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snipshare/internal/apperror"
	"github.com/sakif/snipshare/internal/logging"
	"github.com/sakif/snipshare/internal/model"
	"github.com/sakif/snipshare/internal/repository/sqlite"
)

type cliEnv struct {
	dbPath string
	dir    string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	root := t.TempDir()
	return cliEnv{
		dbPath: filepath.Join(root, "data", "snipshare.db"),
		dir:    filepath.Join(root, "backups"),
	}
}

// execute runs one CLI invocation and returns stdout.
func (e cliEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	settings := logging.DefaultSettings()
	settings.Level = "error"

	rootCmd := NewRootCommand(Defaults{DBPath: e.dbPath, BackupDir: e.dir, Log: settings})
	require.NoError(t, InitBackupCommands(rootCmd))

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e cliEnv) seedUser(t *testing.T, login string) {
	t.Helper()
	db, err := sqlite.New(e.dbPath)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Users().Create(context.Background(), &model.User{Login: login}))
}

func (e cliEnv) userExists(t *testing.T, login string) bool {
	t.Helper()
	db, err := sqlite.New(e.dbPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Users().GetUserByLogin(context.Background(), login)
	if err != nil {
		require.ErrorIs(t, err, apperror.ErrNotFound)
		return false
	}
	return true
}

func onlyArchive(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return entries[0].Name()
}

func TestBackupCreateAndList(t *testing.T) {
	env := newCLIEnv(t)
	env.seedUser(t, "alice")

	out, err := env.execute(t, "backup", "create")
	require.NoError(t, err)
	name := onlyArchive(t, env.dir)
	assert.Contains(t, out, "created "+name)

	out, err = env.execute(t, "backup", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, name)
}

func TestBackupListEmpty(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.execute(t, "backup", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no backups")
}

func TestBackupRestoreRequiresConfirmation(t *testing.T) {
	env := newCLIEnv(t)
	env.seedUser(t, "alice")
	_, err := env.execute(t, "backup", "create")
	require.NoError(t, err)
	name := onlyArchive(t, env.dir)

	env.seedUser(t, "bob")

	_, err = env.execute(t, "backup", "restore", name)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	assert.True(t, env.userExists(t, "bob"), "nothing restored without --yes")
}

func TestBackupRestore(t *testing.T) {
	env := newCLIEnv(t)
	env.seedUser(t, "alice")
	_, err := env.execute(t, "backup", "create")
	require.NoError(t, err)
	name := onlyArchive(t, env.dir)

	env.seedUser(t, "bob")

	out, err := env.execute(t, "backup", "restore", name, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "restored "+name)
	assert.Contains(t, out, "users")

	assert.True(t, env.userExists(t, "alice"))
	assert.False(t, env.userExists(t, "bob"))
}

func TestBackupDelete(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.execute(t, "backup", "create")
	require.NoError(t, err)
	name := onlyArchive(t, env.dir)

	out, err := env.execute(t, "backup", "delete", name)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+name)

	_, err = os.Stat(filepath.Join(env.dir, name))
	assert.True(t, os.IsNotExist(err))

	_, err = env.execute(t, "backup", "delete", name)
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestBackupRejectsTraversalNames(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.execute(t, "backup", "delete", "../snipshare.db")
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "deleted"))
}

func TestBackupFlagsOverrideDefaults(t *testing.T) {
	env := newCLIEnv(t)
	other := filepath.Join(t.TempDir(), "elsewhere")

	_, err := env.execute(t, "--dir", other, "backup", "create")
	require.NoError(t, err)
	onlyArchive(t, other)

	_, err = os.Stat(env.dir)
	assert.True(t, os.IsNotExist(err), "default dir untouched")
}

func TestBackupArgsValidated(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.execute(t, "backup", "restore")
	require.Error(t, err)

	_, err = env.execute(t, "backup", "create", "extra")
	require.Error(t, err)
}

package vault

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fahmaliyi/otpvault/account"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSalt = "device-under-test"

var (
	alice = account.Entry{Label: "alice", Issuer: "corp", Secret: "JBSWY3DPEHPK3PXP"}
	bob   = account.Entry{Label: "bob", Issuer: "", Secret: "MFRGGZDFMZTWQ2LK"}
	carol = account.Entry{Label: "carol", Issuer: "home", Secret: "GEZDGNBVGY3TQOJQ"}
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	return NewVault(filepath.Join(t.TempDir(), "data", DefaultFileName), testSalt)
}

func openTestVault(t *testing.T, entries ...account.Entry) *Vault {
	t.Helper()
	v := newTestVault(t)
	require.NoError(t, v.Open(context.Background(), "abc123"))
	for _, e := range entries {
		require.True(t, v.Add(e))
	}
	if len(entries) > 0 {
		require.NoError(t, v.Save(context.Background()))
	}
	return v
}

func TestStoreOps_RequireOpen(t *testing.T) {
	v := newTestVault(t)

	assert.False(t, v.IsOpen())
	assert.False(t, v.Add(alice))
	assert.False(t, v.Remove(alice))
	assert.False(t, v.Merge([]account.Entry{alice}))
	assert.False(t, v.ReplaceAll([]account.Entry{alice}))
	assert.False(t, v.Move(0, 0))
	v.Replace(alice, bob)
	assert.Nil(t, v.Accounts())
	assert.ErrorIs(t, v.Save(context.Background()), ErrClosed)
}

func TestAddRemove(t *testing.T) {
	v := openTestVault(t)

	assert.True(t, v.Add(alice))
	assert.True(t, v.Add(bob))
	assert.Equal(t, []account.Entry{alice, bob}, v.Accounts())

	assert.False(t, v.Remove(carol))
	assert.True(t, v.Remove(alice))
	assert.False(t, v.Remove(alice))
	assert.Equal(t, []account.Entry{bob}, v.Accounts())
}

func TestReplace(t *testing.T) {
	v := openTestVault(t, alice, bob)

	renamed := alice
	renamed.Label = "alice2"
	v.Replace(alice, renamed)
	assert.Equal(t, []account.Entry{renamed, bob}, v.Accounts())

	v.Replace(carol, alice)
	assert.Equal(t, []account.Entry{renamed, bob}, v.Accounts())
}

func TestMove(t *testing.T) {
	v := openTestVault(t, alice, bob, carol)

	assert.True(t, v.Move(0, 2))
	assert.Equal(t, []account.Entry{bob, carol, alice}, v.Accounts())
	assert.True(t, v.Move(2, 0))
	assert.Equal(t, []account.Entry{alice, bob, carol}, v.Accounts())
	assert.False(t, v.Move(3, 0))
	assert.False(t, v.Move(0, -1))
}

func TestAccounts_ReturnsCopy(t *testing.T) {
	v := openTestVault(t, alice)
	list := v.Accounts()
	list[0] = bob
	assert.Equal(t, []account.Entry{alice}, v.Accounts())
}

func TestFindByURI(t *testing.T) {
	v := openTestVault(t, alice, bob)

	got, ok := v.FindByURI("otpauth://totp/alice?secret=jbswy3dpehpk3pxp")
	require.True(t, ok)
	assert.Equal(t, alice, got)

	got, ok = v.FindByURI(bob.URI())
	require.True(t, ok)
	assert.Equal(t, bob, got)

	_, ok = v.FindByURI("otpauth://totp/ALICE?secret=JBSWY3DPEHPK3PXP")
	assert.False(t, ok)
	_, ok = v.FindByURI("not a uri")
	assert.False(t, ok)
}

func TestMerge(t *testing.T) {
	v := openTestVault(t, alice, bob)

	require.True(t, v.Merge(v.Accounts()))
	assert.Equal(t, []account.Entry{alice, bob}, v.Accounts(), "merging a list into itself is a no-op")

	require.True(t, v.Merge([]account.Entry{carol, alice}))
	assert.Equal(t, []account.Entry{alice, bob, carol}, v.Accounts())

	reopened := NewVault(v.Filename, testSalt)
	require.NoError(t, reopened.Open(context.Background(), "abc123"))
	assert.Equal(t, []account.Entry{alice, bob, carol}, reopened.Accounts())
}

func TestReplaceAll(t *testing.T) {
	v := openTestVault(t, alice, bob)

	require.True(t, v.ReplaceAll([]account.Entry{carol}))
	assert.Equal(t, []account.Entry{carol}, v.Accounts())

	reopened := NewVault(v.Filename, testSalt)
	require.NoError(t, reopened.Open(context.Background(), "abc123"))
	assert.Equal(t, []account.Entry{carol}, reopened.Accounts())
}

// Merge and ReplaceAll report false when the save fails, even though an
// import built on them used to be reported as a success.
func TestMergeAndReplaceAll_RollBackOnSaveFailure(t *testing.T) {
	v := openTestVault(t, alice, bob)
	v.writeFile = func(string, []byte, os.FileMode) error { return errors.New("disk full") }

	assert.False(t, v.Merge([]account.Entry{carol}))
	assert.Equal(t, []account.Entry{alice, bob}, v.Accounts())

	assert.False(t, v.ReplaceAll([]account.Entry{carol}))
	assert.Equal(t, []account.Entry{alice, bob}, v.Accounts())

	fresh := NewVault(v.Filename, testSalt)
	require.NoError(t, fresh.Open(context.Background(), "abc123"))
	assert.Equal(t, []account.Entry{alice, bob}, fresh.Accounts())
}

func TestRestore(t *testing.T) {
	v := openTestVault(t, alice, bob)
	prev := v.Accounts()

	require.True(t, v.Remove(alice))
	require.True(t, v.Add(carol))
	assert.True(t, v.Restore(prev))
	assert.Equal(t, []account.Entry{alice, bob}, v.Accounts())

	prev[0] = carol
	assert.Equal(t, alice, v.Accounts()[0], "restore keeps its own copy")

	assert.False(t, v.Restore(nil))
	require.NoError(t, v.Close(context.Background()))
	assert.False(t, v.Restore(prev))
}

func TestWithFileWriter(t *testing.T) {
	var wrote []byte
	v := NewVault(filepath.Join(t.TempDir(), DefaultFileName), testSalt,
		WithFileWriter(func(path string, data []byte, perm os.FileMode) error {
			wrote = data
			return errors.New("disk full")
		}))

	err := v.Open(context.Background(), "abc123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NotEmpty(t, wrote)
}

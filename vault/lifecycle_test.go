package vault

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fahmaliyi/otpvault/account"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_FirstRunCreatesEmptyStore(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)
	require.False(t, v.PathExists())

	require.NoError(t, v.Open(ctx, "abc123"))

	assert.True(t, v.IsOpen())
	assert.Equal(t, 0, v.Len())
	assert.NotNil(t, v.Accounts())
	assert.True(t, v.PathExists())
	assert.Empty(t, backups(t, v.Filename))
}

func TestOpen_CloseAndReopen(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)

	require.NoError(t, v.Close(ctx))
	assert.False(t, v.IsOpen())
	assert.Nil(t, v.Accounts())

	require.NoError(t, v.Open(ctx, "abc123"))
	assert.True(t, v.IsOpen())
	assert.Empty(t, v.Accounts())
}

func TestOpen_WrongPassphrase(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t, alice)
	require.NoError(t, v.Close(ctx))

	err := v.Open(ctx, "wrong")
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.False(t, v.IsOpen())
	assert.True(t, v.PathExists())

	require.NoError(t, v.Open(ctx, "abc123"))
	assert.Equal(t, []account.Entry{alice}, v.Accounts())
}

func TestOpen_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t, alice)

	other := NewVault(v.Filename, testSalt)
	require.NoError(t, other.Open(ctx, "abc123"))
	assert.Equal(t, []account.Entry{alice}, other.Accounts())
}

func TestOpen_DeviceSaltBindsFile(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t, alice)

	elsewhere := NewVault(v.Filename, "some-other-device")
	assert.ErrorIs(t, elsewhere.Open(ctx, "abc123"), ErrAuthFailed)
}

func TestOpen_AlreadyOpenWithAccountsIsNoop(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t, alice)

	require.NoError(t, v.Open(ctx, "anything"))
	assert.True(t, v.IsOpen())
	assert.Equal(t, []account.Entry{alice}, v.Accounts())
}

func TestOpen_FirstRunSaveFailure(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)
	v.writeFile = func(string, []byte, os.FileMode) error { return errors.New("no space left") }

	err := v.Open(ctx, "abc123")
	require.Error(t, err)
	assert.False(t, v.IsOpen())
	assert.False(t, v.PathExists())
}

func TestOpen_EmptyDeviceSalt(t *testing.T) {
	v := NewVault(filepath.Join(t.TempDir(), DefaultFileName), "")
	assert.ErrorIs(t, v.Open(context.Background(), "abc123"), ErrNoSalt)
	assert.False(t, v.PathExists())
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)

	require.True(t, v.Add(alice))
	require.NoError(t, v.Close(ctx))
	assert.ErrorIs(t, v.Close(ctx), ErrClosed)

	require.NoError(t, v.Open(ctx, "abc123"))
	assert.Equal(t, []account.Entry{alice}, v.Accounts(), "close saves pending changes")
}

func TestClose_SaveFailureStillLocks(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t, alice)
	v.writeFile = func(string, []byte, os.FileMode) error { return errors.New("io error") }

	require.True(t, v.Add(bob))
	require.NoError(t, v.Close(ctx))
	assert.False(t, v.IsOpen())

	v.writeFile = atomicWriteFile
	require.NoError(t, v.Open(ctx, "abc123"))
	assert.Equal(t, []account.Entry{alice}, v.Accounts())
}

func TestDiscard_DropsUnsavedChanges(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t, alice)

	require.True(t, v.Add(bob))
	v.Discard()
	assert.False(t, v.IsOpen())

	require.NoError(t, v.Open(ctx, "abc123"))
	assert.Equal(t, []account.Entry{alice}, v.Accounts())
}

func TestChangePassphrase(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t, alice, bob)

	require.NoError(t, v.ChangePassphrase(ctx, "abc123", "n3w-pass"))
	assert.True(t, v.IsOpen())
	assert.Equal(t, []account.Entry{alice, bob}, v.Accounts())

	require.True(t, v.Add(carol))
	require.NoError(t, v.Close(ctx))

	assert.ErrorIs(t, v.Open(ctx, "abc123"), ErrAuthFailed)
	require.NoError(t, v.Open(ctx, "n3w-pass"))
	assert.Equal(t, []account.Entry{alice, bob, carol}, v.Accounts())
}

func TestChangePassphrase_FromClosed(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t, alice)
	require.NoError(t, v.Close(ctx))

	require.NoError(t, v.ChangePassphrase(ctx, "abc123", "other"))
	assert.True(t, v.IsOpen())

	fresh := NewVault(v.Filename, testSalt)
	require.NoError(t, fresh.Open(ctx, "other"))
	assert.Equal(t, []account.Entry{alice}, fresh.Accounts())
}

func TestChangePassphrase_WrongOld(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t, alice)

	err := v.ChangePassphrase(ctx, "wrong", "n3w-pass")
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.False(t, v.IsOpen())

	require.NoError(t, v.Open(ctx, "abc123"))
	assert.Equal(t, []account.Entry{alice}, v.Accounts())
}

func TestChangePassphrase_SaveFailureKeepsOldKeys(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t, alice)
	require.NoError(t, v.Close(ctx))

	require.NoError(t, v.Open(ctx, "abc123"))
	v.writeFile = func(string, []byte, os.FileMode) error { return errors.New("io error") }
	require.Error(t, v.ChangePassphrase(ctx, "abc123", "n3w-pass"))

	v.writeFile = atomicWriteFile
	v.Discard()
	require.NoError(t, v.Open(ctx, "abc123"))
	assert.Equal(t, []account.Entry{alice}, v.Accounts())
}

func exportTo(t *testing.T, v *Vault, passphrase string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ExportFileName(time.Now()))
	require.NoError(t, v.Export(context.Background(), passphrase, path))
	return path
}

func TestExport_LeavesPrimaryUntouched(t *testing.T) {
	v := openTestVault(t, alice, bob)
	before, err := os.ReadFile(v.Filename)
	require.NoError(t, err)

	path := exportTo(t, v, "export-pass")

	after, err := os.ReadFile(v.Filename)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.True(t, v.IsOpen())
	assert.Equal(t, []account.Entry{alice, bob}, v.Accounts())
	assert.FileExists(t, path)
}

func TestExport_IsPassphraseSalted(t *testing.T) {
	v := openTestVault(t, alice)
	path := exportTo(t, v, "export-pass")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	rec, err := ParseRecord(string(raw))
	require.NoError(t, err)

	deviceKeys, err := DeriveKeys("export-pass", testSalt)
	require.NoError(t, err)
	_, err = Decrypt(rec, deviceKeys)
	assert.ErrorIs(t, err, ErrAuthFailed)

	archiveKeys, err := DeriveKeys("export-pass", "export-pass")
	require.NoError(t, err)
	_, err = Decrypt(rec, archiveKeys)
	assert.NoError(t, err)
}

func TestExport_RequiresOpen(t *testing.T) {
	v := newTestVault(t)
	err := v.Export(context.Background(), "x", filepath.Join(t.TempDir(), "out.otpd"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestImport_Merge(t *testing.T) {
	ctx := context.Background()
	src := openTestVault(t, alice, bob)
	archive := exportTo(t, src, "export-pass")

	dst := openTestVault(t, bob, carol)
	require.NoError(t, dst.Import(ctx, "export-pass", FileSource(archive), ImportMerge))
	assert.Equal(t, []account.Entry{bob, carol, alice}, dst.Accounts())

	require.NoError(t, dst.Import(ctx, "export-pass", FileSource(archive), ImportMerge))
	assert.Equal(t, []account.Entry{bob, carol, alice}, dst.Accounts(), "merge is idempotent")

	reopened := NewVault(dst.Filename, testSalt)
	require.NoError(t, reopened.Open(ctx, "abc123"))
	assert.Equal(t, []account.Entry{bob, carol, alice}, reopened.Accounts())
}

func TestImport_Replace(t *testing.T) {
	ctx := context.Background()
	src := openTestVault(t, alice)
	archive := exportTo(t, src, "export-pass")

	dst := openTestVault(t, bob, carol)
	require.NoError(t, dst.Import(ctx, "export-pass", FileSource(archive), ImportReplace))
	assert.Equal(t, []account.Entry{alice}, dst.Accounts())
}

func TestImport_FromReader(t *testing.T) {
	ctx := context.Background()
	src := openTestVault(t, alice)
	archive := exportTo(t, src, "pw")

	f, err := os.Open(archive)
	require.NoError(t, err)
	defer f.Close()

	dst := openTestVault(t)
	require.NoError(t, dst.Import(ctx, "pw", ReaderSource("upload", f), ImportMerge))
	assert.Equal(t, []account.Entry{alice}, dst.Accounts())
}

func TestImport_ThroughResolver(t *testing.T) {
	ctx := context.Background()
	src := openTestVault(t, alice, carol)
	archive := exportTo(t, src, "pw")

	var asked string
	resolve := func(_ context.Context, u *url.URL) (io.ReadCloser, error) {
		asked = u.String()
		return os.Open(archive)
	}
	source, err := ParseSource("content://downloads/42", resolve)
	require.NoError(t, err)

	dst := openTestVault(t)
	require.NoError(t, dst.Import(ctx, "pw", source, ImportMerge))
	assert.Equal(t, "content://downloads/42", asked)
	assert.Equal(t, []account.Entry{alice, carol}, dst.Accounts())
}

func TestImport_WrongPassphraseLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	src := openTestVault(t, alice)
	archive := exportTo(t, src, "pw")

	dst := openTestVault(t, bob)
	before, err := os.ReadFile(dst.Filename)
	require.NoError(t, err)

	err = dst.Import(ctx, "not-pw", FileSource(archive), ImportReplace)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.True(t, dst.IsOpen())
	assert.Equal(t, []account.Entry{bob}, dst.Accounts())

	after, err := os.ReadFile(dst.Filename)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestImport_Failures(t *testing.T) {
	ctx := context.Background()

	closed := newTestVault(t)
	assert.ErrorIs(t, closed.Import(ctx, "pw", FileSource("/nope"), ImportMerge), ErrClosed)

	v := openTestVault(t, bob)
	assert.ErrorIs(t, v.Import(ctx, "pw", FileSource(filepath.Join(t.TempDir(), "missing.otpd")), ImportMerge), ErrBadSource)
	assert.ErrorIs(t, v.Import(ctx, "pw", Source{Name: "zero"}, ImportMerge), ErrBadSource)
	assert.ErrorIs(t, v.Import(ctx, "", ReaderSource("empty-pass", io.LimitReader(nil, 0)), ImportMerge), ErrNoSalt)
	assert.Equal(t, []account.Entry{bob}, v.Accounts())
}

func TestImport_SaveFailure(t *testing.T) {
	ctx := context.Background()
	src := openTestVault(t, alice)
	archive := exportTo(t, src, "pw")

	dst := openTestVault(t, bob)
	dst.writeFile = func(string, []byte, os.FileMode) error { return errors.New("io error") }

	require.Error(t, dst.Import(ctx, "pw", FileSource(archive), ImportMerge))
	assert.Equal(t, []account.Entry{bob}, dst.Accounts())
}

func TestExportFileName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
	assert.Equal(t, "export-20240309-070501.otpd", ExportFileName(ts))
}

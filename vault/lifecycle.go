package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Open derives keys from passphrase and loads the store. A missing primary
// file is first-run: an empty store is written and then loaded back. Open
// on a store that is already open with accounts is a no-op.
func (v *Vault) Open(ctx context.Context, passphrase string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.open(ctx, passphrase)
}

func (v *Vault) open(ctx context.Context, passphrase string) error {
	existed := v.PathExists()
	if existed && v.isOpen() && len(v.accounts) > 0 {
		v.log.Debug(ctx, "already open")
		return nil
	}
	v.discard()

	v.hint("preparing")
	keys, err := DeriveKeys(passphrase, v.saltFor(passphrase))
	if err != nil {
		return fmt.Errorf("derive keys: %w", err)
	}

	created := false
	if !existed && v.primary {
		v.log.Info(ctx, "creating new store", "path", v.Filename)
		if err := os.MkdirAll(filepath.Dir(v.Filename), 0o700); err != nil {
			v.log.Warn(ctx, "mkdir failed", "path", v.Filename, "error", err)
		}
		if err := v.saveTo(ctx, keys, v.Filename); err != nil {
			keys.wipe()
			return fmt.Errorf("create store: %w", err)
		}
		created = true
	}

	entries, err := v.load(ctx, keys)
	if err != nil {
		v.log.Warn(ctx, "unlock failed", "error", err)
		if created {
			v.log.Debug(ctx, "removing store created by failed open", "path", v.Filename)
			_ = os.Remove(v.Filename)
		}
		keys.wipe()
		return err
	}

	v.keys, v.accounts = keys, entries
	v.log.Info(ctx, "store opened", "accounts", len(entries))
	return nil
}

// Save persists the current accounts under the current keys.
func (v *Vault) Save(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.save(ctx)
}

// Close saves and forgets keys and accounts. A failed save is logged and
// the store is locked anyway. Closing a closed store returns ErrClosed.
func (v *Vault) Close(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.close(ctx)
}

func (v *Vault) close(ctx context.Context) error {
	if !v.isOpen() {
		return ErrClosed
	}
	if err := v.save(ctx); err != nil {
		v.log.Error(ctx, "save on close failed", "error", err)
	}
	v.discard()
	v.log.Info(ctx, "store closed")
	return nil
}

// Discard locks the store without saving.
func (v *Vault) Discard() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.discard()
}

// discard wipes key material and drops the list without saving.
func (v *Vault) discard() {
	v.keys.wipe()
	v.keys = nil
	v.accounts = nil
}

// ChangePassphrase reopens the store with old and re-saves it under keys
// derived from updated. The new keys are adopted only once that save
// succeeds.
func (v *Vault) ChangePassphrase(ctx context.Context, old, updated string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.isOpen() {
		if err := v.close(ctx); err != nil {
			return err
		}
	}
	if err := v.open(ctx, old); err != nil {
		return fmt.Errorf("bad passphrase: %w", err)
	}

	v.hint("preparing")
	keys, err := DeriveKeys(updated, v.saltFor(updated))
	if err != nil {
		return fmt.Errorf("derive keys: %w", err)
	}
	if err := v.saveTo(ctx, keys, v.Filename); err != nil {
		keys.wipe()
		return fmt.Errorf("change passphrase: %w", err)
	}
	v.keys.wipe()
	v.keys = keys
	v.log.Info(ctx, "passphrase changed")
	return nil
}

// Export writes the current accounts to path as an archive salted with
// its own passphrase. The primary file and open state are untouched.
func (v *Vault) Export(ctx context.Context, passphrase, path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.isOpen() {
		return ErrClosed
	}
	v.hint("exporting")
	keys, err := DeriveKeys(passphrase, passphrase)
	if err != nil {
		return fmt.Errorf("derive keys: %w", err)
	}
	defer keys.wipe()
	if err := v.saveTo(ctx, keys, path); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	v.log.Info(ctx, "exported", "path", path, "accounts", len(v.accounts))
	return nil
}

// Import opens src as an ephemeral store and merges or replaces this
// store's accounts with its contents. If src cannot be opened this store
// is untouched.
func (v *Vault) Import(ctx context.Context, passphrase string, src Source, mode ImportMode) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.isOpen() {
		return ErrClosed
	}
	if src.open == nil {
		return ErrBadSource
	}
	v.hint("unlocking")
	rc, err := src.open(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadSource, src.Name, err)
	}
	defer rc.Close()

	tmp := newEphemeral("", rc, WithLogger(v.log))
	if err := tmp.Open(ctx, passphrase); err != nil {
		return fmt.Errorf("unlock %s: %w", src.Name, err)
	}
	defer tmp.Discard()

	incoming := tmp.Accounts()
	ok := false
	switch mode {
	case ImportReplace:
		ok = v.replaceAll(ctx, incoming)
	default:
		ok = v.merge(ctx, incoming)
	}
	if !ok {
		return fmt.Errorf("import %s (%s): save failed", src.Name, mode)
	}
	v.log.Info(ctx, "imported", "source", src.Name, "mode", mode.String(), "accounts", len(incoming))
	return nil
}

// ExportFileName is the suggested archive name for an export at t.
func ExportFileName(t time.Time) string {
	return "export-" + t.Format("20060102-150405") + ExportExt
}

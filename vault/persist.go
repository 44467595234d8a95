package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fahmaliyi/otpvault/account"
)

const filePerm = 0o600

// save writes the current list under the current keys to the bound file.
func (v *Vault) save(ctx context.Context) error {
	if !v.isOpen() {
		return ErrClosed
	}
	return v.saveTo(ctx, v.keys, v.Filename)
}

// saveTo encrypts the current list under keys and writes it to target.
// An existing target is first renamed to a time-stamped backup; the backup
// is removed after a successful write and renamed back after a failed one.
func (v *Vault) saveTo(ctx context.Context, keys *KeyMaterial, target string) error {
	if target == "" {
		return fmt.Errorf("%w: no target path", ErrBadSource)
	}
	v.hint(fmt.Sprintf("saving %d accounts", len(v.accounts)))

	payload, err := marshalAccounts(v.accounts)
	if err != nil {
		return err
	}

	backup := ""
	if _, err := os.Stat(target); err == nil {
		backup = fmt.Sprintf("%s.backup.%d", target, time.Now().UnixNano())
		if err := os.Rename(target, backup); err != nil {
			// keep going: the atomic writer still never leaves target half-written
			v.log.Error(ctx, "backup rename failed", "target", target, "error", err)
			backup = ""
		}
	}

	if err := v.writeRecord(payload, keys, target); err != nil {
		v.log.Error(ctx, "write failed", "target", target, "error", err)
		if backup != "" {
			if rerr := os.Rename(backup, target); rerr != nil {
				v.log.Error(ctx, "backup restore failed", "backup", backup, "error", rerr)
				return errors.Join(err, rerr)
			}
		}
		return err
	}

	if backup != "" {
		if err := os.Remove(backup); err != nil {
			v.log.Warn(ctx, "backup cleanup failed", "backup", backup, "error", err)
		}
	}
	v.log.Debug(ctx, "saved", "target", target, "accounts", len(v.accounts))
	return nil
}

func (v *Vault) writeRecord(payload []byte, keys *KeyMaterial, target string) error {
	defer zero(payload)

	v.hint("locking")
	rec, err := Encrypt(payload, keys)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	v.hint("writing")
	if err := v.writeFile(target, []byte(rec.String()), filePerm); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}

// marshalAccounts builds the plaintext payload: a JSON array of strings,
// each the canonical JSON of one entry.
func marshalAccounts(entries []account.Entry) ([]byte, error) {
	items := make([]string, len(entries))
	for i, e := range entries {
		items[i] = e.JSON()
	}
	return json.Marshal(items)
}

// load reads and decrypts the bound source. Elements that are not strings
// or not entry JSON are skipped; an unparsable top level fails the load.
func (v *Vault) load(ctx context.Context, keys *KeyMaterial) ([]account.Entry, error) {
	raw, err := v.readSource()
	if err != nil {
		return nil, err
	}
	rec, err := ParseRecord(string(raw))
	if err != nil {
		return nil, err
	}

	v.hint("unlocking")
	pt, err := Decrypt(rec, keys)
	if err != nil {
		return nil, err
	}
	defer zero(pt)

	var items []json.RawMessage
	if err := json.Unmarshal(pt, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	entries := make([]account.Entry, 0, len(items))
	for i, item := range items {
		v.hint(fmt.Sprintf("reading %d of %d", i+1, len(items)))
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			v.log.Debug(ctx, "skipping non-string account record", "index", i)
			continue
		}
		e, err := account.ParseJSON([]byte(s))
		if err != nil {
			v.log.Debug(ctx, "skipping malformed account record", "index", i)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (v *Vault) readSource() ([]byte, error) {
	if v.source != nil {
		b, err := io.ReadAll(v.source)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		return b, nil
	}
	if v.Filename == "" {
		return nil, ErrBadSource
	}
	return os.ReadFile(v.Filename)
}

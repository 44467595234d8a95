// Package vault is the encrypted TOTP account store: key derivation, the
// authenticated ciphertext codec, crash-safe persistence, the account list
// and the single-flight operation scheduler that drives them.
package vault

import (
	"context"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/fahmaliyi/otpvault/account"
	"github.com/fahmaliyi/otpvault/logging"
)

// Vault is one store instance bound to a file or a byte stream. The primary
// instance owns the canonical on-disk file and is salted with the device
// id; ephemeral instances read import sources and are salted with the
// passphrase.
//
// Open iff keys and accounts are both non-nil.
type Vault struct {
	mu sync.Mutex

	Filename string
	source   io.Reader
	primary  bool
	salt     string

	keys     *KeyMaterial
	accounts []account.Entry

	log       logging.Logger
	progress  func(string)
	writeFile func(path string, data []byte, perm os.FileMode) error
}

type Option func(*Vault)

func WithLogger(l logging.Logger) Option {
	return func(v *Vault) {
		if l != nil {
			v.log = l
		}
	}
}

// WithProgress receives advisory progress hints. Only the primary instance
// emits them; an empty hint means the running operation is over.
func WithProgress(fn func(string)) Option {
	return func(v *Vault) {
		v.progress = fn
	}
}

// WithFileWriter replaces the atomic file writer used by Save.
func WithFileWriter(fn func(path string, data []byte, perm os.FileMode) error) Option {
	return func(v *Vault) {
		if fn != nil {
			v.writeFile = fn
		}
	}
}

// NewVault returns the primary, closed store at filename. deviceSalt binds
// the ciphertext to this device.
func NewVault(filename, deviceSalt string, opts ...Option) *Vault {
	v := newVault(opts...)
	v.Filename = filename
	v.primary = true
	v.salt = deviceSalt
	v.log = v.log.With("store", "primary")
	return v
}

// newEphemeral returns a passphrase-salted instance reading filename or r.
func newEphemeral(filename string, r io.Reader, opts ...Option) *Vault {
	v := newVault(opts...)
	v.Filename = filename
	v.source = r
	v.log = v.log.With("store", "ephemeral")
	return v
}

func newVault(opts ...Option) *Vault {
	v := &Vault{
		log:       logging.Nop(),
		writeFile: atomicWriteFile,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Vault) IsPrimary() bool { return v.primary }

func (v *Vault) IsOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.isOpen()
}

func (v *Vault) isOpen() bool {
	return v.keys != nil && v.accounts != nil
}

// PathExists reports whether the bound file is present.
func (v *Vault) PathExists() bool {
	if v.Filename == "" {
		return false
	}
	_, err := os.Stat(v.Filename)
	return err == nil
}

// saltFor picks the device salt for the primary store and the passphrase
// itself for archives.
func (v *Vault) saltFor(passphrase string) string {
	if v.primary {
		return v.salt
	}
	return passphrase
}

func (v *Vault) hint(msg string) {
	if v.primary && v.progress != nil {
		v.progress(msg)
	}
}

// Accounts returns a copy of the ordered account list, or nil when closed.
func (v *Vault) Accounts() []account.Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.isOpen() {
		return nil
	}
	return slices.Clone(v.accounts)
}

func (v *Vault) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.accounts)
}

// Add appends e. It fails only when the store is closed.
func (v *Vault) Add(e account.Entry) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.isOpen() {
		return false
	}
	v.accounts = append(v.accounts, e)
	return true
}

// Remove deletes the first entry equal to e.
func (v *Vault) Remove(e account.Entry) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.isOpen() {
		return false
	}
	i := slices.Index(v.accounts, e)
	if i < 0 {
		return false
	}
	v.accounts = slices.Delete(v.accounts, i, i+1)
	return true
}

// Replace swaps old for updated in place. Absent old is a no-op.
func (v *Vault) Replace(old, updated account.Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.isOpen() {
		return
	}
	if i := slices.Index(v.accounts, old); i >= 0 {
		v.accounts[i] = updated
	}
}

// Move relocates the entry at from to index to, shifting the rest.
func (v *Vault) Move(from, to int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := len(v.accounts)
	if !v.isOpen() || from < 0 || from >= n || to < 0 || to >= n {
		return false
	}
	e := v.accounts[from]
	v.accounts = slices.Delete(v.accounts, from, from+1)
	v.accounts = slices.Insert(v.accounts, to, e)
	return true
}

// Restore puts back a list taken from Accounts without persisting it. Used to
// undo an in-memory edit whose save failed.
func (v *Vault) Restore(entries []account.Entry) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.isOpen() || entries == nil {
		return false
	}
	v.accounts = slices.Clone(entries)
	return true
}

// Contains reports membership by value.
func (v *Vault) Contains(e account.Entry) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Contains(v.accounts, e)
}

// FindByURI resolves an otpauth URI back to a stored entry.
func (v *Vault) FindByURI(uri string) (account.Entry, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, e := range v.accounts {
		if e.MatchesURI(uri) {
			return e, true
		}
	}
	return account.Entry{}, false
}

// Merge appends every incoming entry not already present and persists.
// On save failure the previous list is restored and false returned.
func (v *Vault) Merge(incoming []account.Entry) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.merge(context.Background(), incoming)
}

func (v *Vault) merge(ctx context.Context, incoming []account.Entry) bool {
	if !v.isOpen() {
		return false
	}
	v.hint("merging")
	old := v.accounts
	next := slices.Clone(old)
	for _, e := range incoming {
		if slices.Contains(next, e) {
			v.log.Debug(ctx, "account exists", "index", slices.Index(next, e))
			continue
		}
		next = append(next, e)
		v.hint("merged " + e.Title())
	}
	v.accounts = next
	if err := v.save(ctx); err != nil {
		v.log.Error(ctx, "merge not saved, rolling back", "error", err)
		v.accounts = old
		return false
	}
	return true
}

// ReplaceAll adopts entries as the whole list and persists, restoring the
// previous list if the save fails.
func (v *Vault) ReplaceAll(entries []account.Entry) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.replaceAll(context.Background(), entries)
}

func (v *Vault) replaceAll(ctx context.Context, entries []account.Entry) bool {
	if !v.isOpen() {
		return false
	}
	v.hint("replacing")
	old := v.accounts
	next := make([]account.Entry, 0, len(entries))
	next = append(next, entries...)
	v.accounts = next
	if err := v.save(ctx); err != nil {
		v.log.Error(ctx, "replace not saved, rolling back", "error", err)
		v.accounts = old
		return false
	}
	return true
}

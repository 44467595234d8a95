package vault

import "errors"

const (
	KDFIterations = 10000
	MasterKeyLen  = 32
	EncKeyLen     = 16
	MacKeyLen     = 32
	IVLen         = 16

	// RecordSep joins the encoded IV, MAC and ciphertext in the file body.
	RecordSep = ":"

	// DefaultFileName is the primary store file inside the data dir.
	DefaultFileName = "secrets.dat"
	ExportExt       = ".otpd"
)

var (
	ErrClosed     = errors.New("vault: store is closed")
	ErrCorrupt    = errors.New("vault: corrupt file")
	ErrAuthFailed = errors.New("vault: authentication failed")
	ErrNoSalt     = errors.New("vault: empty salt")
	ErrNotFound   = errors.New("vault: account not found")
	ErrBadSource  = errors.New("vault: unusable import source")

	ErrQueueFull        = errors.New("vault: operation queue full")
	ErrSchedulerStopped = errors.New("vault: scheduler stopped")
)

// KeyMaterial is the derived key pair: Enc for AES, Mac for HMAC-SHA256.
type KeyMaterial struct {
	Enc []byte
	Mac []byte
}

func (k *KeyMaterial) wipe() {
	if k == nil {
		return
	}
	zero(k.Enc)
	zero(k.Mac)
}

// Record is one authenticated ciphertext: the literal file content once
// rendered with String.
type Record struct {
	IV         []byte
	MAC        []byte
	Ciphertext []byte
}

// ImportMode selects how imported accounts are applied to the primary store.
type ImportMode int

const (
	ImportMerge ImportMode = iota
	ImportReplace
)

func (m ImportMode) String() string {
	if m == ImportReplace {
		return "replace"
	}
	return "merge"
}

package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

var (
	encInfo = []byte("otpvault enc v1")
	macInfo = []byte("otpvault mac v1")
)

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func randBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// DeriveKeys stretches passphrase with PBKDF2-HMAC-SHA1 and expands the
// master into independent encryption and MAC keys with HKDF-SHA256.
// The same (passphrase, salt) always yields the same keys.
func DeriveKeys(passphrase, salt string) (*KeyMaterial, error) {
	if salt == "" {
		return nil, ErrNoSalt
	}
	master := pbkdf2.Key([]byte(passphrase), []byte(salt), KDFIterations, MasterKeyLen, sha1.New)
	defer zero(master)

	km := &KeyMaterial{Enc: make([]byte, EncKeyLen), Mac: make([]byte, MacKeyLen)}
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, encInfo), km.Enc); err != nil {
		return nil, fmt.Errorf("derive enc key: %w", err)
	}
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, macInfo), km.Mac); err != nil {
		km.wipe()
		return nil, fmt.Errorf("derive mac key: %w", err)
	}
	return km, nil
}

// Encrypt seals plaintext with AES-CBC under a fresh IV and appends an
// HMAC-SHA256 tag over iv||ciphertext.
func Encrypt(plaintext []byte, km *KeyMaterial) (*Record, error) {
	if km == nil {
		return nil, ErrClosed
	}
	block, err := aes.NewCipher(km.Enc)
	if err != nil {
		return nil, err
	}
	iv, err := randBytes(IVLen)
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plaintext, block.BlockSize())
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)
	zero(padded)

	return &Record{IV: iv, MAC: tag(km.Mac, iv, ct), Ciphertext: ct}, nil
}

// Decrypt verifies the tag before touching the ciphertext. Any failure
// returns no plaintext.
func Decrypt(rec *Record, km *KeyMaterial) ([]byte, error) {
	if km == nil {
		return nil, ErrClosed
	}
	if rec == nil || len(rec.IV) != IVLen || len(rec.Ciphertext) == 0 || len(rec.Ciphertext)%aes.BlockSize != 0 {
		return nil, ErrCorrupt
	}
	if !hmac.Equal(rec.MAC, tag(km.Mac, rec.IV, rec.Ciphertext)) {
		return nil, ErrAuthFailed
	}

	block, err := aes.NewCipher(km.Enc)
	if err != nil {
		return nil, err
	}
	pt := make([]byte, len(rec.Ciphertext))
	cipher.NewCBCDecrypter(block, rec.IV).CryptBlocks(pt, rec.Ciphertext)

	out, err := pkcs7Unpad(pt, block.BlockSize())
	if err != nil {
		zero(pt)
		return nil, err
	}
	return out, nil
}

func tag(key, iv, ct []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(iv)
	m.Write(ct)
	return m.Sum(nil)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrCorrupt
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, ErrCorrupt
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrCorrupt
		}
	}
	return b[:len(b)-n], nil
}

// String renders base64(iv):base64(mac):base64(ciphertext).
func (r *Record) String() string {
	enc := base64.StdEncoding
	return enc.EncodeToString(r.IV) + RecordSep +
		enc.EncodeToString(r.MAC) + RecordSep +
		enc.EncodeToString(r.Ciphertext)
}

// ParseRecord is the inverse of Record.String. Surrounding whitespace is
// ignored.
func ParseRecord(s string) (*Record, error) {
	parts := strings.Split(strings.TrimSpace(s), RecordSep)
	if len(parts) != 3 {
		return nil, ErrCorrupt
	}
	var fields [3][]byte
	for i, p := range parts {
		b, err := base64.StdEncoding.DecodeString(p)
		if err != nil || len(b) == 0 {
			return nil, ErrCorrupt
		}
		fields[i] = b
	}
	return &Record{IV: fields[0], MAC: fields[1], Ciphertext: fields[2]}, nil
}

// atomicWriteFile writes data to a temp file in the target dir and renames
// it into place, so path never holds a partial write.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".otpvault-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	_ = syncDir(dir)
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// Package account defines the TOTP credential value type and its canonical
// JSON and otpauth URI encodings.
package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fahmaliyi/otpvault/totp"
)

var (
	ErrInvalidEntry = errors.New("account: invalid entry")
	ErrInvalidURI   = errors.New("account: invalid otpauth uri")
)

// Entry is one TOTP credential. Entries are compared by value: two entries
// are the same account iff label, issuer and secret are identical.
type Entry struct {
	Label  string `json:"label"`
	Issuer string `json:"issuer"`
	Secret string `json:"secret"`
}

// New builds an entry from user-entered fields. The secret is upper-cased
// and stripped of spaces so hand-typed keys match their QR form.
func New(label, issuer, secret string) Entry {
	secret = strings.ToUpper(strings.Join(strings.Fields(secret), ""))
	return Entry{
		Label:  strings.TrimSpace(label),
		Issuer: strings.TrimSpace(issuer),
		Secret: secret,
	}
}

// ParseJSON decodes the canonical JSON form. Missing keys are left empty.
func ParseJSON(data []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return e, nil
}

// JSON returns the canonical JSON form used for persistence.
func (e Entry) JSON() string {
	b, err := json.Marshal(e)
	if err != nil {
		// three string fields always marshal
		panic(err)
	}
	return string(b)
}

func (e Entry) Equal(o Entry) bool { return e == o }

// Title is the human label: "label issuer", or just the label.
func (e Entry) Title() string {
	if e.Issuer != "" {
		return e.Label + " " + e.Issuer
	}
	return e.Label
}

// Valid reports whether the entry has a label and a decodable secret.
func (e Entry) Valid() bool {
	if e.Label == "" || e.Secret == "" {
		return false
	}
	_, err := totp.DecodeSecret(e.Secret)
	return err == nil
}

// Code returns the one-time code for the window containing t.
func (e Entry) Code(t time.Time) (string, error) {
	return totp.Code(e.Secret, t)
}

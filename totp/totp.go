// Package totp implements RFC 6238 time-based one-time codes on top of the
// RFC 4226 HOTP construction (HMAC-SHA1, dynamic truncation, 6 digits).
package totp

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const (
	Period = 30 * time.Second
	Digits = 6
)

var ErrInvalidSecret = errors.New("totp: invalid base32 secret")

var (
	noPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

	hotpOpts = hotp.ValidateOpts{
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
)

const periodSeconds = int64(Period / time.Second)

// normalize strips spaces and padding and upper-cases a Base32 secret.
func normalize(secret string) string {
	s := strings.ToUpper(strings.Join(strings.Fields(secret), ""))
	return strings.TrimRight(s, "=")
}

// DecodeSecret decodes a Base32 shared secret. Case, padding and embedded
// spaces are ignored.
func DecodeSecret(secret string) ([]byte, error) {
	s := normalize(secret)
	if s == "" {
		return nil, ErrInvalidSecret
	}
	key, err := noPadding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return key, nil
}

// counterAt is floor(unix / 30), also for times before the epoch.
func counterAt(unix int64) int64 {
	c := unix / periodSeconds
	if unix%periodSeconds < 0 {
		c--
	}
	return c
}

// hotpCode runs the HOTP truncation for a normalized Base32 secret. A
// negative counter is used as its two's complement 8-byte form.
func hotpCode(secret string, counter int64) (string, error) {
	code, err := hotp.GenerateCodeCustom(secret, uint64(counter), hotpOpts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return code, nil
}

// Generate computes the code for the 30s window containing unix.
func Generate(secret []byte, unix int64) string {
	code, err := hotpCode(noPadding.EncodeToString(secret), counterAt(unix))
	if err != nil {
		// our own encoding always decodes
		panic(err)
	}
	return code
}

// Code returns the code valid at t for a Base32 secret.
func Code(secret string, t time.Time) (string, error) {
	s := normalize(secret)
	if s == "" {
		return "", ErrInvalidSecret
	}
	return hotpCode(s, Counter(t))
}

// Counter is the HOTP moving factor for t.
func Counter(t time.Time) int64 {
	return counterAt(t.Unix())
}

// WindowStart is the first instant of the window containing t.
func WindowStart(t time.Time) time.Time {
	return time.Unix(Counter(t)*periodSeconds, 0)
}

// Remaining is the time left in the window containing t, in whole seconds
// (30 at the start of a window, 1 just before rollover).
func Remaining(t time.Time) time.Duration {
	into := (t.Unix()%periodSeconds + periodSeconds) % periodSeconds
	return time.Duration(periodSeconds-into) * time.Second
}

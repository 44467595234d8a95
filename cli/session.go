// Package cli is the terminal front end: a line-oriented command loop and a
// full-screen interface, both driving the store through its scheduler.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fahmaliyi/otpvault/account"
	"github.com/fahmaliyi/otpvault/config"
	"github.com/fahmaliyi/otpvault/logging"
	"github.com/fahmaliyi/otpvault/vault"
)

// ErrAborted means the user closed input while a prompt was waiting.
var ErrAborted = errors.New("cli: input closed")

// PasswordFunc reads a secret without echoing it.
type PasswordFunc func(prompt string) (string, error)

// Session is one interactive run against an unlocked-or-locked store.
type Session struct {
	sched *vault.Scheduler
	vault *vault.Vault
	log   logging.Logger

	in       *bufio.Reader
	out      io.Writer
	password PasswordFunc
	clip     Clipboard
	now      func() time.Time

	exportDir string
	idle      time.Duration
	clipClear time.Duration
	lastInput time.Time
}

type Option func(*Session)

func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Session) {
		s.in = bufio.NewReader(in)
		s.out = out
	}
}

// WithPassword replaces line input for secrets, e.g. with a no-echo
// terminal reader.
func WithPassword(fn PasswordFunc) Option {
	return func(s *Session) { s.password = fn }
}

func WithClipboard(c Clipboard) Option {
	return func(s *Session) { s.clip = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

func NewSession(sched *vault.Scheduler, cfg *config.Config, opts ...Option) *Session {
	s := &Session{
		sched:     sched,
		vault:     sched.Vault(),
		log:       logging.Nop(),
		in:        bufio.NewReader(strings.NewReader("")),
		out:       io.Discard,
		clip:      systemClipboard{},
		now:       time.Now,
		exportDir: cfg.DataDir,
		idle:      cfg.IdleTimeout,
		clipClear: cfg.ClipboardClear,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastInput = s.now()
	return s
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// readLine prompts and returns one trimmed line. EOF with no data is
// ErrAborted.
func (s *Session) readLine(prompt string) (string, error) {
	if prompt != "" {
		s.printf("%s", prompt)
	}
	line, err := s.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrAborted
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (s *Session) readSecret(prompt string) (string, error) {
	if s.password != nil {
		return s.password(prompt)
	}
	return s.readLine(prompt)
}

// newPassphrase asks twice and insists on a match.
func (s *Session) newPassphrase(prompt string) (string, error) {
	for {
		p1, err := s.readSecret(prompt)
		if err != nil {
			return "", err
		}
		if p1 == "" {
			s.printf("Passphrase must not be empty.\n")
			continue
		}
		p2, err := s.readSecret("Repeat: ")
		if err != nil {
			return "", err
		}
		if p1 == p2 {
			return p1, nil
		}
		s.printf("Passphrases differ, try again.\n")
	}
}

// Unlock asks for the passphrase until the store opens. A missing store is
// created with a freshly chosen passphrase.
func (s *Session) Unlock(ctx context.Context) error {
	for !s.vault.IsOpen() {
		var (
			pass string
			err  error
		)
		if s.vault.PathExists() {
			pass, err = s.readSecret("Passphrase: ")
		} else {
			s.printf("No store at %s. Choose a passphrase to create it.\n", s.vault.Filename)
			pass, err = s.newPassphrase("New passphrase: ")
		}
		if err != nil {
			return err
		}
		if _, err := s.sched.Do(ctx, vault.Open{Passphrase: pass}); err != nil {
			if errors.Is(err, vault.ErrAuthFailed) {
				s.printf("Wrong passphrase.\n")
				continue
			}
			return err
		}
	}
	s.touch()
	return nil
}

// Lock closes the store through the scheduler.
func (s *Session) Lock(ctx context.Context) error {
	if !s.vault.IsOpen() {
		return nil
	}
	_, err := s.sched.Do(ctx, vault.Close{})
	return err
}

func (s *Session) touch() { s.lastInput = s.now() }

// idleExpired reports whether the store has sat unused past the idle
// timeout. A zero timeout never expires.
func (s *Session) idleExpired() bool {
	return s.idle > 0 && s.now().Sub(s.lastInput) >= s.idle
}

// entryAt resolves a 1-based list number typed by the user.
func (s *Session) entryAt(arg string) (account.Entry, error) {
	var n int
	if _, err := fmt.Sscanf(arg, "%d", &n); err != nil {
		return account.Entry{}, fmt.Errorf("%q is not a number", arg)
	}
	list := s.vault.Accounts()
	if n < 1 || n > len(list) {
		return account.Entry{}, fmt.Errorf("%w: #%d", vault.ErrNotFound, n)
	}
	return list[n-1], nil
}

func (s *Session) save(ctx context.Context) error {
	_, err := s.sched.Do(ctx, vault.Save{})
	return err
}

// commit saves an edit made since prev was taken. If the save fails the
// in-memory list goes back to prev so it keeps matching the file.
func (s *Session) commit(ctx context.Context, prev []account.Entry) error {
	if err := s.save(ctx); err != nil {
		if !s.vault.Restore(prev) {
			s.log.Warn(ctx, "edit not restored after failed save", "error", err)
		}
		return err
	}
	return nil
}

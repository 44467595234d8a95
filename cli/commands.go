package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fahmaliyi/otpvault/totp"
	"github.com/fahmaliyi/otpvault/vault"
)

const usage = `Commands:
  l             list accounts with current codes
  a             add an account
  u URI         add an account from an otpauth:// URI
  s N           show account N and its URI
  qr N [PNG]    print account N as a QR code, or write it to PNG
  c N           copy the code of account N
  r N           rename account N
  d N           delete account N
  m N M         move account N to position M
  p             change passphrase
  x [PATH]      export to an archive
  i SRC [mode]  import an archive (mode: merge or replace)
  lock          lock now
  t             full-screen view
  h             help
  q             quit`

// Run is the command loop. It returns when the user quits or input ends.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Unlock(ctx); err != nil {
		return err
	}
	s.printf("%s\n", usage)

	for {
		line, err := s.readLine("> ")
		if errors.Is(err, ErrAborted) {
			return nil
		}
		if err != nil {
			return err
		}

		if s.idleExpired() {
			if err := s.Lock(ctx); err != nil {
				s.log.Warn(ctx, "idle lock failed", "error", err)
			}
			s.printf("Locked after %s without input.\n", s.idle)
			if err := s.Unlock(ctx); err != nil {
				return err
			}
			continue
		}
		s.touch()

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		quit, err := s.dispatch(ctx, parts[0], parts[1:])
		if err != nil {
			if errors.Is(err, ErrAborted) {
				return nil
			}
			s.printf("Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (s *Session) dispatch(ctx context.Context, cmd string, args []string) (bool, error) {
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s needs %d argument(s), see h", cmd, n)
		}
		return nil
	}

	switch cmd {
	case "l":
		s.handleList()
	case "a":
		return false, s.handleAdd(ctx)
	case "u":
		if err := need(1); err != nil {
			return false, err
		}
		return false, s.handleAddURI(ctx, args[0])
	case "qr":
		if err := need(1); err != nil {
			return false, err
		}
		png := ""
		if len(args) > 1 {
			png = args[1]
		}
		return false, s.handleQR(args[0], png)
	case "s", "c", "r", "d":
		if err := need(1); err != nil {
			return false, err
		}
		return false, s.handleEntry(ctx, cmd, args[0])
	case "m":
		if err := need(2); err != nil {
			return false, err
		}
		return false, s.handleMove(ctx, args[0], args[1])
	case "p":
		return false, s.handleChangePassphrase(ctx)
	case "x":
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		return false, s.handleExport(ctx, path)
	case "i":
		if err := need(1); err != nil {
			return false, err
		}
		mode := ""
		if len(args) > 1 {
			mode = args[1]
		}
		return false, s.handleImport(ctx, args[0], mode)
	case "lock":
		if err := s.Lock(ctx); err != nil {
			return false, err
		}
		s.printf("Locked.\n")
		return false, s.Unlock(ctx)
	case "t":
		if err := RunTUI(ctx, s); err != nil {
			return false, err
		}
		return false, s.Unlock(ctx)
	case "h", "help", "?":
		s.printf("%s\n", usage)
	case "q", "quit", "exit":
		s.printf("Exiting.\n")
		return true, nil
	default:
		s.printf("Unknown command, h for help.\n")
	}
	return false, nil
}

func (s *Session) handleList() {
	list := s.vault.Accounts()
	if len(list) == 0 {
		s.printf("No accounts yet.\n")
		return
	}
	now := s.now()
	s.printf("Codes valid for %ds:\n", int(totp.Remaining(now).Seconds()))
	for i, e := range list {
		code, err := e.Code(now)
		if err != nil {
			code = "------"
		}
		s.printf("%3d) %s  %s\n", i+1, formatCode(code), e.Title())
	}
}

func (s *Session) handleEntry(ctx context.Context, cmd, arg string) error {
	e, err := s.entryAt(arg)
	if err != nil {
		return err
	}
	switch cmd {
	case "s":
		s.printf("Label:  %s\nIssuer: %s\nURI:    %s\n", e.Label, e.Issuer, e.URI())
	case "c":
		code, err := e.Code(s.now())
		if err != nil {
			return err
		}
		if err := copyWithClear(s.clip, code, s.clipClear); err != nil {
			return err
		}
		if s.clipClear > 0 {
			s.printf("Code copied, clipboard clears in %s.\n", s.clipClear)
		} else {
			s.printf("Code copied.\n")
		}
	case "r":
		return s.handleRename(ctx, e)
	case "d":
		ok, err := s.confirm(fmt.Sprintf("Delete %s? [y/N] ", e.Title()))
		if err != nil || !ok {
			return err
		}
		prev := s.vault.Accounts()
		if !s.vault.Remove(e) {
			return vault.ErrNotFound
		}
		if err := s.commit(ctx, prev); err != nil {
			return err
		}
		s.printf("Deleted.\n")
	}
	return nil
}

func (s *Session) handleQR(arg, png string) error {
	e, err := s.entryAt(arg)
	if err != nil {
		return err
	}
	if png != "" {
		if err := WriteQRPNG(e.URI(), png); err != nil {
			return err
		}
		s.printf("QR code for %s written to %s\n", e.Title(), png)
		return nil
	}
	qr, err := QRString(e.URI())
	if err != nil {
		return err
	}
	s.printf("%s\n%s\n", e.Title(), qr)
	return nil
}

func (s *Session) handleMove(ctx context.Context, from, to string) error {
	var f, t int
	if _, err := fmt.Sscanf(from+" "+to, "%d %d", &f, &t); err != nil {
		return fmt.Errorf("positions must be numbers")
	}
	prev := s.vault.Accounts()
	if !s.vault.Move(f-1, t-1) {
		return fmt.Errorf("%w: cannot move #%d to #%d", vault.ErrNotFound, f, t)
	}
	if err := s.commit(ctx, prev); err != nil {
		return err
	}
	s.handleList()
	return nil
}

func (s *Session) handleChangePassphrase(ctx context.Context) error {
	old, err := s.readSecret("Current passphrase: ")
	if err != nil {
		return err
	}
	updated, err := s.newPassphrase("New passphrase: ")
	if err != nil {
		return err
	}
	if _, err := s.sched.Do(ctx, vault.ChangePassphrase{Old: old, New: updated}); err != nil {
		if !s.vault.IsOpen() {
			s.printf("Passphrase not changed.\n")
			return s.Unlock(ctx)
		}
		return err
	}
	s.printf("Passphrase changed.\n")
	return nil
}

func (s *Session) handleExport(ctx context.Context, path string) error {
	if path == "" {
		path = filepath.Join(s.exportDir, vault.ExportFileName(s.now()))
	}
	pass, err := s.newPassphrase("Archive passphrase: ")
	if err != nil {
		return err
	}
	if _, err := s.sched.Do(ctx, vault.Export{Passphrase: pass, Path: path}); err != nil {
		return err
	}
	s.printf("Exported %d accounts to %s\n", s.vault.Len(), path)
	return nil
}

func (s *Session) handleImport(ctx context.Context, locator, mode string) error {
	var m vault.ImportMode
	switch mode {
	case "", "merge":
		m = vault.ImportMerge
	case "replace":
		m = vault.ImportReplace
		ok, err := s.confirm("Replace every account with the archive contents? [y/N] ")
		if err != nil || !ok {
			return err
		}
	default:
		return fmt.Errorf("unknown import mode %q", mode)
	}

	src, err := vault.ParseSource(locator, nil)
	if err != nil {
		return err
	}
	pass, err := s.readSecret("Archive passphrase: ")
	if err != nil {
		return err
	}
	before := s.vault.Len()
	if _, err := s.sched.Do(ctx, vault.Import{Passphrase: pass, Source: src, Mode: m}); err != nil {
		return err
	}
	s.printf("Imported from %s (%s): %d -> %d accounts\n", src.Name, m, before, s.vault.Len())
	return nil
}

func (s *Session) confirm(prompt string) (bool, error) {
	answer, err := s.readLine(prompt)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

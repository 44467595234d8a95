package cli

import (
	"context"
	"fmt"

	"github.com/fahmaliyi/otpvault/account"
	"github.com/fahmaliyi/otpvault/vault"
)

func (s *Session) handleAdd(ctx context.Context) error {
	s.printf("\n--- Add Account ---\n")

	label, err := s.readLine("Label: ")
	if err != nil {
		return err
	}
	issuer, err := s.readLine("Issuer (optional): ")
	if err != nil {
		return err
	}
	secret, err := s.readSecret("Secret key: ")
	if err != nil {
		return err
	}
	return s.addEntry(ctx, account.New(label, issuer, secret))
}

func (s *Session) handleAddURI(ctx context.Context, raw string) error {
	e, err := account.ParseURI(raw)
	if err != nil {
		return err
	}
	if existing, ok := s.vault.FindByURI(raw); ok {
		return fmt.Errorf("already stored as %s", existing.Title())
	}
	return s.addEntry(ctx, e)
}

func (s *Session) addEntry(ctx context.Context, e account.Entry) error {
	if !e.Valid() {
		return fmt.Errorf("%w: need a label and a base32 secret", account.ErrInvalidEntry)
	}
	if s.vault.Contains(e) {
		return fmt.Errorf("already stored as %s", e.Title())
	}
	prev := s.vault.Accounts()
	if !s.vault.Add(e) {
		return vault.ErrClosed
	}
	if err := s.commit(ctx, prev); err != nil {
		return err
	}
	s.printf("Added %s.\n", e.Title())
	return nil
}

func (s *Session) handleRename(ctx context.Context, e account.Entry) error {
	label, err := s.readLine(fmt.Sprintf("Label [%s]: ", e.Label))
	if err != nil {
		return err
	}
	issuer, err := s.readLine(fmt.Sprintf("Issuer [%s]: ", e.Issuer))
	if err != nil {
		return err
	}
	if label == "" {
		label = e.Label
	}
	if issuer == "" {
		issuer = e.Issuer
	}
	updated := account.Entry{Label: label, Issuer: issuer, Secret: e.Secret}
	if updated == e {
		return nil
	}
	prev := s.vault.Accounts()
	s.vault.Replace(e, updated)
	if err := s.commit(ctx, prev); err != nil {
		return err
	}
	s.printf("Renamed to %s.\n", updated.Title())
	return nil
}

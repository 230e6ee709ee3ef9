package security

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/launcher/pkg/storage"
)

// ErrPasswordNotSet is returned when no sudo password has been stored
var ErrPasswordNotSet = errors.New("sudo password not set")

// SudoCredentials keeps the sudo password encrypted in the registry
type SudoCredentials struct {
	store   storage.Store
	secrets *SecretsManager
}

// NewSudoCredentials creates a credential source backed by store
func NewSudoCredentials(store storage.Store, secrets *SecretsManager) *SudoCredentials {
	return &SudoCredentials{store: store, secrets: secrets}
}

// SetSudoPassword encrypts and stores the password
func (c *SudoCredentials) SetSudoPassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	encrypted, err := c.secrets.EncryptSecret([]byte(password))
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}
	return c.store.SaveSetting(storage.SettingSudoPassword, encrypted)
}

// HasSudoPassword reports whether a password is stored
func (c *SudoCredentials) HasSudoPassword() bool {
	_, err := c.store.GetSetting(storage.SettingSudoPassword)
	return err == nil
}

// ClearSudoPassword forgets the stored password
func (c *SudoCredentials) ClearSudoPassword() error {
	return c.store.DeleteSetting(storage.SettingSudoPassword)
}

// DecryptedSudoPassword returns the stored password in clear text
func (c *SudoCredentials) DecryptedSudoPassword(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	encrypted, err := c.store.GetSetting(storage.SettingSudoPassword)
	if err != nil {
		if errors.Is(err, storage.ErrSettingNotFound) {
			return "", ErrPasswordNotSet
		}
		return "", err
	}

	plaintext, err := c.secrets.DecryptSecret(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt sudo password: %w", err)
	}
	return string(plaintext), nil
}

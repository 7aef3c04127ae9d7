package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"applister/internal/config"
)

// ErrKeysExist is returned when creating a keyring over existing key files.
var ErrKeysExist = errors.New("report keys already exist")

// Keyring is the host's own report key pair. The public half is plaintext so
// unattended scans can encrypt; the private half is sealed with a passphrase.
type Keyring struct {
	PublicKeyPath  string
	PrivateKeyPath string
}

// NewKeyring returns the keyring at the configured paths.
func NewKeyring(cfg config.EncryptionConfig) Keyring {
	return Keyring{PublicKeyPath: cfg.PublicKeyPath, PrivateKeyPath: cfg.PrivateKeyPath}
}

// Exists reports whether both key files are present.
func (k Keyring) Exists() bool {
	return fileExists(k.PublicKeyPath) && fileExists(k.PrivateKeyPath)
}

// Create generates an X25519 key pair and seals the identity with passphrase.
// Existing key files are left untouched.
func (k Keyring) Create(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	if k.Exists() {
		return fmt.Errorf("%w at %s", ErrKeysExist, filepath.Dir(k.PublicKeyPath))
	}

	id, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}
	sealed, err := seal(id.String()+"\n", passphrase)
	if err != nil {
		return err
	}

	// Private half first: a keyring without its public key is not usable.
	if err := writeKeyFile(k.PrivateKeyPath, sealed, 0o600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	if err := writeKeyFile(k.PublicKeyPath, []byte(id.Recipient().String()+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

// Recipient parses the stored public key.
func (k Keyring) Recipient() (age.Recipient, error) {
	data, err := os.ReadFile(k.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	recipients, err := age.ParseRecipients(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing public key %s: %w", k.PublicKeyPath, err)
	}
	return recipients[0], nil
}

// Open unseals the private key and returns a reader for reports sent to it.
func (k Keyring) Open(passphrase string) (*ReportReader, error) {
	sealed, err := os.ReadFile(k.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	unsealer, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("unsealing private key: %w", err)
	}
	plain, err := age.Decrypt(bytes.NewReader(sealed), unsealer)
	if err != nil {
		return nil, fmt.Errorf("unsealing private key (wrong passphrase?): %w", err)
	}
	return readIdentities(plain)
}

func seal(secret, passphrase string) ([]byte, error) {
	lock, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("deriving passphrase key: %w", err)
	}
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, lock)
	if err != nil {
		return nil, fmt.Errorf("sealing private key: %w", err)
	}
	if _, err := io.WriteString(w, secret); err != nil {
		return nil, fmt.Errorf("sealing private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("sealing private key: %w", err)
	}
	return buf.Bytes(), nil
}

func writeKeyFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, perm)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

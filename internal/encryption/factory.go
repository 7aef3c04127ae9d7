package encryption

import (
	"fmt"

	"applister/internal/applister"
	"applister/internal/config"
)

// NewEncryptorFromConfig returns the report encryptor, or nil when export
// encryption is disabled. Enabling encryption with nobody to encrypt to is an
// error so reports are never silently written in plaintext.
func NewEncryptorFromConfig(export config.ExportConfig, cfg config.EncryptionConfig) (applister.Encryptor, error) {
	if !export.Encrypt {
		return nil, nil
	}
	enc, err := NewReportEncryptor(cfg)
	if err != nil {
		return nil, err
	}
	if !enc.IsConfigured() {
		return nil, fmt.Errorf("%w (run 'applister keys init' or set encryption.recipients)", ErrNoRecipients)
	}
	return enc, nil
}

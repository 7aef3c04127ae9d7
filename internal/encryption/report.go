package encryption

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"

	"applister/internal/applister"
	"applister/internal/config"
)

// ErrNoRecipients is returned when a report would be encrypted to nobody.
var ErrNoRecipients = errors.New("report encryption has no recipients")

// Extension is appended to keys of encrypted reports.
const Extension = ".age"

// ReportEncryptor encrypts exported reports to the host keyring and to every
// extra recipient in the config, so a central team can read uploaded reports
// without the host passphrase.
type ReportEncryptor struct {
	keyring    Keyring
	recipients []age.Recipient
	armor      bool
}

var _ applister.Encryptor = (*ReportEncryptor)(nil)

// NewReportEncryptor parses the configured recipients. An invalid recipient is
// an error.
func NewReportEncryptor(cfg config.EncryptionConfig) (*ReportEncryptor, error) {
	extra, err := ParseRecipients(cfg.Recipients)
	if err != nil {
		return nil, err
	}
	return &ReportEncryptor{
		keyring:    NewKeyring(cfg),
		recipients: extra,
		armor:      cfg.Armor,
	}, nil
}

// ParseRecipients parses one age public key per entry. Blank entries are skipped.
func ParseRecipients(keys []string) ([]age.Recipient, error) {
	var out []age.Recipient
	for i, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		parsed, err := age.ParseRecipients(strings.NewReader(key))
		if err != nil {
			return nil, fmt.Errorf("encryption.recipients[%d]: %w", i, err)
		}
		out = append(out, parsed...)
	}
	return out, nil
}

// Setup creates the host keyring.
func (e *ReportEncryptor) Setup(passphrase string) error {
	return e.keyring.Create(passphrase)
}

// IsConfigured reports whether there is anyone to encrypt to.
func (e *ReportEncryptor) IsConfigured() bool {
	return fileExists(e.keyring.PublicKeyPath) || len(e.recipients) > 0
}

// Extension returns ".age" for binary and armored reports alike.
func (e *ReportEncryptor) Extension() string { return Extension }

// Encrypt reads a report from r and writes it sealed to w.
func (e *ReportEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	to, err := e.audience()
	if err != nil {
		return err
	}

	out := w
	var armored io.WriteCloser
	if e.armor {
		armored = armor.NewWriter(w)
		out = armored
	}

	sealed, err := age.Encrypt(out, to...)
	if err != nil {
		return fmt.Errorf("starting report encryption: %w", err)
	}
	if _, err := io.Copy(sealed, r); err != nil {
		return fmt.Errorf("encrypting report: %w", err)
	}
	if err := sealed.Close(); err != nil {
		return fmt.Errorf("finishing report encryption: %w", err)
	}
	if armored != nil {
		if err := armored.Close(); err != nil {
			return fmt.Errorf("finishing report armor: %w", err)
		}
	}
	return nil
}

// audience is the host key, when present, followed by the extra recipients.
func (e *ReportEncryptor) audience() ([]age.Recipient, error) {
	to := slices.Clone(e.recipients)
	if fileExists(e.keyring.PublicKeyPath) {
		own, err := e.keyring.Recipient()
		if err != nil {
			return nil, err
		}
		to = append([]age.Recipient{own}, to...)
	}
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}
	return to, nil
}

package encryption

import (
	"bytes"
	"fmt"
	"io"

	"applister/internal/applister"
)

const fakeMarker = "applister-fake-report\n"

// FakeEncryptor is a reversible stand-in for ReportEncryptor. It prefixes a
// marker and inverts every byte, so output never equals the report.
type FakeEncryptor struct {
	// Err, when set, is returned by Encrypt.
	Err error

	sealed int
}

var _ applister.Encryptor = (*FakeEncryptor)(nil)

func NewFakeEncryptor() *FakeEncryptor {
	return &FakeEncryptor{}
}

func (f *FakeEncryptor) Setup(string) error { return nil }

func (f *FakeEncryptor) IsConfigured() bool { return true }

func (f *FakeEncryptor) Extension() string { return ".fake" }

// Sealed returns how many reports were encrypted.
func (f *FakeEncryptor) Sealed() int { return f.sealed }

func (f *FakeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if f.Err != nil {
		return f.Err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading report: %w", err)
	}
	out := append([]byte(fakeMarker), invert(data)...)
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	f.sealed++
	return nil
}

// Decrypt reverses Encrypt.
func (f *FakeEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading report: %w", err)
	}
	body, ok := bytes.CutPrefix(data, []byte(fakeMarker))
	if !ok {
		return fmt.Errorf("not a fake-encrypted report")
	}
	_, err = w.Write(invert(body))
	return err
}

func invert(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = ^c
	}
	return out
}

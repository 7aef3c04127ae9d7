package encryption

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"filippo.io/age/armor"
)

// ReportReader decrypts exported reports. Binary and armored reports are
// both accepted.
type ReportReader struct {
	identities []age.Identity
}

// LoadIdentityFile reads plaintext age identities from path, as held by the
// owner of an extra recipient key.
func LoadIdentityFile(path string) (*ReportReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening identity file: %w", err)
	}
	defer f.Close()
	return readIdentities(f)
}

func readIdentities(r io.Reader) (*ReportReader, error) {
	ids, err := age.ParseIdentities(r)
	if err != nil {
		return nil, fmt.Errorf("parsing identities: %w", err)
	}
	return &ReportReader{identities: ids}, nil
}

// Decrypt writes the plaintext of the report read from r to w.
func (rr *ReportReader) Decrypt(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	var src io.Reader = br
	if head, _ := br.Peek(len(armor.Header)); string(head) == armor.Header {
		src = armor.NewReader(br)
	}

	plain, err := age.Decrypt(src, rr.identities...)
	if err != nil {
		return fmt.Errorf("opening report: %w", err)
	}
	if _, err := io.Copy(w, plain); err != nil {
		return fmt.Errorf("decrypting report: %w", err)
	}
	return nil
}

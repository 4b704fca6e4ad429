package enhance

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

// Fingerprint reads r once and returns the base64 MD5 digest of its bytes along
// with the bytes themselves. The service uses the digest to validate uploads.
func Fingerprint(r io.Reader) (string, []byte, error) {
	var buf bytes.Buffer
	hash := md5.New()
	if _, err := io.Copy(io.MultiWriter(&buf, hash), r); err != nil {
		return "", nil, fmt.Errorf("enhance: read payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(hash.Sum(nil)), buf.Bytes(), nil
}

// FingerprintFile is Fingerprint over the file at path.
func FingerprintFile(path string) (string, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("enhance: open payload: %w", err)
	}
	defer f.Close()
	return Fingerprint(f)
}

package publish

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

// Encode converts raw bytes to the store's transport encoding.
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Decode reverses Encode. GitHub wraps base64 payloads at 60 columns, so
// line breaks are ignored.
func Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrap(err, "decode content")
	}
	return b, nil
}

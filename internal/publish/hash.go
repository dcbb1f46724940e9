package publish

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// BlobSHA returns the git blob id of content, which is what the contents API
// reports as a file's revision.
func BlobSHA(content []byte) string {
	h := sha1.New()
	h.Write([]byte("blob " + strconv.Itoa(len(content)) + "\x00"))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

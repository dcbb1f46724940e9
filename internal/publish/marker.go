package publish

import (
	"bytes"
	"time"
)

// AppendMarker returns a Transform that keeps the existing content and adds
// a deploy timestamp comment, so the write is always a modify.
func AppendMarker(now time.Time) Transform {
	return func(old []byte) ([]byte, error) {
		var buf bytes.Buffer
		buf.Write(old)
		if len(old) > 0 && !bytes.HasSuffix(old, []byte("\n")) {
			buf.WriteByte('\n')
		}
		buf.WriteString("<!-- deployed: " + now.UTC().Format(time.RFC3339) + " -->\n")
		return buf.Bytes(), nil
	}
}

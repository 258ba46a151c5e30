package mailer

import (
	"encoding/base64"
	"strings"
)

// DefaultChunkSize is the slice size used when encoding attachments.
const DefaultChunkSize = 32 * 1024

// EncodeBase64Chunked base64-encodes buf slice by slice. The chunk size is
// rounded down to a multiple of 3 so no slice emits padding and the result is
// identical to a single-pass encoding.
func EncodeBase64Chunked(buf []byte, chunk int) string {
	chunk -= chunk % 3
	if chunk <= 0 {
		chunk = DefaultChunkSize - DefaultChunkSize%3
	}

	var b strings.Builder
	b.Grow(base64.StdEncoding.EncodedLen(len(buf)))
	for off := 0; off < len(buf); off += chunk {
		end := off + chunk
		if end > len(buf) {
			end = len(buf)
		}
		b.WriteString(base64.StdEncoding.EncodeToString(buf[off:end]))
	}
	return b.String()
}

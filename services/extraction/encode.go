package extraction

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"
)

// encodeChunkSize is a multiple of 3 so chunk boundaries never need padding.
const encodeChunkSize = 48 * 1024

// EncodeBase64 streams r into w as standard base64 using a fixed-size
// buffer, so large documents never need a second full-size copy.
func EncodeBase64(w io.Writer, r io.Reader) (int64, error) {
	enc := base64.NewEncoder(base64.StdEncoding, w)
	buf := make([]byte, encodeChunkSize)
	// hide WriterTo so the copy goes through buf chunk by chunk
	n, err := io.CopyBuffer(enc, struct{ io.Reader }{r}, buf)
	if err != nil {
		return n, err
	}
	return n, enc.Close()
}

// DataURL returns "data:<mime>;base64,<payload>" for the document.
func DataURL(mimeType string, document []byte) (string, error) {
	prefix := "data:" + mimeType + ";base64,"
	var sb strings.Builder
	sb.Grow(len(prefix) + base64.StdEncoding.EncodedLen(len(document)))
	sb.WriteString(prefix)
	if _, err := EncodeBase64(&sb, bytes.NewReader(document)); err != nil {
		return "", err
	}
	return sb.String(), nil
}

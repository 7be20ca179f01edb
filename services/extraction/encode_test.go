package extraction

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeBase64MatchesStdlib(t *testing.T) {
	for _, size := range []int{0, 1, 2, 3, encodeChunkSize - 1, encodeChunkSize, encodeChunkSize*3 + 7} {
		doc := bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef, 0x42}, size/5+1)[:size]

		var buf bytes.Buffer
		n, err := EncodeBase64(&buf, bytes.NewReader(doc))
		require.NoError(t, err)
		require.Equal(t, int64(size), n)
		require.Equal(t, base64.StdEncoding.EncodeToString(doc), buf.String(), "size %d", size)
	}
}

func TestDataURL(t *testing.T) {
	url, err := DataURL("image/png", []byte("png"))
	require.NoError(t, err)
	require.Equal(t, "data:image/png;base64,cG5n", url)
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}

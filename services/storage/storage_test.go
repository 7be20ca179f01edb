package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	key := GenerateKey("/course-packs/abc/", "Midterm 1 (Spring).PDF")
	require.Regexp(t, regexp.MustCompile(`^course-packs/abc/\d+_[0-9a-f]{8}_Midterm-1-Spring\.pdf$`), key)

	require.NotEqual(t, GenerateKey("p", "a.pdf"), GenerateKey("p", "a.pdf"))
	require.Contains(t, GenerateKey("p", ".png"), "_document.png")
}

func TestReadLimited(t *testing.T) {
	data, err := readLimited(strings.NewReader("12345"), 5)
	require.NoError(t, err)
	require.Equal(t, "12345", string(data))

	_, err = readLimited(strings.NewReader("123456"), 5)
	require.ErrorIs(t, err, ErrObjectTooLarge)

	data, err = readLimited(strings.NewReader("123456"), 0)
	require.NoError(t, err)
	require.Len(t, data, 6)
}

func newTestSpaces(t *testing.T, handler http.HandlerFunc) *SpacesClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewSpacesClient(SpacesConfig{
		AccessKey:      "key",
		SecretKey:      "secret",
		Bucket:         "docs",
		Region:         "us-east-1",
		Endpoint:       srv.URL,
		ForcePathStyle: true,
	})
	require.NoError(t, err)
	return client
}

func TestSpacesRoundTrip(t *testing.T) {
	objects := map[string][]byte{}
	client := newTestSpaces(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			objects[r.URL.Path] = body
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			body, ok := objects[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
				return
			}
			_, _ = w.Write(body)
		}
	})

	url, err := client.Upload(context.Background(), "exams/a.pdf", []byte("%PDF-1.7"), "application/pdf")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(url, "/exams/a.pdf"))
	require.Contains(t, objects, "/docs/exams/a.pdf")

	data, err := client.Download(context.Background(), "exams/a.pdf", 1024)
	require.NoError(t, err)
	require.True(t, bytes.Equal([]byte("%PDF-1.7"), data))

	_, err = client.Download(context.Background(), "exams/a.pdf", 3)
	require.ErrorIs(t, err, ErrObjectTooLarge)

	_, err = client.Download(context.Background(), "exams/missing.pdf", 0)
	require.ErrorIs(t, err, ErrObjectNotFound)
}

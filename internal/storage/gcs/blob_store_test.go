package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	buf      bytes.Buffer
	writeErr error
	closeErr error
	closed   bool
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	if w.writeErr != nil {
		return 0, w.writeErr
	}
	return w.buf.Write(p)
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return w.closeErr
}

type fakeOpener struct {
	writer      *fakeWriter
	bucket      string
	object      string
	contentType string
}

func (o *fakeOpener) NewWriter(_ context.Context, bucket, object, contentType string) io.WriteCloser {
	o.bucket, o.object, o.contentType = bucket, object, contentType
	return o.writer
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{writer: &fakeWriter{}}
	store, err := newWithOpener(opener, Config{Bucket: "pages-bucket"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "raw/42.html", "text/html", []byte("<main/>"))
	require.NoError(t, err)
	require.Equal(t, "gs://pages-bucket/raw/42.html", uri)
	require.Equal(t, "pages-bucket", opener.bucket)
	require.Equal(t, "raw/42.html", opener.object)
	require.Equal(t, "text/html", opener.contentType)
	require.Equal(t, "<main/>", opener.writer.buf.String())
	require.True(t, opener.writer.closed)
}

func TestPutObjectErrors(t *testing.T) {
	t.Parallel()

	store, err := newWithOpener(&fakeOpener{writer: &fakeWriter{writeErr: errors.New("quota")}}, Config{Bucket: "b"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "x.html", "", []byte("x"))
	require.ErrorContains(t, err, "quota")

	store, err = newWithOpener(&fakeOpener{writer: &fakeWriter{closeErr: errors.New("precondition")}}, Config{Bucket: "b"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "x.html", "", []byte("x"))
	require.ErrorContains(t, err, "close writer")

	_, err = store.PutObject(context.Background(), " ", "", nil)
	require.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)
	_, err = newWithOpener(&fakeOpener{}, Config{})
	require.Error(t, err)
}

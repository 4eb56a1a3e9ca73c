package cache_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropserve/service/internal/cache"
)

// failAfterWriter accepts the first n bytes and then fails, simulating a
// client that disconnects mid-download.
type failAfterWriter struct {
	n   int
	got bytes.Buffer
}

func (w *failAfterWriter) Write(p []byte) (int, error) {
	if w.got.Len() >= w.n {
		return 0, errors.New("broken pipe")
	}
	return w.got.Write(p)
}

func TestCache_LookupMissThenHit(t *testing.T) {
	c, err := cache.New(t.TempDir())
	require.NoError(t, err)

	_, ok := c.Lookup("obj.bin")
	require.False(t, ok)

	var sink bytes.Buffer
	require.NoError(t, c.Fill("obj.bin", strings.NewReader("cached bytes"), &sink))
	require.Equal(t, "cached bytes", sink.String())

	p, ok := c.Lookup("obj.bin")
	require.True(t, ok)

	got, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, "cached bytes", string(got))
}

func TestCache_FillCompletesWhenClientDisconnects(t *testing.T) {
	c, err := cache.New(t.TempDir())
	require.NoError(t, err)

	payload := strings.Repeat("x", 100*1024)
	w := &failAfterWriter{n: 1}

	err = c.Fill("big.bin", strings.NewReader(payload), w)
	require.Error(t, err, "the response side should report the broken pipe")

	// The cache entry must still be complete despite the dead client.
	p, ok := c.Lookup("big.bin")
	require.True(t, ok)

	got, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Len(t, got, len(payload))
}

func TestCache_TruncatedSourceDiscardsEntry(t *testing.T) {
	c, err := cache.New(t.TempDir())
	require.NoError(t, err)

	src := io.MultiReader(strings.NewReader("partial"), &failingReader{})
	var sink bytes.Buffer

	require.Error(t, c.Fill("trunc.bin", src, &sink))

	_, ok := c.Lookup("trunc.bin")
	require.False(t, ok, "a truncated fill must not become a cache entry")
}

func TestCache_ConcurrentFillsDoNotCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.New(dir)
	require.NoError(t, err)

	payload := strings.Repeat("y", 40960)

	// A second download of the same object starts while the first fill is
	// mid-stream, and its source dies before completing.
	var second bytes.Buffer
	src := &interleavingReader{
		r: strings.NewReader(payload),
		hook: func() {
			bad := io.MultiReader(strings.NewReader("partial"), &failingReader{})
			require.Error(t, c.Fill("obj.bin", bad, &second))
		},
	}

	var sink bytes.Buffer
	require.NoError(t, c.Fill("obj.bin", src, &sink))
	require.Equal(t, payload, sink.String())

	// The surviving entry must be the complete object, never a copy
	// truncated by the overlapping fill.
	p, ok := c.Lookup("obj.bin")
	require.True(t, ok)
	got, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Len(t, got, len(payload))

	// The failed fill must not leave a stray temp file behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestCache_RemoveIsIdempotent(t *testing.T) {
	c, err := cache.New(t.TempDir())
	require.NoError(t, err)

	var sink bytes.Buffer
	require.NoError(t, c.Fill("gone.bin", strings.NewReader("x"), &sink))

	require.NoError(t, c.Remove("gone.bin"))
	require.NoError(t, c.Remove("gone.bin"))
}

func TestCache_OpenServesContent(t *testing.T) {
	c, err := cache.New(t.TempDir())
	require.NoError(t, err)

	var sink bytes.Buffer
	require.NoError(t, c.Fill("read.bin", strings.NewReader("serve me"), &sink))

	rc, err := c.Open("read.bin")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "serve me", string(got))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("backend stream died")
}

// interleavingReader runs hook once after the first read, so a test can
// start an overlapping operation while a fill is in flight.
type interleavingReader struct {
	r     io.Reader
	hook  func()
	fired bool
}

func (ir *interleavingReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if !ir.fired {
		ir.fired = true
		ir.hook()
	}
	return n, err
}

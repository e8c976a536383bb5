package ocr

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T, rec Recognizer, r Renderer) (*Coordinator, string) {
	t.Helper()
	tmp := t.TempDir()
	c := NewCoordinator(Config{TempDir: tmp}, NewInvoker(rec, quietLogger()), r, quietLogger())
	return c, tmp
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "render artefacts left behind")
}

func TestProcessFile_Image(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.JPG", []byte("jpeg-bytes"))
	rec := &scriptedRecognizer{replies: []reply{{raw: words("InvoiceNum", "1")}}}
	c, _ := newTestCoordinator(t, rec, &fakeRenderer{})

	res, err := c.ProcessFile(context.Background(), path)

	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "1", res[0]["InvoiceNum"])
	assert.Equal(t, []byte("jpeg-bytes"), rec.calls[0])
}

func TestProcessFile_ImageVendorErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "b.png", []byte("png"))
	rec := &scriptedRecognizer{replies: []reply{{raw: vendorError(17, "quota exceeded")}}}
	c, _ := newTestCoordinator(t, rec, &fakeRenderer{})

	res, err := c.ProcessFile(context.Background(), path)

	assert.Nil(t, res)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 17, apiErr.Code)
	assert.Equal(t, "quota exceeded", apiErr.Message)
}

func TestProcessFile_ImageUnreadable(t *testing.T) {
	c, _ := newTestCoordinator(t, &scriptedRecognizer{}, &fakeRenderer{})
	_, err := c.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.jpeg"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestProcessFile_PDFSkipsFailedPage(t *testing.T) {
	rec := &scriptedRecognizer{replies: []reply{
		{raw: words("InvoiceNum", "p1")},
		{raw: vendorError(282000, "internal error")},
		{raw: words("InvoiceNum", "p3")},
	}}
	renderer := &fakeRenderer{pages: 3}
	c, tmp := newTestCoordinator(t, rec, renderer)

	res, err := c.ProcessFile(context.Background(), "/in/scan.pdf")

	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "p1", res[0]["InvoiceNum"])
	assert.Equal(t, "p3", res[1]["InvoiceNum"])
	assert.Len(t, rec.calls, 3)
	assert.Equal(t, RenderOptions{DPI: 300}, renderer.gotOpts)
	assertDirEmpty(t, tmp)
}

func TestProcessFile_PDFSkipsEmptyAndTransportFailures(t *testing.T) {
	rec := &scriptedRecognizer{replies: []reply{
		{raw: RawResult{KeyLogID: 1}},
		{err: errors.New("connection reset")},
		{raw: words("InvoiceNum", "p3")},
	}}
	c, _ := newTestCoordinator(t, rec, &fakeRenderer{pages: 3})

	res, err := c.ProcessFile(context.Background(), "x.PDF")

	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "p3", res[0]["InvoiceNum"])
}

func TestProcessFile_PDFPagesAreJPEG(t *testing.T) {
	rec := &scriptedRecognizer{replies: []reply{{raw: words("InvoiceNum", "1")}}}
	c, _ := newTestCoordinator(t, rec, &fakeRenderer{pages: 1})

	_, err := c.ProcessFile(context.Background(), "x.pdf")

	require.NoError(t, err)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, []byte{0xFF, 0xD8}, rec.calls[0][:2], "expected a JPEG payload")
}

func TestProcessFile_PDFRenderFailure(t *testing.T) {
	rec := &scriptedRecognizer{}
	c, tmp := newTestCoordinator(t, rec, &fakeRenderer{err: &RenderError{Path: "x.pdf", Err: errors.New("syntax error")}})

	res, err := c.ProcessFile(context.Background(), "x.pdf")

	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)
	assert.Empty(t, rec.calls)
	assertDirEmpty(t, tmp)
}

func TestProcessFile_PDFZeroPages(t *testing.T) {
	c, _ := newTestCoordinator(t, &scriptedRecognizer{}, &fakeRenderer{pages: 0})

	res, err := c.ProcessFile(context.Background(), "x.pdf")

	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestProcessFile_Unsupported(t *testing.T) {
	rec := &scriptedRecognizer{}
	c, _ := newTestCoordinator(t, rec, &fakeRenderer{pages: 2})

	res, err := c.ProcessFile(context.Background(), "notes.txt")

	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)
	assert.Empty(t, rec.calls)
}

func TestProcessFile_PDFCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &scriptedRecognizer{}
	c, tmp := newTestCoordinator(t, rec, &fakeRenderer{pages: 2})

	_, err := c.ProcessFile(ctx, "x.pdf")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.calls)
	assertDirEmpty(t, tmp)
}

func TestEncodePage_Downscales(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.png")
	writePNG(t, p, 200, 100)

	data, err := encodePage(p, 50, 95)
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 25, img.Bounds().Dy())
}

package ocr

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// reply is one scripted Recognizer outcome.
type reply struct {
	raw RawResult
	err error
}

// scriptedRecognizer answers calls in order and records the images it saw.
type scriptedRecognizer struct {
	mu      sync.Mutex
	replies []reply
	calls   [][]byte
}

func (s *scriptedRecognizer) Recognize(_ context.Context, img []byte) (RawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, img)
	if len(s.replies) == 0 {
		return nil, fmt.Errorf("unexpected call %d", len(s.calls))
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.raw, r.err
}

func words(kv ...string) RawResult {
	m := map[string]any{}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return RawResult{KeyWordsResult: m, KeyLogID: 1}
}

func vendorError(code int, msg string) RawResult {
	return RawResult{KeyErrorCode: code, KeyErrorMsg: msg}
}

// fakeRenderer writes n small PNG pages into outDir.
type fakeRenderer struct {
	pages   int
	err     error
	gotOpts RenderOptions
}

func (f *fakeRenderer) RenderPages(_ context.Context, _ string, outDir string, opts RenderOptions) ([]string, error) {
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	var out []string
	for i := 1; i <= f.pages; i++ {
		p := filepath.Join(outDir, fmt.Sprintf("page-%d.png", i))
		if err := imaging.Save(imaging.New(40, 20, color.White), p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	require.NoError(t, imaging.Save(img, path))
}

package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
)

func newTestVerifier(t *testing.T) *verifier {
	t.Helper()
	v := newVerifier(t.TempDir(), testBrowserConfig(), arbor.NewLogger())
	v.fallbackDir = "" // individual tests opt in to the fallback scan
	return v
}

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestAwaitDownloadDetectsNewFile(t *testing.T) {
	v := newTestVerifier(t)
	before := v.snapshot()

	go func() {
		time.Sleep(20 * time.Millisecond)
		os.WriteFile(filepath.Join(v.outputDir, "resume.pdf"), []byte("%PDF-1.4 data"), 0644)
	}()

	path, err := v.awaitDownload(context.Background(), before)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "resume.pdf" {
		t.Errorf("expected resume.pdf, got %s", path)
	}
}

func TestAwaitDownloadRejectsZeroByteFiles(t *testing.T) {
	v := newTestVerifier(t)
	before := v.snapshot()

	writeFile(t, v.outputDir, "empty.pdf", nil)

	_, err := v.awaitDownload(context.Background(), before)
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("a zero-byte file must never verify, got: %v", err)
	}
}

func TestAwaitDownloadIgnoresPartialFiles(t *testing.T) {
	v := newTestVerifier(t)
	before := v.snapshot()

	writeFile(t, v.outputDir, "resume.pdf.crdownload", []byte("partial"))

	_, err := v.awaitDownload(context.Background(), before)
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("an in-flight download must never verify, got: %v", err)
	}
}

func TestAwaitDownloadDetectsRefilledFile(t *testing.T) {
	// A file that existed empty in the snapshot and gained content counts
	v := newTestVerifier(t)
	writeFile(t, v.outputDir, "resume.pdf", nil)
	before := v.snapshot()

	writeFile(t, v.outputDir, "resume.pdf", []byte("content"))

	path, err := v.awaitDownload(context.Background(), before)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "resume.pdf" {
		t.Errorf("expected resume.pdf, got %s", path)
	}
}

func TestAwaitDownloadFallbackScan(t *testing.T) {
	v := newTestVerifier(t)
	fallback := t.TempDir()
	v.fallbackDir = fallback
	before := v.snapshot()

	writeFile(t, fallback, "john_doe.pdf", []byte("%PDF-1.4 resume"))
	// Non-PDF and stale files must be ignored by the scan
	writeFile(t, fallback, "notes.txt", []byte("irrelevant"))

	path, err := v.awaitDownload(context.Background(), before)
	if err != nil {
		t.Fatalf("expected fallback recovery, got: %v", err)
	}
	if filepath.Dir(path) != v.outputDir {
		t.Errorf("recovered file must be moved into the output dir, got %s", path)
	}
	if _, err := os.Stat(filepath.Join(fallback, "john_doe.pdf")); !os.IsNotExist(err) {
		t.Error("recovered file should no longer exist in the fallback dir")
	}
}

func TestAwaitDownloadFailsWhenNothingLands(t *testing.T) {
	v := newTestVerifier(t)

	_, err := v.awaitDownload(context.Background(), v.snapshot())
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got: %v", err)
	}
}

func TestAwaitDownloadHonorsContext(t *testing.T) {
	v := newTestVerifier(t)
	cfg := v.config
	cfg.DownloadWait = time.Minute
	v.config = cfg

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.awaitDownload(ctx, v.snapshot())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got: %v", err)
	}
}

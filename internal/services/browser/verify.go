package browser

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvest/internal/common"
)

// partialSuffixes are in-flight download artifacts that never count as a
// landed file.
var partialSuffixes = []string{".crdownload", ".part", ".tmp", ".download"}

// verifier confirms that a triggered download actually produced a file on
// disk. It works purely against the filesystem so browser quirks (renamed
// files, delayed flushes) don't produce false negatives.
type verifier struct {
	outputDir   string
	fallbackDir string
	config      common.BrowserConfig
	logger      arbor.ILogger
}

func newVerifier(outputDir string, config common.BrowserConfig, logger arbor.ILogger) *verifier {
	fallback := ""
	if home, err := os.UserHomeDir(); err == nil {
		fallback = filepath.Join(home, "Downloads")
	}
	return &verifier{
		outputDir:   outputDir,
		fallbackDir: fallback,
		config:      config,
		logger:      logger,
	}
}

// snapshot records the regular files currently in the output directory and
// their sizes.
func (v *verifier) snapshot() map[string]int64 {
	files := make(map[string]int64)
	entries, err := os.ReadDir(v.outputDir)
	if err != nil {
		return files
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if info, err := entry.Info(); err == nil {
			files[entry.Name()] = info.Size()
		}
	}
	return files
}

// awaitDownload waits for a new non-empty file to land in the output
// directory, falling back to a count comparison and finally to the browser's
// default download directory. A zero-byte file never verifies.
func (v *verifier) awaitDownload(ctx context.Context, before map[string]int64) (string, error) {
	deadline := time.Now().Add(v.config.DownloadWait)

	for time.Now().Before(deadline) {
		if path := v.findNewFile(before); path != "" {
			return v.validate(path), nil
		}
		if err := sleepCtx(ctx, v.config.DownloadPoll); err != nil {
			return "", err
		}
	}

	// The file may have landed under a name that collides with the snapshot;
	// a raw count increase still proves a download happened.
	after := v.snapshot()
	if len(after) > len(before) {
		if path := v.newestFile(after); path != "" {
			return v.validate(path), nil
		}
	}

	// Last resort: the browser may have ignored the download routing and
	// dropped the file in its default directory.
	if path, err := v.recoverFromFallback(); err == nil && path != "" {
		return v.validate(path), nil
	}

	return "", ErrVerificationFailed
}

// findNewFile returns a file that was not in the snapshot (or was empty in
// it) and now has content.
func (v *verifier) findNewFile(before map[string]int64) string {
	for name, size := range v.snapshot() {
		if size <= 0 || isPartial(name) {
			continue
		}
		if prev, existed := before[name]; !existed || prev == 0 {
			return filepath.Join(v.outputDir, name)
		}
	}
	return ""
}

// newestFile returns the most recently modified non-empty file in the set
func (v *verifier) newestFile(files map[string]int64) string {
	var newest string
	var newestMod time.Time
	for name, size := range files {
		if size <= 0 || isPartial(name) {
			continue
		}
		path := filepath.Join(v.outputDir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = path
			newestMod = info.ModTime()
		}
	}
	return newest
}

// recoverFromFallback scans the browser's default download directory for a
// PDF modified within the scan window and moves the newest one into the
// output directory.
func (v *verifier) recoverFromFallback() (string, error) {
	if v.fallbackDir == "" || v.fallbackDir == v.outputDir {
		return "", nil
	}

	matches, err := filepath.Glob(filepath.Join(v.fallbackDir, "*.pdf"))
	if err != nil || len(matches) == 0 {
		return "", err
	}

	cutoff := time.Now().Add(-v.config.FallbackScanWindow)
	var recent []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.Size() == 0 || info.ModTime().Before(cutoff) {
			continue
		}
		recent = append(recent, match)
	}
	if len(recent) == 0 {
		return "", nil
	}

	sort.Slice(recent, func(i, j int) bool {
		a, _ := os.Stat(recent[i])
		b, _ := os.Stat(recent[j])
		return a.ModTime().After(b.ModTime())
	})

	src := recent[0]
	dst := filepath.Join(v.outputDir, filepath.Base(src))
	if err := moveFile(src, dst); err != nil {
		return "", fmt.Errorf("failed to move %s from browser downloads: %w", filepath.Base(src), err)
	}

	v.logger.Info().
		Str("file", filepath.Base(dst)).
		Msg("Recovered download from browser default directory")
	return dst, nil
}

// validate runs a structural check on a landed PDF. An invalid file is worth
// a warning but the download itself still counts.
func (v *verifier) validate(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		if err := api.ValidateFile(path, nil); err != nil {
			v.logger.Warn().
				Err(err).
				Str("file", filepath.Base(path)).
				Msg("Downloaded PDF failed structural validation")
		}
	}
	return path
}

func isPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// moveFile renames, falling back to copy+remove for cross-device moves
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

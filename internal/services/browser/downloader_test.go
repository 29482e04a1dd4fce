package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvest/internal/models"
)

type sinkRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *sinkRecorder) record(level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, message)
}

func (r *sinkRecorder) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range r.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

var profileIDPattern = regexp.MustCompile(`/candidate/(\d+)/profile`)

// runFixture wires a fake page that serves a candidate list, per-candidate
// profiles with a download link, and writes a file on click.
type runFixture struct {
	page      *fakePage
	outputDir string
	sink      *sinkRecorder
	opts      RunOptions
}

func newRunFixture(t *testing.T, listHTML string, profileHTML func(id string) string) *runFixture {
	t.Helper()

	outputDir := t.TempDir()
	page := &fakePage{heights: []int64{1000}}

	page.htmlFor = func(location string) string {
		if m := profileIDPattern.FindStringSubmatch(location); m != nil {
			return profileHTML(m[1])
		}
		return listHTML
	}

	page.onClick = func(ClickTarget) error {
		page.mu.Lock()
		location := page.location
		page.mu.Unlock()
		m := profileIDPattern.FindStringSubmatch(location)
		if m == nil {
			return fmt.Errorf("click outside a profile page: %s", location)
		}
		return os.WriteFile(filepath.Join(outputDir, m[1]+".pdf"), []byte("%PDF-1.4 resume"), 0644)
	}

	return &runFixture{
		page:      page,
		outputDir: outputDir,
		sink:      &sinkRecorder{},
		opts: RunOptions{
			JobID:     "1234",
			OutputDir: outputDir,
			Cookies:   []models.Cookie{{Name: "session", Value: "abc"}},
		},
	}
}

func (f *runFixture) downloader() *Downloader {
	factory := func(context.Context, SessionOptions, arbor.ILogger) (Page, error) {
		return f.page, nil
	}
	return NewDownloaderWithFactory(testBrowserConfig(), factory, arbor.NewLogger(), f.sink.record)
}

func listHTMLFor(ids ...string) string {
	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, `<a href="/app/v2/job/1234/candidate/%s/profile">Candidate %s</a>`, id, id)
	}
	return b.String()
}

func downloadableProfile(string) string {
	return `<a download href="/files/resume.pdf">Download Resume</a>`
}

func TestRunDownloadsAllCandidates(t *testing.T) {
	// Three discovered candidates, one marked not hired
	listHTML := listHTMLFor("101", "202") +
		`<a class="not-hired" href="/app/v2/job/1234/candidate/303/profile">Rejected</a>`

	f := newRunFixture(t, listHTML, downloadableProfile)

	summary, err := f.downloader().Run(context.Background(), NewToken(), f.opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Found != 3 {
		t.Errorf("expected found 3 including the not-hired candidate, got %d", summary.Found)
	}
	if summary.UniqueFound != 2 {
		t.Errorf("expected 2 unique candidates, got %d", summary.UniqueFound)
	}
	if summary.Downloaded != 2 || summary.Failed != 0 {
		t.Errorf("expected 2 downloads and no failures, got %+v", summary)
	}
	if len(summary.MissingIDs) != 0 {
		t.Errorf("expected no missing IDs, got %v", summary.MissingIDs)
	}

	for _, id := range []string{"101", "202"} {
		if _, err := os.Stat(filepath.Join(f.outputDir, id+".pdf")); err != nil {
			t.Errorf("expected resume file for candidate %s: %v", id, err)
		}
	}

	if !f.sink.contains("Total Candidates Found: 2") {
		t.Errorf("missing enumeration progress line, got %v", f.sink.lines)
	}
	if !f.sink.contains("Processing candidate 1/2") || !f.sink.contains("Successfully downloaded resume 2/2") {
		t.Errorf("missing per-candidate progress lines, got %v", f.sink.lines)
	}
	if !f.sink.contains("Successfully Downloaded: 2") {
		t.Errorf("missing summary line, got %v", f.sink.lines)
	}
}

func TestRunIsolatesCandidateFailures(t *testing.T) {
	f := newRunFixture(t, listHTMLFor("101", "202", "303"), func(id string) string {
		if id == "202" {
			return `<p>No documents uploaded</p>`
		}
		return downloadableProfile(id)
	})

	summary, err := f.downloader().Run(context.Background(), NewToken(), f.opts)
	if err != nil {
		t.Fatalf("a candidate failure must not abort the run, got: %v", err)
	}

	if summary.Downloaded != 2 || summary.Failed != 1 {
		t.Errorf("expected 2 downloads and 1 failure, got %+v", summary)
	}
	if len(summary.MissingIDs) != 1 || summary.MissingIDs[0] != "202" {
		t.Errorf("expected missing IDs [202], got %v", summary.MissingIDs)
	}
}

func TestRunCancellationStopsBetweenCandidates(t *testing.T) {
	f := newRunFixture(t, listHTMLFor("101", "202", "303", "404", "505"), downloadableProfile)

	token := NewToken()
	downloaded := 0
	baseClick := f.page.onClick
	f.page.onClick = func(target ClickTarget) error {
		if err := baseClick(target); err != nil {
			return err
		}
		downloaded++
		if downloaded == 2 {
			token.Cancel()
		}
		return nil
	}

	summary, err := f.downloader().Run(context.Background(), token, f.opts)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got: %v", err)
	}

	if summary == nil {
		t.Fatal("cancelled run must still report a partial summary")
	}
	if summary.Downloaded != 2 {
		t.Errorf("expected 2 downloads before cancellation, got %d", summary.Downloaded)
	}
	if len(summary.MissingIDs) != 3 {
		t.Errorf("expected 3 missing IDs, got %v", summary.MissingIDs)
	}
}

func TestRunHeadlessWithoutCookiesFailsBeforeLaunch(t *testing.T) {
	factoryCalled := false
	factory := func(context.Context, SessionOptions, arbor.ILogger) (Page, error) {
		factoryCalled = true
		return &fakePage{}, nil
	}
	d := NewDownloaderWithFactory(testBrowserConfig(), factory, arbor.NewLogger(), nil)

	_, err := d.Run(context.Background(), NewToken(), RunOptions{
		JobID:     "1234",
		OutputDir: t.TempDir(),
		Headless:  true,
	})
	if !errors.Is(err, ErrCredentialsRequired) {
		t.Fatalf("expected ErrCredentialsRequired, got: %v", err)
	}
	if factoryCalled {
		t.Error("no browser should be launched for a cookie-less headless run")
	}
}

func TestRunRetriesEmptyEnumerationOnce(t *testing.T) {
	f := newRunFixture(t, "", downloadableProfile)

	htmlCalls := 0
	f.page.htmlFor = func(location string) string {
		if m := profileIDPattern.FindStringSubmatch(location); m != nil {
			return downloadableProfile(m[1])
		}
		htmlCalls++
		if htmlCalls == 1 {
			return "<html><body></body></html>"
		}
		return listHTMLFor("101")
	}

	summary, err := f.downloader().Run(context.Background(), NewToken(), f.opts)
	if err != nil {
		t.Fatalf("expected retry to succeed, got: %v", err)
	}
	if summary.Downloaded != 1 {
		t.Errorf("expected 1 download after retry, got %+v", summary)
	}
	if !f.sink.contains("No candidates found, retrying") {
		t.Errorf("expected retry progress line, got %v", f.sink.lines)
	}
}

func TestRunFailsAfterSecondEmptyEnumeration(t *testing.T) {
	f := newRunFixture(t, "<html><body></body></html>", downloadableProfile)

	_, err := f.downloader().Run(context.Background(), NewToken(), f.opts)
	if !errors.Is(err, ErrEnumerationEmpty) {
		t.Fatalf("expected ErrEnumerationEmpty after retry, got: %v", err)
	}
}

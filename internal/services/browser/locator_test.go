package browser

import (
	"errors"
	"testing"
)

func TestLocateDocumentStrategyOrder(t *testing.T) {
	cases := []struct {
		name     string
		html     string
		strategy string
		kind     TargetKind
	}{
		{
			name:     "download attribute wins over everything",
			html:     `<a download href="/f.pdf">Resume</a><a href="/download/1">Download</a>`,
			strategy: "download-attribute",
			kind:     TargetCSS,
		},
		{
			name:     "download href",
			html:     `<a href="/candidate/1/download">file</a>`,
			strategy: "download-href",
			kind:     TargetCSS,
		},
		{
			name:     "download text in wrapped element",
			html:     `<a href="/f"><span>DOWNLOAD RESUME</span></a>`,
			strategy: "download-text",
			kind:     TargetXPath,
		},
		{
			name: "document card with named link",
			html: `<div class="jz-document-card-meta jz-horizontal-list">
				<a class="jz-document-card-name" href="/doc/1">resume.pdf</a></div>`,
			strategy: "document-card",
			kind:     TargetCSS,
		},
		{
			name:     "document card with any link",
			html:     `<div class="jz-document-card-meta jz-horizontal-list"><a href="/doc/1">open</a></div>`,
			strategy: "document-card",
			kind:     TargetCSS,
		},
		{
			name:     "bare document card name",
			html:     `<a class="jz-document-card-name" href="/doc/1">resume.pdf</a>`,
			strategy: "document-card-name",
			kind:     TargetCSS,
		},
		{
			name:     "file icon inside link",
			html:     `<a href="/doc/1"><i class="fa fa-file"></i></a>`,
			strategy: "file-icon",
			kind:     TargetXPath,
		},
		{
			name:     "generic document href as last resort",
			html:     `<a href="/attachments/file/123">attachment</a>`,
			strategy: "document-like-href",
			kind:     TargetCSS,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			strategy, target, err := locateDocument(tc.html)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strategy != tc.strategy {
				t.Errorf("expected strategy %s, got %s", tc.strategy, strategy)
			}
			if target.Kind != tc.kind {
				t.Errorf("expected target kind %s, got %s", tc.kind, target.Kind)
			}
			if target.Query == "" {
				t.Error("target query must not be empty")
			}
		})
	}
}

func TestLocateDocumentNoMatch(t *testing.T) {
	_, _, err := locateDocument(`<html><body><p>No documents here</p><a href="/home">home</a></body></html>`)
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got: %v", err)
	}
}

func TestFileIconWithoutLinkDoesNotMatch(t *testing.T) {
	// A bare icon with no enclosing anchor must not satisfy the icon strategy
	strategy, _, err := locateDocument(`<i class="fa fa-file"></i><a href="/files/1">f</a>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strategy != "document-like-href" {
		t.Errorf("expected fallthrough to document-like-href, got %s", strategy)
	}
}

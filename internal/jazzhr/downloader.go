package jazzhr

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
)

// invalidFilenameChars are replaced when building filenames from applicant
// names the API hands back verbatim.
const invalidFilenameChars = `<>:"/\|?*`

// Downloader fetches resumes through the REST API instead of a browser
// session. Files land under {outputDir}/job_{jobID}/.
type Downloader struct {
	client *Client
	logger arbor.ILogger
}

// NewDownloader creates a REST-based resume downloader
func NewDownloader(client *Client, logger arbor.ILogger) *Downloader {
	return &Downloader{
		client: client,
		logger: logger,
	}
}

// DownloadResult summarizes a REST download pass for one job
type DownloadResult struct {
	Applicants int      `json:"applicants"`
	Downloaded int      `json:"downloaded"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Files      []string `json:"files"`
}

// DownloadJobResumes downloads every applicant's files for a job posting.
// Per-applicant failures are counted and skipped, never fatal.
func (d *Downloader) DownloadJobResumes(ctx context.Context, jobID, outputDir string) (*DownloadResult, error) {
	links, err := d.client.GetApplicantsForJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	jobDir := filepath.Join(outputDir, "job_"+jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &DownloadResult{Applicants: len(links)}
	d.logger.Info().
		Str("job_id", jobID).
		Int("applicants", len(links)).
		Msg("Starting REST resume download")

	for _, link := range links {
		files, err := d.downloadApplicantFiles(ctx, link.ApplicantID, jobDir)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			d.logger.Warn().
				Err(err).
				Str("applicant_id", link.ApplicantID).
				Msg("Failed to download applicant files")
			continue
		}
		if len(files) == 0 {
			result.Skipped++
			continue
		}
		result.Downloaded++
		result.Files = append(result.Files, files...)
	}

	d.logger.Info().
		Int("downloaded", result.Downloaded).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("REST resume download complete")
	return result, nil
}

// downloadApplicantFiles fetches and writes all files for one applicant
func (d *Downloader) downloadApplicantFiles(ctx context.Context, applicantID, jobDir string) ([]string, error) {
	applicant, err := d.client.GetApplicant(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	records, err := d.client.GetFilesForApplicant(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, record := range records {
		detail, err := d.client.GetFile(ctx, record.ID)
		if err != nil {
			return written, err
		}

		data, err := base64.StdEncoding.DecodeString(detail.FileData)
		if err != nil {
			return written, fmt.Errorf("file %s has invalid base64 content: %w", record.ID, err)
		}

		name := buildFilename(applicant.FirstName, applicant.LastName, record.ID, detail.Filename)
		path := filepath.Join(jobDir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", name, err)
		}
		written = append(written, path)
	}

	return written, nil
}

// buildFilename names a file {first}_{last}_{fileID}{ext}, sanitized, with
// the extension inferred from the original upload (default .pdf).
func buildFilename(first, last, fileID, original string) string {
	ext := filepath.Ext(original)
	if ext == "" {
		ext = ".pdf"
	}

	base := fmt.Sprintf("%s_%s_%s", SanitizeFilename(first), SanitizeFilename(last), fileID)
	return base + ext
}

// SanitizeFilename replaces characters that are invalid in filenames
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		if strings.ContainsRune(invalidFilenameChars, r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if out == "" {
		return "unknown"
	}
	return strings.ReplaceAll(out, " ", "_")
}

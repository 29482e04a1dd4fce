// Package report inspects a download run's output directory and summarizes
// what actually landed on disk.
package report

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/ternarybob/arbor"
)

// FileEntry describes one downloaded file
type FileEntry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Empty    bool      `json:"empty"`
	// ValidPDF is nil for non-PDF files
	ValidPDF *bool `json:"valid_pdf,omitempty"`
}

// Report is the full accounting of an output directory
type Report struct {
	OutputDir  string      `json:"output_dir"`
	FileCount  int         `json:"file_count"`
	TotalBytes int64       `json:"total_bytes"`
	EmptyCount int         `json:"empty_count"`
	Files      []FileEntry `json:"files"`
}

// Service builds output-directory reports
type Service struct {
	logger arbor.ILogger
}

// NewService creates a report service
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// Build walks the output directory and reports every regular file, newest
// first. Dotfiles and subdirectories are skipped. PDF files get a structural
// validity check.
func (s *Service) Build(outputDir string) (*Report, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, err
	}

	report := &Report{
		OutputDir: outputDir,
		Files:     []FileEntry{},
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		file := FileEntry{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
			Empty:    info.Size() == 0,
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			valid := s.validatePDF(filepath.Join(outputDir, entry.Name()), file.Empty)
			file.ValidPDF = &valid
		}

		report.Files = append(report.Files, file)
		report.TotalBytes += info.Size()
		if file.Empty {
			report.EmptyCount++
		}
	}

	sort.Slice(report.Files, func(i, j int) bool {
		return report.Files[i].Modified.After(report.Files[j].Modified)
	})
	report.FileCount = len(report.Files)

	return report, nil
}

func (s *Service) validatePDF(path string, empty bool) bool {
	if empty {
		return false
	}
	if err := api.ValidateFile(path, nil); err != nil {
		s.logger.Warn().
			Err(err).
			Str("file", filepath.Base(path)).
			Msg("PDF failed structural validation")
		return false
	}
	return true
}

package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvest/internal/common"
	"github.com/ternarybob/harvest/internal/models"
)

// candidateSelectors is the ordered cascade used to find candidate links in
// the loaded list. The first selector that yields at least one element wins;
// later selectors are never consulted. Order matters: the app's markup has
// shifted over time and the earlier entries match the current layout.
var candidateSelectors = []string{
	"a[href*='/candidate/']",
	"a[href*='/applicant/']",
	".candidate-link",
	".applicant-link",
	"[data-candidate-id]",
	"tr[data-candidate-id] a",
	".candidate-row a",
	".applicant-row a",
	// Row-container fallback when nothing above matches
	"tr a[href]",
}

var (
	candidateIDPattern = regexp.MustCompile(`/candidate/(\d+)`)
	applicantIDPattern = regexp.MustCompile(`/applicant/(\d+)`)
)

// notHiredAncestorLevels is how far above a candidate element the workflow
// status markers are searched: the element itself, its parent, and two
// further ancestor levels.
const notHiredAncestorLevels = 3

// EnumerationResult carries the deduplicated candidate list plus the raw
// discovery count before not-hired filtering and deduplication.
type EnumerationResult struct {
	Records []models.CandidateRecord
	Found   int
}

// Enumerator discovers all candidates attached to a job posting by scrolling
// the dynamically loading list to exhaustion and extracting links from a
// snapshot of the DOM.
type Enumerator struct {
	page   Page
	jobID  string
	config common.BrowserConfig
	logger arbor.ILogger
}

// NewEnumerator creates an enumerator for a single run
func NewEnumerator(page Page, jobID string, config common.BrowserConfig, logger arbor.ILogger) *Enumerator {
	return &Enumerator{
		page:   page,
		jobID:  jobID,
		config: config,
		logger: logger,
	}
}

// ListCandidates scrolls the candidate list until it stops growing, then
// extracts, filters, and deduplicates candidate records. Returns
// ErrEnumerationEmpty when the full cascade yields nothing.
func (e *Enumerator) ListCandidates(ctx context.Context) (*EnumerationResult, error) {
	if err := e.loadAll(ctx); err != nil {
		return nil, err
	}

	html, err := e.page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot candidate list: %w", err)
	}

	result, err := extractCandidates(html, e.config.BaseURL, e.jobID)
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, ErrEnumerationEmpty
	}

	e.logger.Info().
		Int("found", result.Found).
		Int("unique", len(result.Records)).
		Msg("Candidate enumeration complete")
	return result, nil
}

// loadAll scrolls to the bottom until the page height stops changing for the
// configured number of consecutive samples, bounded by a hard iteration cap.
// Always leaves the page scrolled back to the top.
func (e *Enumerator) loadAll(ctx context.Context) error {
	prev, err := e.page.ScrollHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to measure candidate list: %w", err)
	}

	stable := 0
	for i := 0; i < e.config.ScrollMaxIterations; i++ {
		if err := e.page.ScrollToBottom(ctx); err != nil {
			return fmt.Errorf("failed to scroll candidate list: %w", err)
		}
		if err := e.page.Sleep(ctx, e.config.ScrollSettle); err != nil {
			return err
		}

		height, err := e.page.ScrollHeight(ctx)
		if err != nil {
			return fmt.Errorf("failed to measure candidate list: %w", err)
		}

		if height == prev {
			stable++
			if stable >= e.config.ScrollStableSamples {
				break
			}
		} else {
			stable = 0
		}
		prev = height
	}

	if err := e.page.ScrollToTop(ctx); err != nil {
		return fmt.Errorf("failed to scroll back to top: %w", err)
	}
	return nil
}

// extractCandidates applies the selector cascade to a DOM snapshot,
// filtering not-hired candidates and deduplicating by ID (first occurrence
// wins).
func extractCandidates(html, baseURL, jobID string) (*EnumerationResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse candidate list: %w", err)
	}

	var matched *goquery.Selection
	for _, selector := range candidateSelectors {
		sel := doc.Find(selector)
		if sel.Length() > 0 {
			matched = sel
			break
		}
	}

	result := &EnumerationResult{}
	if matched == nil {
		return result, nil
	}

	seen := make(map[string]bool)
	matched.Each(func(_ int, sel *goquery.Selection) {
		id := extractCandidateID(sel)
		if id == "" {
			return
		}

		// Found counts every discovery, including not-hired candidates
		// and repeat sightings of the same ID.
		result.Found++

		if isNotHired(sel) {
			return
		}

		if seen[id] {
			return
		}
		seen[id] = true
		result.Records = append(result.Records, models.CandidateRecord{
			ID:         id,
			ProfileURL: normalizeProfileURL(baseURL, jobID, id),
		})
	})

	return result, nil
}

// extractCandidateID pulls the numeric candidate ID from a matched element:
// href patterns first, then data attributes on the element or an enclosing
// container.
func extractCandidateID(sel *goquery.Selection) string {
	if href, ok := sel.Attr("href"); ok {
		if m := candidateIDPattern.FindStringSubmatch(href); m != nil {
			return m[1]
		}
		if m := applicantIDPattern.FindStringSubmatch(href); m != nil {
			return m[1]
		}
	}
	if id, ok := sel.Attr("data-candidate-id"); ok && id != "" {
		return id
	}
	if id, ok := sel.Closest("[data-candidate-id]").Attr("data-candidate-id"); ok && id != "" {
		return id
	}
	return ""
}

// isNotHired checks the element and up to three ancestor levels for the
// workflow markers the app uses on rejected candidates. Anything ambiguous
// counts as hired so candidates are never silently dropped.
func isNotHired(sel *goquery.Selection) bool {
	node := sel
	for level := 0; level <= notHiredAncestorLevels; level++ {
		if node.Length() == 0 {
			return false
		}

		if class, ok := node.Attr("class"); ok {
			lower := strings.ToLower(class)
			if strings.Contains(lower, "is-workflow-not-hired") || strings.Contains(lower, "not-hired") {
				return true
			}
		}

		if node.Find(".is-workflow-not-hired").Length() > 0 {
			return true
		}
		tagText := strings.ToLower(node.Find(".jz-tag").Text())
		if strings.Contains(tagText, "not hired") {
			return true
		}

		node = node.Parent()
	}
	return false
}

// normalizeProfileURL builds the canonical profile URL for a candidate.
// Normalizing an already-normalized URL yields the same string.
func normalizeProfileURL(baseURL, jobID, candidateID string) string {
	return fmt.Sprintf("%s/app/v2/job/%s/candidate/%s/profile",
		strings.TrimRight(baseURL, "/"), jobID, candidateID)
}

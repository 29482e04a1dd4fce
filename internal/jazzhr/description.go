package jazzhr

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var blankLinePattern = regexp.MustCompile(`\n{3,}`)

// JobDescription is a job posting's description rendered as plain text
type JobDescription struct {
	JobID string `json:"job_id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// GetJobDescription fetches a job posting and renders its HTML description
// to plain text.
func (c *Client) GetJobDescription(ctx context.Context, jobID string) (*JobDescription, error) {
	job, err := c.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	text, err := htmlToText(job.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to render description for job %s: %w", jobID, err)
	}

	return &JobDescription{
		JobID: job.ID,
		Title: job.Title,
		Text:  text,
	}, nil
}

// htmlToText strips markup from a description, keeping paragraph and list
// structure readable.
func htmlToText(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	// Block elements become line breaks so paragraphs don't run together
	doc.Find("p, div, li, br, h1, h2, h3, h4, h5, h6, tr").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	doc.Find("li").Each(func(_ int, sel *goquery.Selection) {
		sel.PrependHtml("- ")
	})

	text := doc.Text()
	text = blankLinePattern.ReplaceAllString(text, "\n\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

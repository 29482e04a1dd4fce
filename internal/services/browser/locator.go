package browser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// documentCardSelector is the container JazzHR renders around an uploaded
// document on the profile page.
const documentCardSelector = ".jz-document-card-meta.jz-horizontal-list"

// downloadTextXPath matches the first anchor whose rendered text contains
// "download" in any casing, including anchors wrapping a labelled child
// element.
const downloadTextXPath = `//a[contains(translate(string(.), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'download')]`

// fileIconXPath matches the link wrapping a file-type icon
const fileIconXPath = `//i[contains(@class, 'fa-file')]/ancestor::a[1]`

// locatorStrategy is one way of finding the resume document link on a
// profile page. locate inspects a static DOM snapshot and, when the strategy
// applies, returns the target to click in the live page.
type locatorStrategy struct {
	name   string
	locate func(doc *goquery.Document) (ClickTarget, bool)
}

// documentLocators is the ordered strategy cascade for finding a resume
// link. The first strategy that matches wins; the rest are never consulted.
var documentLocators = []locatorStrategy{
	{
		name:   "download-attribute",
		locate: cssLocator("a[download]"),
	},
	{
		name:   "download-href",
		locate: cssLocator("a[href*='download']"),
	},
	{
		name: "download-text",
		locate: func(doc *goquery.Document) (ClickTarget, bool) {
			found := false
			doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
				if strings.Contains(strings.ToLower(sel.Text()), "download") {
					found = true
					return false
				}
				return true
			})
			return ClickTarget{Kind: TargetXPath, Query: downloadTextXPath}, found
		},
	},
	{
		name: "document-card",
		locate: func(doc *goquery.Document) (ClickTarget, bool) {
			card := doc.Find(documentCardSelector).First()
			if card.Length() == 0 {
				return ClickTarget{}, false
			}
			if card.Find("a.jz-document-card-name").Length() > 0 {
				return cssTarget(documentCardSelector + " a.jz-document-card-name"), true
			}
			if card.Find("a[download], a[href*='download']").Length() > 0 {
				return cssTarget(documentCardSelector + " a[download], " + documentCardSelector + " a[href*='download']"), true
			}
			if card.Find("a").Length() > 0 {
				return cssTarget(documentCardSelector + " a"), true
			}
			return ClickTarget{}, false
		},
	},
	{
		name:   "document-card-name",
		locate: cssLocator("a.jz-document-card-name"),
	},
	{
		name: "file-icon",
		locate: func(doc *goquery.Document) (ClickTarget, bool) {
			found := false
			doc.Find("i.fa.fa-file").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
				if sel.Closest("a").Length() > 0 {
					found = true
					return false
				}
				return true
			})
			return ClickTarget{Kind: TargetXPath, Query: fileIconXPath}, found
		},
	},
	{
		name:   "document-like-href",
		locate: cssLocator("a[href*='download'], a[href*='file'], a[href*='document']"),
	},
}

// locateDocument runs the strategy cascade over a profile page snapshot and
// returns the winning strategy's name and click target.
func locateDocument(html string) (string, ClickTarget, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ClickTarget{}, ErrDocumentNotFound
	}

	for _, strategy := range documentLocators {
		if target, ok := strategy.locate(doc); ok {
			return strategy.name, target, nil
		}
	}
	return "", ClickTarget{}, ErrDocumentNotFound
}

func cssLocator(selector string) func(doc *goquery.Document) (ClickTarget, bool) {
	return func(doc *goquery.Document) (ClickTarget, bool) {
		return cssTarget(selector), doc.Find(selector).Length() > 0
	}
}

func cssTarget(selector string) ClickTarget {
	return ClickTarget{Kind: TargetCSS, Query: selector}
}

package searchindex

import "strings"

// Pages lists the distinct pages in the order the generator processed them
func (ix *Index) Pages() []PageSummary {
	if ix.Len() == 0 {
		return []PageSummary{}
	}

	positions := make(map[string]int)
	pages := []PageSummary{}

	for _, rec := range ix.Docs {
		path := PagePath(rec.Location)
		pos, ok := positions[path]
		if !ok {
			pos = len(pages)
			positions[path] = pos
			pages = append(pages, PageSummary{
				Path:     path,
				Title:    rec.Page,
				Headings: []string{},
			})
		}

		page := &pages[pos]
		page.Records++
		if rec.Category == CategorySection {
			page.Sections++
			page.Headings = append(page.Headings, rec.Title)
		}
	}

	return pages
}

// PageRecords returns the records of one page, in index order.
// page is resolved with FindPage, so it may be the page path ("start/",
// "start") or its title ("Quick start").
func (ix *Index) PageRecords(page string) []Record {
	summary, ok := ix.FindPage(page)
	if !ok {
		return nil
	}

	records := make([]Record, 0, summary.Records)
	for _, rec := range ix.Docs {
		if PagePath(rec.Location) == summary.Path {
			records = append(records, rec)
		}
	}
	return records
}

// FindPage resolves a page path or title to its summary
func (ix *Index) FindPage(page string) (PageSummary, bool) {
	page = strings.TrimSpace(page)
	wantPath := page
	if wantPath != "" && !strings.HasSuffix(wantPath, "/") {
		wantPath += "/"
	}

	for _, summary := range ix.Pages() {
		if summary.Path == page || summary.Path == wantPath || strings.EqualFold(summary.Title, page) {
			return summary, true
		}
	}
	return PageSummary{}, false
}

package searchindex

import (
	"fmt"
	"strings"
)

// Validate checks the structural invariants of an already decoded index.
// Problems that make a record unusable are errors; oddities a generator can
// legitimately produce are warnings.
func (ix *Index) Validate() Report {
	report := Report{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	if ix.Len() == 0 {
		report.Warnings = append(report.Warnings, ValidationError{
			Path:    "$.docs",
			Message: "search index has no records",
			Code:    "EMPTY_INDEX",
		})
		return report
	}

	anchors := make(map[string]int)
	pageTitles := make(map[string]string)

	for i, rec := range ix.Docs {
		path := fmt.Sprintf("$.docs.%d", i)

		if !rec.Category.Valid() {
			report.Errors = append(report.Errors, ValidationError{
				Path:    path + ".category",
				Message: fmt.Sprintf("unknown category %q (want \"page\" or \"section\")", rec.Category),
				Code:    "INVALID_CATEGORY",
			})
		}

		if rec.Location == "" {
			report.Errors = append(report.Errors, ValidationError{
				Path:    path + ".location",
				Message: "location is empty",
				Code:    "MISSING_LOCATION",
			})
			continue
		}

		if !strings.Contains(rec.Location, "#") {
			report.Warnings = append(report.Warnings, ValidationError{
				Path:    path + ".location",
				Message: fmt.Sprintf("location %q has no anchor", rec.Location),
				Code:    "NO_ANCHOR",
			})
		}

		if rec.Title == "" {
			report.Warnings = append(report.Warnings, ValidationError{
				Path:    path + ".title",
				Message: "title is empty",
				Code:    "EMPTY_TITLE",
			})
		}

		if rec.Category == CategorySection {
			if _, fragment := SplitLocation(rec.Location); fragment != "" && rec.Title != "" &&
				!sameHeading(AnchorTitle(fragment), rec.Title) {
				report.Warnings = append(report.Warnings, ValidationError{
					Path:    path + ".title",
					Message: fmt.Sprintf("section title %q does not match anchor %q", rec.Title, fragment),
					Code:    "ANCHOR_TITLE_MISMATCH",
				})
			}
			if first, seen := anchors[rec.Location]; seen {
				report.Warnings = append(report.Warnings, ValidationError{
					Path:    path + ".location",
					Message: fmt.Sprintf("section anchor %q already used by record %d", rec.Location, first),
					Code:    "DUPLICATE_ANCHOR",
				})
			} else {
				anchors[rec.Location] = i
			}
		}

		pagePath := PagePath(rec.Location)
		if title, seen := pageTitles[pagePath]; !seen {
			pageTitles[pagePath] = rec.Page
		} else if title != rec.Page {
			report.Warnings = append(report.Warnings, ValidationError{
				Path:    path + ".page",
				Message: fmt.Sprintf("page %q was first titled %q, here %q", pagePath, title, rec.Page),
				Code:    "INCONSISTENT_PAGE",
			})
		}
	}

	return report
}

// sameHeading compares an anchor-derived title with a heading, ignoring case
// and the hyphens anchors use in place of spaces
func sameHeading(a, b string) bool {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ReplaceAll(strings.ToLower(s), "-", " ")), " ")
	}
	return norm(a) == norm(b)
}

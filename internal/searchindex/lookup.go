package searchindex

import "strings"

// Lookup performs the keyword lookup the site's search widget runs on the
// raw records: every query term must occur (case-insensitively) in the
// record title or text. Records matching on their title come first; within
// each group index order is kept. limit <= 0 means no limit.
func (ix *Index) Lookup(query string, limit int) []Match {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 || ix.Len() == 0 {
		return []Match{}
	}

	var titleMatches, textMatches []Match
	for i, rec := range ix.Docs {
		title := strings.ToLower(rec.Title)
		text := strings.ToLower(rec.Text)

		inTitle, inEither := true, true
		for _, term := range terms {
			t := strings.Contains(title, term)
			if !t {
				inTitle = false
			}
			if !t && !strings.Contains(text, term) {
				inEither = false
				break
			}
		}

		switch {
		case inTitle:
			titleMatches = append(titleMatches, Match{Position: i, Field: "title", Record: rec})
		case inEither:
			textMatches = append(textMatches, Match{Position: i, Field: "text", Record: rec})
		}
	}

	matches := append(titleMatches, textMatches...)
	if matches == nil {
		matches = []Match{}
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

package source

import (
	"strings"

	"github.com/braxsimmons/Cliopa/internal/model"
)

// FilterDispositions drops candidates whose disposition contains any of
// the excluded terms, case-insensitively. It returns the kept candidates
// and the number dropped.
func FilterDispositions(cands []model.CallCandidate, excluded []string) ([]model.CallCandidate, int) {
	terms := make([]string, 0, len(excluded))
	for _, t := range excluded {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return cands, 0
	}

	kept := make([]model.CallCandidate, 0, len(cands))
	for _, c := range cands {
		if excludedDisposition(c.Disposition, terms) {
			continue
		}
		kept = append(kept, c)
	}
	return kept, len(cands) - len(kept)
}

func excludedDisposition(disposition string, terms []string) bool {
	d := strings.ToLower(disposition)
	for _, t := range terms {
		if strings.Contains(d, t) {
			return true
		}
	}
	return false
}

package revision

import (
	"strconv"
	"strings"

	"manual-approval-workflow/internal/domain"
)

// NextRevisionNumber computes the next legal revision label for a manual
// from its existing revisions. Labels are parsed as either a bare integer
// ("4") or a decimal sub-revision ("4.2"); only the integer base counts, so
// sub-revisions never advance the base. A draft targets the next integer
// slot; a promotion keeps the base it already has. Labels are always
// rendered as decimal strings so approved labels stay stable text.
func NextRevisionNumber(revisions []domain.Revision, draft bool) string {
	base := 0
	for i := range revisions {
		if b, ok := parseBase(revisions[i].RevisionNumber); ok && b > base {
			base = b
		}
	}
	if draft {
		return strconv.Itoa(base + 1)
	}
	return strconv.Itoa(base)
}

// parseBase extracts the integer base of a revision label. Labels that are
// neither "<int>" nor "<int>.<int>" are ignored by numbering.
func parseBase(label string) (int, bool) {
	parts := strings.Split(label, ".")
	if len(parts) > 2 {
		return 0, false
	}
	base, err := strconv.Atoi(parts[0])
	if err != nil || base < 0 {
		return 0, false
	}
	if len(parts) == 2 {
		if _, err := strconv.Atoi(parts[1]); err != nil {
			return 0, false
		}
	}
	return base, true
}

package review

import (
	"github.com/ozark-survey/cavedb/internal/model"
)

// sameRecords reports whether two diffs describe the same transition. The
// differ is deterministic, so equal inputs produce the same records in the
// same order; any divergence means the baseline moved between submission and
// approval.
func sameRecords(stored, fresh []model.ChangeRecord) bool {
	if len(stored) != len(fresh) {
		return false
	}
	for i := range stored {
		if !stored[i].SameChange(fresh[i]) {
			return false
		}
	}
	return true
}

package disburse

import (
	"github.com/tidwall/btree"
)

// Normalize deduplicates ids and sorts them ascending. The same logical set
// always yields the same sequence, so repeated runs route funds identically
// and the recipient count used by the split is well defined.
func Normalize(ids []AccountID) []AccountID {
	var set btree.Set[AccountID]
	for _, id := range ids {
		set.Insert(id)
	}

	out := make([]AccountID, 0, set.Len())
	set.Scan(func(id AccountID) bool {
		out = append(out, id)
		return true
	})
	return out
}

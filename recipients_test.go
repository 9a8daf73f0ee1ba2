package disburse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	got := Normalize([]AccountID{"carol.test", "bob.test", "carol.test", "alice.test", "bob.test"})
	assert.Equal(t, []AccountID{"alice.test", "bob.test", "carol.test"}, got)

	assert.Empty(t, Normalize(nil))
	assert.Equal(t, []AccountID{"bob.test"}, Normalize([]AccountID{"bob.test", "bob.test"}))
}

func TestNormalizeIsCanonical(t *testing.T) {
	a := []AccountID{"eve.test", "bob.test", "dick.test", "carol.test"}
	b := []AccountID{"carol.test", "dick.test", "bob.test", "eve.test", "bob.test"}

	assert.Equal(t, Normalize(a), Normalize(b), "order and duplicates do not matter")
	assert.Equal(t, Normalize(a), Normalize(Normalize(a)), "idempotent")
}

package idgen

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrdered(t *testing.T) {
	ids := []string{Ordered(10), Ordered(2), Ordered(1)}
	sort.Strings(ids)
	assert.Equal(t, "00000000000000000001", ids[0][:20])
	assert.Equal(t, "00000000000000000002", ids[1][:20])
	assert.Equal(t, "00000000000000000010", ids[2][:20])
	assert.NotEqual(t, New(), New())
}

package generics

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSliceMap(t *testing.T) {
	got := SliceMap([]int{7, -3, 2}, strconv.Itoa)
	assert.Equal(t, []string{"7", "-3", "2"}, got)

	// Empty and nil inputs map to an empty slice.
	assert.Empty(t, SliceMap(nil, strconv.Itoa))
	assert.Empty(t, SliceMap([]int{}, strconv.Itoa))
}

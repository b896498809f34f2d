package recognition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelTable(t *testing.T) {
	labels := LabelTable{7: "Carol", 1: "Alice", 3: "Bob"}

	assert.Equal(t, []int{1, 3, 7}, labels.Sorted())
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, labels.Names())
	assert.Equal(t, "Bob", labels.Name(3))
	assert.Empty(t, labels.Name(2))
	assert.Empty(t, LabelTable{}.Names())
}

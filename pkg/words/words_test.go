package words

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	assert.Equal(t, 0, Count(""))
	assert.Equal(t, 0, Count("   "))
	assert.Equal(t, 0, Count("\n\t  \n"))
	assert.Equal(t, 1, Count("hola"))
	assert.Equal(t, 3, Count("a b  c"))
	assert.Equal(t, 3, Count("  a\nb\tc  "))
}

package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFence(t *testing.T) {
	var f Fence
	assert.False(t, f.IsLatest(0), "zero id is never latest")
	assert.Equal(t, uint64(0), f.Latest())

	a := f.Next()
	assert.True(t, f.IsLatest(a))

	b := f.Next()
	assert.Greater(t, b, a)
	assert.False(t, f.IsLatest(a))
	assert.True(t, f.IsLatest(b))
	assert.Equal(t, b, f.Latest())
}

package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockSizeMinimum(t *testing.T) {
	assert.Equal(t, minBlockSize, BlockSize(1, 0))
	assert.Equal(t, minBlockSize, BlockSize(0, 0))
}

func TestBlockSizeGrowsWithFileSize(t *testing.T) {
	huge := int64(minBlockSize) * maxBlockCount * 3
	got := BlockSize(huge, 0)
	assert.Greater(t, got, minBlockSize)
	assert.True(t, satisfies(huge, got))
	assert.False(t, satisfies(huge, got/2))
}

func TestBlockSizePrefersCompatiblePrior(t *testing.T) {
	size := int64(minBlockSize) * 10
	got := BlockSize(size, minBlockSize*2)
	assert.Equal(t, minBlockSize*2, got)
}

func TestBlockSizeIgnoresIncompatiblePrior(t *testing.T) {
	huge := int64(minBlockSize) * maxBlockCount * 3
	got := BlockSize(huge, minBlockSize)
	assert.NotEqual(t, minBlockSize, got)
	assert.True(t, satisfies(huge, got))
}

package apikey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateGateAllowsUpToBurst(t *testing.T) {
	g := NewRateGate()

	assert.True(t, g.Allow("k1", 2))
	assert.True(t, g.Allow("k1", 2))
	assert.False(t, g.Allow("k1", 2))
}

func TestRateGateZeroLimitAlwaysAllows(t *testing.T) {
	g := NewRateGate()

	for i := 0; i < 100; i++ {
		assert.True(t, g.Allow("k1", 0))
	}
}

func TestRateGateKeysAreIndependent(t *testing.T) {
	g := NewRateGate()

	assert.True(t, g.Allow("k1", 1))
	assert.False(t, g.Allow("k1", 1))

	assert.True(t, g.Allow("k2", 1))
}

func TestRateGateChangedLimitReplacesBucket(t *testing.T) {
	g := NewRateGate()

	assert.True(t, g.Allow("k1", 1))
	assert.False(t, g.Allow("k1", 1))

	// A reload raised the key's limit: the fresh bucket admits again.
	assert.True(t, g.Allow("k1", 5))
}

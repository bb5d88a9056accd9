package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayloadBytes(t *testing.T) {
	b, ok := payloadBytes("abc")
	assert.True(t, ok)
	assert.Equal(t, []byte("abc"), b)

	b, ok = payloadBytes([]byte{1, 2})
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2}, b)

	_, ok = payloadBytes(42)
	assert.False(t, ok)
}

func TestHasPattern(t *testing.T) {
	assert.True(t, hasPattern("draws:*"))
	assert.False(t, hasPattern("draws:events"))
}

func TestKeysAreNamespaced(t *testing.T) {
	assert.Equal(t, "prizedraw:lock:draw:c1", lockKey("draw:c1"))
	assert.Equal(t, "prizedraw:ratelimit:admin:u1", rateLimitKey("admin:u1"))
}

package clientsvc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoublesToCeiling(t *testing.T) {
	b := newBackoff()
	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, d := range want {
		assert.Equal(t, d, b.Next(), "attempt %d", i)
	}
}

func TestBackoffResetAfterEstablishedConnection(t *testing.T) {
	b := newBackoff()
	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
	assert.Equal(t, 4*time.Second, b.Next())

	// The connection came up and later dropped.
	b.Reset()
	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
}

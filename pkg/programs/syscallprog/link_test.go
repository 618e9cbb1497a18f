package syscallprog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinkIDStable(t *testing.T) {
	var l Link

	assert.Equal(t, l.ID(), l.ID())
	assert.Equal(t, LinkID{}, l.ID())
	assert.True(t, l.ID() == Link{}.ID())
}

func TestLinkDetachAlwaysSucceeds(t *testing.T) {
	var l Link
	for i := 0; i < 3; i++ {
		assert.NoError(t, l.Detach())
	}
}

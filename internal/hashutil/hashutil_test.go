package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashContentIsDeterministic(t *testing.T) {
	a := HashContent("Annual Fee: $95")
	b := HashContent("Annual Fee: $95")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHashContentChangesWithOneCharacter(t *testing.T) {
	assert.NotEqual(t, HashContent("Annual Fee: $95"), HashContent("Annual Fee: $96"))
}

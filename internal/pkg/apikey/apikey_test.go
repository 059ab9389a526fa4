package apikey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	assert.True(t, Matches("pay-secret", "pay-secret"))
	assert.False(t, Matches("pay-secre", "pay-secret"))
	assert.False(t, Matches("", ""))
	assert.False(t, Matches("pay-secret", ""))
}

func TestHash(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Hash(""))
	assert.Len(t, Hash("pay-secret"), 64)
}

package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidStats(t *testing.T) {
	assert.True(t, ValidStats(nil))
	assert.True(t, ValidStats(json.RawMessage(`{}`)))
	assert.True(t, ValidStats(json.RawMessage(`{"wins":12,"streak":3}`)))
	assert.True(t, ValidStats(json.RawMessage(`[1,2,3]`)))
	assert.False(t, ValidStats(json.RawMessage(`{"wins":`)))
	assert.False(t, ValidStats(json.RawMessage(`not json`)))
}

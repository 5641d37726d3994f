package sfu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCappedRTPReader_AllowsTrafficUnderBudget(t *testing.T) {
	r := &cappedRTPReader{capBitsPerSec: 8000, windowStart: time.Now()}
	assert.False(t, r.overBudget(500))
	assert.False(t, r.overBudget(500))
}

func TestCappedRTPReader_BlocksOnceOverBudget(t *testing.T) {
	r := &cappedRTPReader{capBitsPerSec: 8000, windowStart: time.Now()}
	assert.False(t, r.overBudget(900))
	assert.True(t, r.overBudget(900))
}

func TestCappedRTPReader_ResetsAfterWindow(t *testing.T) {
	r := &cappedRTPReader{capBitsPerSec: 8000, windowStart: time.Now().Add(-2 * time.Second)}
	assert.False(t, r.overBudget(900))
}

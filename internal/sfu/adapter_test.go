package sfu

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumWorkers_OverrideWins(t *testing.T) {
	assert.Equal(t, 4, NumWorkers(4))
	assert.Equal(t, 1, NumWorkers(1))
}

func TestNumWorkers_DefaultsToHalfCPUsRoundedUp(t *testing.T) {
	got := NumWorkers(0)
	want := (runtime.NumCPU() + 1) / 2
	if want < 1 {
		want = 1
	}
	assert.Equal(t, want, got)
	assert.GreaterOrEqual(t, got, 1)
}

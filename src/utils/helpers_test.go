package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBreakdown(t *testing.T) {
	b := ComputeBreakdown(10000, 0)
	assert.Equal(t, int64(3000), b.PlatformFee)
	assert.Equal(t, int64(7000), b.WorkerAmount)
	assert.Equal(t, int64(10000), b.Total)
}

func TestComputeBreakdownTipGoesToWorker(t *testing.T) {
	b := ComputeBreakdown(10000, 1500)
	assert.Equal(t, int64(3000), b.PlatformFee)
	assert.Equal(t, int64(8500), b.WorkerAmount)
	assert.Equal(t, int64(11500), b.Total)
}

func TestComputeBreakdownRoundsFeeDown(t *testing.T) {
	b := ComputeBreakdown(9999, 0)
	assert.Equal(t, int64(2999), b.PlatformFee)
	assert.Equal(t, int64(7000), b.WorkerAmount)
	assert.Equal(t, b.Subtotal, b.PlatformFee+b.WorkerAmount)
}

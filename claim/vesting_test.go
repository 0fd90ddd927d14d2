package claim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/louissarvin/kage-sub000/types/ledger"
)

func TestVestingNumerator(t *testing.T) {
	schedule := &ledger.VestingSchedule{
		ScheduleID:      1,
		CliffDuration:   100,
		TotalDuration:   1100,
		VestingInterval: 10,
		IsActive:        true,
	}
	start := int64(1_000_000)

	tests := []struct {
		name string
		now  int64
		want uint64
	}{
		{"before start", start - 1, 0},
		{"during cliff", start + 99, 0},
		{"at cliff end", start + 100, 0},
		{"mid interval rounds down", start + 105, 0},
		{"one interval", start + 110, 10 * Precision / 1000},
		{"half vested", start + 600, Precision / 2},
		{"just before end", start + 1099, 990 * Precision / 1000},
		{"at end", start + 1100, Precision},
		{"past end", start + 10_000, Precision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VestingNumerator(schedule, start, tt.now))
		})
	}
}

func TestVestingNumerator_NoInterval(t *testing.T) {
	schedule := &ledger.VestingSchedule{
		CliffDuration: 0,
		TotalDuration: 1000,
	}

	// With no interval quantization the numerator is linear in seconds
	assert.Equal(t, 333*Precision/1000, VestingNumerator(schedule, 0, 333))
}

func TestVestingNumerator_CliffOnly(t *testing.T) {
	// Cliff equals total duration: nothing vests before the cliff,
	// everything at it
	schedule := &ledger.VestingSchedule{
		CliffDuration: 500,
		TotalDuration: 500,
	}

	assert.Equal(t, uint64(0), VestingNumerator(schedule, 0, 499))
	assert.Equal(t, Precision, VestingNumerator(schedule, 0, 500))
}

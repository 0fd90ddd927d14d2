package claim

import (
	"github.com/louissarvin/kage-sub000/types/ledger"
)

// Precision is the fixed-point denominator of the vesting numerator.
const Precision uint64 = 1_000_000

// VestingNumerator computes the vested fraction of a position as a
// fixed-point numerator over Precision, quantized to whole vesting
// intervals. Before the cliff it is zero; after the full duration it is
// Precision. The numerator is computed from public schedule data only;
// the amounts it scales stay encrypted inside the MPC circuit.
func VestingNumerator(
	schedule *ledger.VestingSchedule,
	startTimestamp int64,
	now int64,
) uint64 {
	cliffEnd := startTimestamp + int64(schedule.CliffDuration)
	vestingEnd := startTimestamp + int64(schedule.TotalDuration)

	if now < cliffEnd {
		return 0
	}
	if now >= vestingEnd {
		return Precision
	}

	vestingDuration := schedule.TotalDuration - schedule.CliffDuration
	if vestingDuration == 0 {
		return Precision
	}

	elapsed := uint64(now - cliffEnd)
	vestedSeconds := elapsed
	if schedule.VestingInterval > 0 {
		intervals := elapsed / schedule.VestingInterval
		vestedSeconds = intervals * schedule.VestingInterval
	}

	return vestedSeconds * Precision / vestingDuration
}

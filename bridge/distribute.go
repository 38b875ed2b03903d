package bridge

// SplitEvenly divides total into n parts. Every part gets total/n and the
// first total%n parts get one more satoshi, so the parts always sum to total
// and the earliest entries absorb the rounding remainder.
func SplitEvenly(total uint64, n int) []uint64 {
	if n <= 0 {
		return nil
	}
	parts := make([]uint64, n)
	share := total / uint64(n)
	remainder := total % uint64(n)
	for i := range parts {
		parts[i] = share
		if uint64(i) < remainder {
			parts[i]++
		}
	}
	return parts
}

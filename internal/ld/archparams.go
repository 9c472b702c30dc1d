package ld

// archParams is the per-architecture parameter pair of spec §4.3: the
// single-section reach that triggers considering islands at all, and the
// inter-region budget islands must be spaced within.
type archParams struct {
	singleSectionReach uint64
	interRegionBudget  uint64
}

// paramsFor implements the table of spec §4.3, following the same
// switch-on-architecture dispatch shape as the teacher's backend.go
// NewCodeGenerator. seenThumbBranch narrows the ARM row between its
// three sub-cases (no Thumb, Thumb-2, Thumb-1-only).
func paramsFor(opts *Options, seenThumbBranch bool) archParams {
	switch opts.Architecture {
	case CPUPowerPC, CPUPowerPC64:
		return archParams{singleSectionReach: 32000000, interRegionBudget: 30 * 1024 * 1024}
	case CPUARM:
		if !seenThumbBranch {
			return archParams{singleSectionReach: 32000000, interRegionBudget: 30 * 1024 * 1024}
		}
		if opts.ArchSupportsThumb2() {
			return archParams{singleSectionReach: 16000000, interRegionBudget: 14 * 1024 * 1024}
		}
		return archParams{singleSectionReach: 4000000, interRegionBudget: 3500000}
	case CPUARM64:
		return archParams{singleSectionReach: 128000000, interRegionBudget: 124 * 1024 * 1024}
	default:
		fatalf("unsupported architecture reached the branch island parameter table: %v", opts.Architecture)
		return archParams{}
	}
}

func singleSectionReach(opts *Options, seenThumbBranch bool) uint64 {
	return paramsFor(opts, seenThumbBranch).singleSectionReach
}

func interRegionBudget(opts *Options, seenThumbBranch bool) uint64 {
	return paramsFor(opts, seenThumbBranch).interRegionBudget
}

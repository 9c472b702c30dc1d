package ld

import (
	"fmt"
	"os"
)

// logf prints a verbose trace line when opts.Verbose is set, grounded
// on the teacher's own stderr-only, no-library logging convention.
func logf(opts *Options, format string, args ...interface{}) {
	if !opts.Verbose {
		return
	}
	fmt.Fprintf(os.Stderr, "isld: "+format+"\n", args...)
}

// Run is the branch-island insertion pass's single entry point,
// implementing the control flow of spec §2: gate on output kind,
// branch-island allowance, and architecture; run the address map and
// reachability analyzer; if islands may be needed, plan regions,
// resolve every code section's branches against them, and splice the
// accumulated islands back into their host sections.
//
// sections is mutated in place. indirect resolves indirectly-bound
// fixups (spec §6, "consumed from the symbol resolver"). layout is
// invoked exactly once, inside the reachability analyzer, before any
// other analysis (spec §6). Every fatalf condition (see fatal.go)
// surfaces as an error via Recover rather than a panic escaping to the
// caller (spec §7); any other panic propagates unchanged.
func Run(opts *Options, sections []*Section, indirect []Atom, layout LayoutAssigner) (err error) {
	defer Recover(&err)

	if opts.OutputKind == OutputObject {
		logf(opts, "object output, pass is a no-op")
		return nil
	}
	if !opts.AllowBranchIslands {
		logf(opts, "branch islands disallowed by options, pass is a no-op")
		return nil
	}
	switch opts.Architecture {
	case CPUPowerPC, CPUPowerPC64, CPUARM, CPUARM64:
	default:
		logf(opts, "unsupported architecture %v, pass is a no-op", opts.Architecture)
		return nil
	}

	reach, mayNeedIslands := AnalyzeReachability(opts, sections, indirect, layout)
	if !mayNeedIslands {
		logf(opts, "no section exceeds reach, pass is a no-op")
		return nil
	}

	globalMode := reach.SeenCrossSectBr || opts.OutputKind == OutputPreload
	logf(opts, "islands may be needed, global addressing mode = %v", globalMode)

	var am AddressMap
	if globalMode {
		am = BuildAddressMap(sections)
	}

	regions := PlanRegions(opts, sections, reach.LowestTextAddr, reach.InterRegionBudget, reach.FurthestCodeOrStub)
	logf(opts, "planned %d region(s)", len(regions))

	for _, sect := range sections {
		ResolveSection(opts, sect, regions, am, globalMode, reach.FurthestStubSect, reach.InterRegionBudget, indirect)
	}

	SpliceAll(sections, regions)
	logf(opts, "pass complete")

	return nil
}

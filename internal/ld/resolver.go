package ld

// clusterInfo is the resolver's working view of one fixup cluster: its
// member fixups in order, the currently-bound target (resolved through
// indirect bindings), the addend (if an AddAddend fixup is present),
// and pointers back to the two fixups a rewrite needs to touch.
type clusterInfo struct {
	fixups      []*Fixup
	target      Atom
	addend      uint32
	branchFixup *Fixup
	addendFixup *Fixup
}

func clustersOf(atom Atom, indirect []Atom) []*clusterInfo {
	var clusters []*clusterInfo
	var cur *clusterInfo
	for _, f := range atom.Fixups() {
		if f.FirstInCluster() {
			cur = &clusterInfo{}
		}
		if cur == nil {
			continue
		}
		cur.fixups = append(cur.fixups, f)
		switch f.Binding {
		case BindingByContentBound, BindingDirectlyBound:
			cur.target = f.Target
		case BindingIndirectlyBound:
			cur.target = indirect[f.BindingIndex]
		}
		if f.Kind == KindAddAddend {
			cur.addend = f.Addend
			cur.addendFixup = f
		}
		if f.Kind.IsBranch() {
			cur.branchFixup = f
		}
		if f.LastInCluster() {
			clusters = append(clusters, cur)
			cur = nil
		}
	}
	return clusters
}

// ResolveSection implements spec §4.6 for one code section: for every
// branch-bearing fixup cluster on every atom, compute the displacement
// and, if it exceeds branchLimit, find-or-create the chain of islands
// needed and rewrite the cluster to target the nearest one.
func ResolveSection(opts *Options, sect *Section, regions []*Region, am AddressMap, globalMode bool, furthestStubSect, branchLimit uint64, indirect []Atom) {
	if sect.Type != SectionCode {
		return
	}
	logf(opts, "checking section %s/%s", sect.SegmentName, sect.SectName)
	for _, atom := range sect.Atoms {
		for _, c := range clustersOf(atom, indirect) {
			if c.branchFixup == nil || c.target == nil {
				continue
			}

			crossSection := atom.Section() != c.target.Section()
			srcAddr, dstAddr := branchAddresses(atom, c, am, globalMode)

			if c.target.Section() != nil && c.target.Section().Type == SectionStub {
				dstAddr = furthestStubSect
			}

			disp := int64(dstAddr) - int64(srcAddr)
			if disp <= int64(branchLimit) && disp >= -int64(branchLimit) {
				continue
			}
			logf(opts, "from %s to %s delta: %#x in section %s/%s", atom.Name(), c.target.Name(), disp, sect.SegmentName, sect.SectName)

			if isAbsolutePrelinkedCase(opts, crossSection) {
				resolveAbsolute(opts, regions, c)
				continue
			}

			final := TargetAndOffset{Atom: c.target, Offset: c.addend}
			if disp > int64(branchLimit) {
				logf(opts, "need forward branching island srcAddr=%#x dstAddr=%#x target=%s", srcAddr, dstAddr, c.target.Name())
				resolveForward(opts, regions, final, srcAddr, dstAddr, c)
			} else {
				logf(opts, "need backward branching island srcAddr=%#x dstAddr=%#x target=%s", srcAddr, dstAddr, c.target.Name())
				resolveBackward(opts, regions, final, srcAddr, dstAddr, c)
			}
		}
	}
}

// branchAddresses implements spec §4.6's two addressing modes.
func branchAddresses(atom Atom, c *clusterInfo, am AddressMap, globalMode bool) (srcAddr, dstAddr uint64) {
	if globalMode {
		return am[atom] + uint64(c.branchFixup.OffsetInAtom), am[c.target] + uint64(c.addend)
	}
	return atom.SectionOffset() + uint64(c.branchFixup.OffsetInAtom), c.target.SectionOffset() + uint64(c.addend)
}

// isAbsolutePrelinkedCase implements the Open-Questions decision
// recorded in DESIGN.md: the "absolute island in region 0" fast path
// is gated on the ARM+Thumb-2 guard observed in the original factory,
// never on AArch64 (spec §8 boundary scenario 5, §9 open question).
func isAbsolutePrelinkedCase(opts *Options, crossSection bool) bool {
	return crossSection && opts.OutputKind == OutputPreload &&
		opts.Architecture == CPUARM && opts.PreferSubArchitecture() && opts.ArchSupportsThumb2()
}

func resolveAbsolute(opts *Options, regions []*Region, c *clusterInfo) {
	if len(regions) == 0 {
		fatalf("branch island resolver: absolute island requested but no region was planned")
	}
	r := regions[0]
	final := TargetAndOffset{Atom: c.target, Offset: c.addend}
	island := r.Dedup[final]
	if island == nil {
		island = MakeIsland(IslandThumb2Absolute, r.Index, c.target, final)
		r.Dedup[final] = island
		r.Islands = append(r.Islands, island)
		logf(opts, "added absolute branching island %s", island.Name())
	}
	logf(opts, "using island %s for branch to %s", island.Name(), c.target.Name())
	rewriteFixup(c, island)
}

// resolveForward and resolveBackward always choose a relative variant
// for the islands they chain together: the original's chained
// makeBranchIsland calls hardcode their cross-section flag to false,
// reserving the cross-section→Thumb-2-absolute fast path exclusively
// for resolveAbsolute's single-island case.
func resolveForward(opts *Options, regions []*Region, final TargetAndOffset, srcAddr, dstAddr uint64, c *clusterInfo) {
	prevHop := final.Atom
	var nearest *IslandAtom
	for i := len(regions) - 1; i >= 0; i-- {
		r := regions[i]
		if r.RegionAddress <= srcAddr || r.RegionAddress > dstAddr {
			continue
		}
		island := r.Dedup[final]
		if island == nil {
			variant := chooseVariant(opts, false, final)
			island = MakeIsland(variant, r.Index, prevHop, final)
			r.Dedup[final] = island
			r.Islands = append(r.Islands, island)
			logf(opts, "added forward branching island %s to region %d", island.Name(), r.Index)
		}
		prevHop = island
		nearest = island
	}
	if nearest == nil {
		fatalf("branch island resolver: no region found for forward chain to %v", final)
	}
	logf(opts, "using island %s for branch to %s", nearest.Name(), final.Atom.Name())
	rewriteFixup(c, nearest)
}

func resolveBackward(opts *Options, regions []*Region, final TargetAndOffset, srcAddr, dstAddr uint64, c *clusterInfo) {
	prevHop := final.Atom
	var nearest *IslandAtom
	for i := 0; i < len(regions); i++ {
		r := regions[i]
		if r.RegionAddress < dstAddr || r.RegionAddress >= srcAddr {
			continue
		}
		island := r.Dedup[final]
		if island == nil {
			variant := chooseVariant(opts, false, final)
			island = MakeIsland(variant, r.Index, prevHop, final)
			r.Dedup[final] = island
			r.Islands = append(r.Islands, island)
			logf(opts, "added backward branching island %s to region %d", island.Name(), r.Index)
		}
		prevHop = island
		nearest = island
	}
	if nearest == nil {
		fatalf("branch island resolver: no region found for backward chain to %v", final)
	}
	logf(opts, "using island %s for branch to %s", nearest.Name(), final.Atom.Name())
	rewriteFixup(c, nearest)
}

func chooseVariant(opts *Options, crossSection bool, final TargetAndOffset) IslandVariant {
	switch opts.Architecture {
	case CPUPowerPC, CPUPowerPC64:
		return IslandPPC
	case CPUARM64:
		return IslandARM64
	case CPUARM:
		return SelectARMVariant(opts, crossSection, final.Atom != nil && final.Atom.IsThumb())
	default:
		fatalf("branch island resolver: unsupported architecture %v", opts.Architecture)
		return IslandARM64
	}
}

// rewriteFixup implements spec §4.6's final step: the cluster's
// branch-bearing fixup is rebound directly to the chosen island and
// any addend fixup is cleared, since the island itself now encodes the
// offset.
func rewriteFixup(c *clusterInfo, island *IslandAtom) {
	c.branchFixup.Binding = BindingDirectlyBound
	c.branchFixup.Target = island
	if c.addendFixup != nil {
		c.addendFixup.Addend = 0
	}
}

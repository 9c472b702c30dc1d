package ld

import "testing"

// fillerChain builds filler code atoms spanning [start, end) in chunks
// no larger than chunkSize, each with a preset section offset, so a
// region planner scanning the result finds a legal candidate at
// roughly every chunkSize interval rather than treating the whole gap
// as one unsplittable atom.
func fillerChain(sect *Section, start, end, chunkSize uint64) []Atom {
	var atoms []Atom
	offset := start
	n := 0
	for offset < end {
		size := chunkSize
		if offset+size > end {
			size = end - offset
		}
		a := mkAtom("filler", size)
		a.SetSection(sect)
		a.SetSectionOffset(offset)
		atoms = append(atoms, a)
		offset += size
		n++
	}
	return atoms
}

// islandChainReachesTarget walks an island's NextHop pointers (for
// relative variants) until it finds the original, non-island target,
// and reports whether that target is final.
func islandChainReachesTarget(start Atom, final Atom) bool {
	cur := start
	for i := 0; i < 64; i++ {
		isl, ok := cur.(*IslandAtom)
		if !ok {
			return cur == final
		}
		if isl.NextHop == nil {
			return false
		}
		cur = isl.NextHop
	}
	return false
}

// scenario 1: spec §8.1 — AArch64, two code sections 128MB+1 apart,
// a single bl from the last atom of A to the first atom of B.
func TestRunBoundaryAArch64TwoSections128MBApart(t *testing.T) {
	opts := &Options{Architecture: CPUARM64, OutputKind: OutputExecutable, AllowBranchIslands: true}

	sectA := NewSection("__TEXT", "__text", SectionCode)
	sectA.Address = 0x1_0000_0000
	caller := mkAtom("caller", 4)
	caller.SetSection(sectA)
	sectA.Atoms = []Atom{caller}
	sectA.Size = 4

	sectB := NewSection("__TEXT", "__text2", SectionCode)
	sectB.Address = 0x1_0000_0000 + 128*mb + 1
	callee := mkAtom("callee", 4)
	callee.SetSection(sectB)
	sectB.Atoms = []Atom{callee}
	sectB.Size = 4

	branchFixup := &Fixup{Pos: ClusterOnly, Kind: KindStoreTargetAddressARM64Branch26, Binding: BindingDirectlyBound, Target: callee}
	caller.AddFixup(branchFixup)

	sections := []*Section{sectA, sectB}
	if err := Run(opts, sections, nil, NoopLayout{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sectA.Atoms) != 2 {
		t.Fatalf("sectA has %d atoms after the pass, want 2 (caller + one spliced island)", len(sectA.Atoms))
	}
	island, ok := sectA.Atoms[1].(*IslandAtom)
	if !ok {
		t.Fatalf("sectA.Atoms[1] = %T, want *IslandAtom", sectA.Atoms[1])
	}
	if island.Variant != IslandARM64 {
		t.Errorf("island variant = %v, want IslandARM64", island.Variant)
	}
	if island.Size() != 4 {
		t.Errorf("island size = %d, want 4", island.Size())
	}
	if branchFixup.Target != island {
		t.Error("caller's branch was not retargeted to the spliced island")
	}
}

// scenario 2: spec §8.2 — ARM with Thumb-2, 40MB .text, forward bl
// spanning 38MB, 14MB budget → three chained islands.
func TestRunBoundaryARMThumb2ForwardChain(t *testing.T) {
	opts := &Options{Architecture: CPUARM, PreferSubArch: false, ThumbV2Available: true, OutputKind: OutputExecutable, AllowBranchIslands: true}

	sect := NewSection("__TEXT", "__text", SectionCode)
	sect.Address = 0

	caller := mkAtom("caller", 4)
	caller.SetSection(sect)
	caller.SetSectionOffset(0)

	targetOffset := uint64(0x2600000) // 38MiB
	target := mkAtom("target", 4)
	target.SetSection(sect)
	target.SetSectionOffset(targetOffset)

	fillers := fillerChain(sect, 4, targetOffset, 10*mb)

	atoms := append([]Atom{caller}, fillers...)
	atoms = append(atoms, target)
	sect.Atoms = atoms
	sect.Size = targetOffset + 4

	branchFixup := &Fixup{Pos: ClusterOnly, Kind: KindStoreTargetAddressThumbBranch22, Binding: BindingDirectlyBound, Target: target}
	caller.AddFixup(branchFixup)

	sections := []*Section{sect}
	if err := Run(opts, sections, nil, NoopLayout{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var islands []*IslandAtom
	for _, a := range sect.Atoms {
		if isl, ok := a.(*IslandAtom); ok {
			islands = append(islands, isl)
		}
	}
	if len(islands) < 2 {
		t.Fatalf("got %d islands, want a multi-hop chain (at least 2) across a 38MB forward branch under a 14MB budget", len(islands))
	}

	nearest, ok := branchFixup.Target.(*IslandAtom)
	if !ok {
		t.Fatalf("caller's branch target = %T, want *IslandAtom", branchFixup.Target)
	}
	if !islandChainReachesTarget(nearest, target) {
		t.Error("the island chain's NextHop pointers do not lead back to the original target")
	}
}

// scenario 3: spec §8.3 — Thumb-1 only, 10MB .text, backward branch
// from offset 0x900000 to offset 0x100, 3.5MB budget.
func TestRunBoundaryThumb1OnlyBackwardChain(t *testing.T) {
	opts := &Options{Architecture: CPUARM, ThumbV2Available: false, Slidable: true, OutputKind: OutputExecutable, AllowBranchIslands: true}

	sect := NewSection("__TEXT", "__text", SectionCode)
	sect.Address = 0

	target := mkAtom("target", 4)
	target.Thumb = true
	target.SetSection(sect)
	target.SetSectionOffset(0x100)

	callerOffset := uint64(0x900000)
	fillers := fillerChain(sect, 0x104, callerOffset, 2*mb)

	caller := mkAtom("caller", 4)
	caller.Thumb = true
	caller.SetSection(sect)
	caller.SetSectionOffset(callerOffset)

	atoms := append([]Atom{target}, fillers...)
	atoms = append(atoms, caller)
	sect.Atoms = atoms
	sect.Size = callerOffset + 4

	branchFixup := &Fixup{Pos: ClusterOnly, Kind: KindStoreTargetAddressThumbBranch22, Binding: BindingDirectlyBound, Target: target}
	caller.AddFixup(branchFixup)

	sections := []*Section{sect}
	if err := Run(opts, sections, nil, NoopLayout{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var islands []*IslandAtom
	for _, a := range sect.Atoms {
		if isl, ok := a.(*IslandAtom); ok {
			islands = append(islands, isl)
			if isl.Variant != IslandARMToThumb1PIC && isl.Variant != IslandARMToThumb1NonPIC {
				t.Errorf("island variant = %v, want an ARM-to-Thumb1 variant", isl.Variant)
			}
		}
	}
	if len(islands) < 2 {
		t.Fatalf("got %d islands, want at least 2 for a 0x8FFF00 backward span under a 3.5MB budget", len(islands))
	}
}

// scenario 4: spec §8.4 — PPC, branch to a symbol with addend 0x40,
// 35MB forward displacement.
func TestRunBoundaryPPCAddendForward(t *testing.T) {
	opts := &Options{Architecture: CPUPowerPC, OutputKind: OutputExecutable, AllowBranchIslands: true}

	sect := NewSection("__TEXT", "__text", SectionCode)
	sect.Address = 0

	caller := mkAtom("caller", 4)
	caller.SetSection(sect)
	caller.SetSectionOffset(0)

	targetOffset := uint64(35 * mb)
	target := mkAtom("target", 4)
	target.SetSection(sect)
	target.SetSectionOffset(targetOffset)

	fillers := fillerChain(sect, 4, targetOffset, 10*mb)

	atoms := append([]Atom{caller}, fillers...)
	atoms = append(atoms, target)
	sect.Atoms = atoms
	sect.Size = targetOffset + 4

	addendFixup := &Fixup{Pos: ClusterFirst, Kind: KindAddAddend, Addend: 0x40}
	branchFixup := &Fixup{Pos: ClusterLast, Kind: KindStoreTargetAddressPPCBranch24, Binding: BindingDirectlyBound, Target: target}
	caller.AddFixup(addendFixup)
	caller.AddFixup(branchFixup)

	sections := []*Section{sect}
	if err := Run(opts, sections, nil, NoopLayout{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	island, ok := branchFixup.Target.(*IslandAtom)
	if !ok {
		t.Fatalf("branchFixup.Target = %T, want *IslandAtom", branchFixup.Target)
	}
	if addendFixup.Addend != 0 {
		t.Errorf("caller's addend fixup = %#x, want 0 after rewrite", addendFixup.Addend)
	}
	fx := island.Fixups()
	if len(fx) < 3 || fx[0].Kind != KindSetTargetAddress || fx[1].Kind != KindAddAddend || fx[1].Addend != 0x40 || fx[2].Kind != KindStorePPCBranch24 {
		t.Errorf("island fixup cluster = %+v, want SetTargetAddress(final)+AddAddend(0x40)+StorePPCBranch24", fx)
	}
}

// scenario 5: spec §8.5 — AArch64 pre-linked output, cross-section
// branch 200MB away must still use the ordinary relative island, not
// an absolute movw/movt island (that fast path is ARM+Thumb-2 only).
func TestRunBoundaryAArch64PrelinkedUsesRelativeIsland(t *testing.T) {
	opts := &Options{Architecture: CPUARM64, OutputKind: OutputPreload, AllowBranchIslands: true}

	sectA := NewSection("__TEXT", "__text", SectionCode)
	sectA.Address = 0
	caller := mkAtom("caller", 4)
	caller.SetSection(sectA)
	sectA.Atoms = []Atom{caller}
	sectA.Size = 4

	sectB := NewSection("__TEXT", "__text_cold", SectionCode)
	sectB.Address = 200 * mb
	callee := mkAtom("callee", 4)
	callee.SetSection(sectB)
	sectB.Atoms = []Atom{callee}
	sectB.Size = 4

	branchFixup := &Fixup{Pos: ClusterOnly, Kind: KindStoreTargetAddressARM64Branch26, Binding: BindingDirectlyBound, Target: callee}
	caller.AddFixup(branchFixup)

	sections := []*Section{sectA, sectB}
	if err := Run(opts, sections, nil, NoopLayout{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, sect := range sections {
		for _, a := range sect.Atoms {
			if isl, ok := a.(*IslandAtom); ok && isl.Variant == IslandThumb2Absolute {
				t.Error("AArch64 pre-linked cross-section branch used an absolute Thumb-2 island; want only ordinary relative AArch64 islands")
			}
		}
	}
}

// scenario 6: spec §8.6 — object output kind is always a no-op.
func TestRunBoundaryObjectOutputIsNoop(t *testing.T) {
	opts := &Options{Architecture: CPUARM64, OutputKind: OutputObject, AllowBranchIslands: true}

	sect := NewSection("__TEXT", "__text", SectionCode)
	sect.Address = 0
	caller := mkAtom("caller", 4)
	target := mkAtom("target", 4)
	target.SetSectionOffset(500 * mb)
	branchFixup := &Fixup{Pos: ClusterOnly, Kind: KindStoreTargetAddressARM64Branch26, Binding: BindingDirectlyBound, Target: target}
	caller.AddFixup(branchFixup)
	sect.Atoms = []Atom{caller, target}

	if err := Run(opts, []*Section{sect}, nil, NoopLayout{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sect.Atoms) != 2 {
		t.Errorf("object output mutated the atom list: got %d atoms, want 2", len(sect.Atoms))
	}
	if branchFixup.Target != target {
		t.Error("object output rewrote a fixup; it must be a total no-op")
	}
}

func TestRunReturnsNilWhenBranchIslandsDisallowed(t *testing.T) {
	opts := &Options{Architecture: CPUARM64, OutputKind: OutputExecutable, AllowBranchIslands: false}
	sect := NewSection("__TEXT", "__text", SectionCode)
	if err := Run(opts, []*Section{sect}, nil, NoopLayout{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

// spec §8 "Universal invariants": running the pass a second time on
// the post-pass state makes no changes. Islands themselves carry
// IsBranch()-true fixups (e.g. KindStoreTargetAddressThumbBranch22 in
// islandfactory.go), so the reachability analyzer and resolver walk
// them again on a second Run; this confirms each chained island ends
// up within reach of its own next hop and no further islands result.
// Both runs use SimpleLayout so the second run's layout call gives the
// spliced islands their real section offsets.
func TestRunIdempotentOnSecondInvocation(t *testing.T) {
	opts := &Options{Architecture: CPUARM, PreferSubArch: false, ThumbV2Available: true, OutputKind: OutputExecutable, AllowBranchIslands: true}

	sect := NewSection("__TEXT", "__text", SectionCode)
	sect.Address = 0

	caller := mkAtom("caller", 4)
	caller.SetSection(sect)
	caller.SetSectionOffset(0)

	targetOffset := uint64(0x2600000) // 38MiB
	target := mkAtom("target", 4)
	target.SetSection(sect)
	target.SetSectionOffset(targetOffset)

	fillers := fillerChain(sect, 4, targetOffset, 10*mb)

	atoms := append([]Atom{caller}, fillers...)
	atoms = append(atoms, target)
	sect.Atoms = atoms
	sect.Size = targetOffset + 4

	branchFixup := &Fixup{Pos: ClusterOnly, Kind: KindStoreTargetAddressThumbBranch22, Binding: BindingDirectlyBound, Target: target}
	caller.AddFixup(branchFixup)

	sections := []*Section{sect}
	if err := Run(opts, sections, nil, &SimpleLayout{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	var firstIslands []*IslandAtom
	for _, a := range sect.Atoms {
		if isl, ok := a.(*IslandAtom); ok {
			firstIslands = append(firstIslands, isl)
		}
	}
	if len(firstIslands) < 2 {
		t.Fatalf("first Run produced %d islands, want a multi-hop chain (at least 2) to exercise idempotence", len(firstIslands))
	}
	firstAtomCount := len(sect.Atoms)
	firstCallerTarget := branchFixup.Target
	firstIslandTargets := make([]Atom, len(firstIslands))
	for i, isl := range firstIslands {
		for _, f := range isl.Fixups() {
			if f.Kind.IsBranch() {
				firstIslandTargets[i] = f.Target
			}
		}
	}

	if err := Run(opts, sections, nil, &SimpleLayout{}); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if len(sect.Atoms) != firstAtomCount {
		t.Errorf("second Run changed the atom count: %d -> %d, want no change", firstAtomCount, len(sect.Atoms))
	}
	if branchFixup.Target != firstCallerTarget {
		t.Error("second Run retargeted the caller's branch fixup, want no change")
	}
	for i, isl := range firstIslands {
		var gotTarget Atom
		for _, f := range isl.Fixups() {
			if f.Kind.IsBranch() {
				gotTarget = f.Target
			}
		}
		if gotTarget != firstIslandTargets[i] {
			t.Errorf("second Run retargeted island %s's own branch fixup, want no change", isl.Name())
		}
	}
}

func TestRunAllInRangeBranchesIsNoop(t *testing.T) {
	opts := &Options{Architecture: CPUARM64, OutputKind: OutputExecutable, AllowBranchIslands: true}
	sect := NewSection("__TEXT", "__text", SectionCode)
	sect.Address = 0x1000

	caller := mkAtom("caller", 4)
	target := mkAtom("target", 4)
	branchFixup := &Fixup{Pos: ClusterOnly, Kind: KindStoreTargetAddressARM64Branch26, Binding: BindingDirectlyBound, Target: target}
	caller.AddFixup(branchFixup)
	caller.SetSection(sect)
	target.SetSection(sect)
	sect.Atoms = []Atom{caller, target}

	if err := Run(opts, []*Section{sect}, nil, &SimpleLayout{BaseAddress: 0x1000}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sect.Atoms) != 2 {
		t.Errorf("a section with no branch exceeding reach should not gain islands, got %d atoms", len(sect.Atoms))
	}
}

package ld

import "math"

// Reachability holds the global scalars and the "islands may be needed"
// verdict produced by §4.2: the lowest __TEXT address, the end of the
// furthest stub section, the end of the furthest code-or-stub section,
// the total __TEXT segment size, whether any cross-section or Thumb
// branch was observed, and the inter-region budget to plan against.
type Reachability struct {
	LowestTextAddr     uint64
	FurthestStubSect   uint64
	FurthestCodeOrStub uint64
	SizeOfTEXTSeg      uint64
	SeenCrossSectBr    bool
	SeenThumbBr        bool
	InterRegionBudget  uint64
}

// AnalyzeReachability implements spec §4.2's four-step procedure. It
// invokes the layout collaborator exactly once, then walks every code
// section's atoms and fixup clusters, resolving indirectly-bound
// fixups through indirect (the symbol resolver's indirect binding
// table, spec §6). It returns the computed scalars/flags and the
// boolean "islands may be needed" verdict.
func AnalyzeReachability(opts *Options, sections []*Section, indirect []Atom, layout LayoutAssigner) (*Reachability, bool) {
	layout.SetSectionSizesAndAlignments(sections)
	layout.AssignFileOffsets(sections)

	r := &Reachability{LowestTextAddr: math.MaxUint64}
	anySectNeedsIslands := false

	for _, sect := range sections {
		if isTextSegment(sect) {
			if sect.Address < r.LowestTextAddr {
				r.LowestTextAddr = sect.Address
			}
			r.SizeOfTEXTSeg += sect.Size
		}

		switch sect.Type {
		case SectionStub:
			r.FurthestStubSect = sect.Address + sect.Size
			r.FurthestCodeOrStub = sect.Address + sect.Size
		case SectionCode:
			r.FurthestCodeOrStub = sect.Address + sect.Size
			analyzeSectionBranches(sect, indirect, r)
			if sect.HasBranches && sect.Size > singleSectionReach(opts, sect.HasThumbBranches) {
				sect.NeedsIslands = true
				anySectNeedsIslands = true
			}
		}
	}

	if r.LowestTextAddr == math.MaxUint64 {
		r.LowestTextAddr = 0
	}

	if r.SeenCrossSectBr && (r.FurthestCodeOrStub-r.LowestTextAddr) > singleSectionReach(opts, r.SeenThumbBr) {
		anySectNeedsIslands = true
	}

	r.InterRegionBudget = interRegionBudget(opts, r.SeenThumbBr)
	return r, anySectNeedsIslands
}

// analyzeSectionBranches walks sect's atoms' fixup clusters, tracking
// each cluster's current target the way the resolver later will, and
// sets sect.HasBranches / HasThumbBranches / HasCrossSectionBranches.
func analyzeSectionBranches(sect *Section, indirect []Atom, r *Reachability) {
	for _, atom := range sect.Atoms {
		var target Atom
		for _, f := range atom.Fixups() {
			if f.FirstInCluster() {
				target = nil
			}
			switch f.Binding {
			case BindingByContentBound, BindingDirectlyBound:
				target = f.Target
			case BindingIndirectlyBound:
				target = indirect[f.BindingIndex]
			}
			if !f.Kind.IsBranch() {
				continue
			}
			sect.HasBranches = true
			if f.Kind.IsThumbBranch() {
				sect.HasThumbBranches = true
				r.SeenThumbBr = true
			}
			// Branches to stubs count as cross-section, since a stub
			// section's real location is never trusted (spec §4.6).
			if target != nil && (atom.Section() != target.Section() || target.Section().Type == SectionStub) {
				sect.HasCrossSectionBranches = true
				r.SeenCrossSectBr = true
			}
		}
	}
}

package ld

// Region is the island-region tuple of spec §3: an index, the chosen
// insertion-point atom and its host section, the region's end address,
// a deduplication table keyed by (final target, final addend), and the
// ordered list of islands manufactured for this region so far.
type Region struct {
	Index         int
	InsertionAtom Atom
	HostSection   *Section
	RegionAddress uint64

	Dedup   map[TargetAndOffset]*IslandAtom
	Islands []*IslandAtom
}

func newRegion(index int, atom Atom, sect *Section, addr uint64) *Region {
	return &Region{
		Index:         index,
		InsertionAtom: atom,
		HostSection:   sect,
		RegionAddress: addr,
		Dedup:         make(map[TargetAndOffset]*IslandAtom),
	}
}

// noFollowOn reports whether atom carries an outgoing fixup marked
// "no-follow-on" (spec §3, "Invariants": splicing after such an atom
// would break a required atom grouping).
func noFollowOn(atom Atom) bool {
	for _, f := range atom.Fixups() {
		if f.Kind == KindNoneFollowOn {
			return true
		}
	}
	return false
}

// PlanRegions implements spec §4.4. previousIslandEndAddr starts at
// lowestTextAddr. The last legal candidate atom seen (one with no
// "no-follow-on" outgoing fixup) is committed as an insertion point as
// soon as the *next* atom's end would exceed budget, and scanning
// stops once previousIslandEndAddr+budget reaches furthestCodeOrStub.
// The candidate persists across a section boundary: a section that
// entirely fits within the current budget window contributes its last
// legal atom as the candidate for whichever later section first
// overflows, rather than losing it at the section edge.
//
// regionAddress is recorded as the insertion point's true absolute
// address (section base + offset + size), not the section-relative
// sum the original linker's findIslandInsertionPoints computes by
// omitting the section's base address. That omission is only safe
// when every code section shares one contiguous, zero-based address
// space; spec §8's boundary scenarios place sections at arbitrary,
// far-apart bases, so the absolute form is required for this pass to
// judge region budgets correctly there.
func PlanRegions(opts *Options, sections []*Section, lowestTextAddr, budget, furthestCodeOrStub uint64) []*Region {
	var regions []*Region
	previousIslandEndAddr := lowestTextAddr

	var candidate Atom
	var candidateSect *Section
	var candidateEnd uint64

	for _, sect := range sections {
		if sect.Type != SectionCode {
			continue
		}
		if previousIslandEndAddr+budget >= furthestCodeOrStub {
			return regions
		}

		offset := uint64(0)
		for _, atom := range sect.Atoms {
			offset = alignOffset(offset, atom.Alignment())
			end := offset + atom.Size()
			absEnd := sect.Address + end

			if absEnd > previousIslandEndAddr+budget {
				if candidate == nil {
					fatalf("branch island region planner: no legal insertion point before exceeding budget in section %s/%s", sect.SegmentName, sect.SectName)
				}
				regions = append(regions, newRegion(len(regions), candidate, candidateSect, candidateEnd))
				logf(opts, "branch islands will be inserted at %#x after %s in section %s/%s", candidateEnd, candidate.Name(), candidateSect.SegmentName, candidateSect.SectName)
				previousIslandEndAddr = candidateEnd
				candidate = nil

				if previousIslandEndAddr+budget >= furthestCodeOrStub {
					return regions
				}
			}

			if !noFollowOn(atom) {
				candidate = atom
				candidateSect = sect
				candidateEnd = absEnd
			}
			offset = end
		}
	}

	return regions
}

package ld

import "sort"

// regionSplice pairs a region's insertion index within its host
// section's atom list with the islands to interleave there.
type regionSplice struct {
	atomIndex int
	islands   []*IslandAtom
}

// SpliceAll implements spec §4.7: every region with at least one
// manufactured island gets its islands interleaved into its host
// section immediately after the insertion-point atom, in one pass per
// section processed from the highest insertion index down so earlier
// indices are never invalidated by a prior insertion. Sections that
// received no islands are left untouched.
func SpliceAll(sections []*Section, regions []*Region) {
	bySection := make(map[*Section][]regionSplice)
	var touched []*Section

	for _, r := range regions {
		if len(r.Islands) == 0 {
			continue
		}
		idx := indexOfAtom(r.HostSection.Atoms, r.InsertionAtom)
		if idx < 0 {
			fatalf("branch island splicer: insertion point for region %d not found in its host section", r.Index)
		}
		if _, ok := bySection[r.HostSection]; !ok {
			touched = append(touched, r.HostSection)
		}
		bySection[r.HostSection] = append(bySection[r.HostSection], regionSplice{atomIndex: idx, islands: r.Islands})
	}

	for _, sect := range touched {
		spliceSection(sect, bySection[sect])
	}
}

func spliceSection(sect *Section, splices []regionSplice) {
	sort.Slice(splices, func(i, j int) bool { return splices[i].atomIndex > splices[j].atomIndex })

	for _, s := range splices {
		merged := make([]Atom, 0, len(sect.Atoms)+len(s.islands))
		merged = append(merged, sect.Atoms[:s.atomIndex+1]...)
		for _, isl := range s.islands {
			isl.SetSection(sect)
			merged = append(merged, isl)
		}
		merged = append(merged, sect.Atoms[s.atomIndex+1:]...)
		sect.Atoms = merged
	}
}

func indexOfAtom(atoms []Atom, target Atom) int {
	for i, a := range atoms {
		if a == target {
			return i
		}
	}
	return -1
}

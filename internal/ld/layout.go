package ld

// LayoutAssigner is the external layout collaborator of spec §6: it
// computes per-section sizes/alignments and assigns section addresses
// and file offsets. The pass calls SetSectionSizesAndAlignments then
// AssignFileOffsets exactly once, before any analysis.
type LayoutAssigner interface {
	SetSectionSizesAndAlignments(sections []*Section)
	AssignFileOffsets(sections []*Section)
}

// SimpleLayout is a minimal, deterministic stand-in for the real
// linker's layout phase: pack atoms into their section honoring each
// atom's alignment rule, then place sections back to back starting at
// BaseAddress. Real object-file layout, segment packing, and file-offset
// bookkeeping are out of scope (spec §1); this exists only to drive
// cmd/isld's fixture-based demonstrations and to give tests a realistic
// collaborator to call through Run.
type SimpleLayout struct {
	BaseAddress uint64
}

func (l *SimpleLayout) SetSectionSizesAndAlignments(sections []*Section) {
	for _, sect := range sections {
		var offset uint64
		for _, atom := range sect.Atoms {
			offset = alignOffset(offset, atom.Alignment())
			atom.SetSectionOffset(offset)
			offset += atom.Size()
		}
		sect.Size = offset
	}
}

func (l *SimpleLayout) AssignFileOffsets(sections []*Section) {
	addr := l.BaseAddress
	for _, sect := range sections {
		sect.Address = addr
		addr += sect.Size
	}
}

// NoopLayout is a LayoutAssigner that leaves sections and atoms exactly
// as given. It models the common test/boundary-scenario setup where the
// exact addresses of spec §8's literal scenarios must be preserved
// rather than recomputed.
type NoopLayout struct{}

func (NoopLayout) SetSectionSizesAndAlignments([]*Section) {}
func (NoopLayout) AssignFileOffsets([]*Section)             {}

// alignOffset returns the smallest value >= offset congruent to
// align.Modulus modulo 2^align.PowerOf2 (spec §4.1 "Alignment rule").
func alignOffset(offset uint64, align Alignment) uint64 {
	shift := uint64(1) << align.PowerOf2
	required := uint64(align.Modulus) % shift
	current := offset % shift
	if current == required {
		return offset
	}
	if required > current {
		return offset + (required - current)
	}
	return offset + (required + shift - current)
}

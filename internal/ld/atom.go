package ld

// Alignment is an atom's (power-of-two, modulus) placement rule (spec
// §3, §4.1): the atom's offset o within its section must satisfy
// o mod 2^PowerOf2 == Modulus.
type Alignment struct {
	PowerOf2 uint8
	Modulus  uint32
}

// Atom is the fundamental unit of linker output (spec §3): a
// contiguous byte range with alignment, size, an owning section, a
// sequence of fixups, and pointer identity. Concrete types implement it
// directly rather than through a deep class hierarchy (spec §9 design
// note: "prefer a tagged variant ... behind a common trait/interface").
type Atom interface {
	Name() string
	Size() uint64
	Alignment() Alignment
	IsThumb() bool
	Fixups() []*Fixup
	AddFixup(f *Fixup)
	// RawContent returns the atom's bytes. finalAddr resolves any atom's
	// (including this one's) final address, needed by the PIC and
	// non-PIC ARM-to-Thumb1 islands, which bake an absolute
	// displacement into their content instead of carrying a fixup.
	RawContent(finalAddr func(Atom) uint64) []byte

	Section() *Section
	SetSection(s *Section)
	SectionOffset() uint64
	SetSectionOffset(o uint64)
}

// base implements the bookkeeping fields common to every atom variant.
type base struct {
	sect   *Section
	offset uint64
}

func (b *base) Section() *Section         { return b.sect }
func (b *base) SetSection(s *Section)     { b.sect = s }
func (b *base) SectionOffset() uint64     { return b.offset }
func (b *base) SetSectionOffset(o uint64) { b.offset = o }

// CodeAtom is an ordinary, already-compiled instruction-bearing atom.
type CodeAtom struct {
	base
	AtomName   string
	AtomSize   uint64
	Align      Alignment
	Thumb      bool
	AtomFixups []*Fixup
	Content    []byte
}

func NewCodeAtom(name string, size uint64, align Alignment) *CodeAtom {
	return &CodeAtom{AtomName: name, AtomSize: size, Align: align}
}

func (a *CodeAtom) Name() string              { return a.AtomName }
func (a *CodeAtom) Size() uint64              { return a.AtomSize }
func (a *CodeAtom) Alignment() Alignment      { return a.Align }
func (a *CodeAtom) IsThumb() bool             { return a.Thumb }
func (a *CodeAtom) Fixups() []*Fixup          { return a.AtomFixups }
func (a *CodeAtom) AddFixup(f *Fixup)         { a.AtomFixups = append(a.AtomFixups, f) }
func (a *CodeAtom) RawContent(func(Atom) uint64) []byte {
	return a.Content
}

// StubAtom represents an entry in a lazy or non-lazy stub section. Its
// own displacement is never trusted by this pass: spec §4.6 "Stub
// redirection" pins any branch landing in a stub section to the
// section's far end instead.
type StubAtom struct {
	base
	AtomName string
	AtomSize uint64
	Align    Alignment
}

func NewStubAtom(name string, size uint64, align Alignment) *StubAtom {
	return &StubAtom{AtomName: name, AtomSize: size, Align: align}
}

func (a *StubAtom) Name() string                        { return a.AtomName }
func (a *StubAtom) Size() uint64                        { return a.AtomSize }
func (a *StubAtom) Alignment() Alignment                { return a.Align }
func (a *StubAtom) IsThumb() bool                       { return false }
func (a *StubAtom) Fixups() []*Fixup                    { return nil }
func (a *StubAtom) AddFixup(f *Fixup)                   {}
func (a *StubAtom) RawContent(func(Atom) uint64) []byte { return nil }

// IslandVariant tags which of the seven architecture-specific
// trampoline encodings (spec §4.5) an IslandAtom manufactures.
type IslandVariant int

const (
	IslandPPC IslandVariant = iota
	IslandARM64
	IslandARMToARM
	IslandThumb2ToThumb
	IslandThumb2Absolute
	IslandARMToThumb1PIC
	IslandARMToThumb1NonPIC
)

// IslandAtom is a manufactured trampoline (spec §3 "Island atoms
// additionally carry a stable name derived from their final target").
// It exists only for the lifetime of one pass invocation until the
// splicer hands it to its host section (spec §3, §5).
type IslandAtom struct {
	base
	AtomName    string
	Variant     IslandVariant
	AtomFixups  []*Fixup
	FinalTarget TargetAndOffset // the ultimate destination and addend
	NextHop     Atom            // immediate branch target for relative variants
}

func (a *IslandAtom) Name() string      { return a.AtomName }
func (a *IslandAtom) Fixups() []*Fixup  { return a.AtomFixups }
func (a *IslandAtom) AddFixup(f *Fixup) { a.AtomFixups = append(a.AtomFixups, f) }

func (a *IslandAtom) IsThumb() bool {
	switch a.Variant {
	case IslandThumb2ToThumb, IslandThumb2Absolute:
		return true
	default:
		return false
	}
}

// Alignment is 2^2 for every island except the Thumb ones, which use
// 2^1 (spec §4.5 "Alignment and scope").
func (a *IslandAtom) Alignment() Alignment {
	if a.IsThumb() {
		return Alignment{PowerOf2: 1}
	}
	return Alignment{PowerOf2: 2}
}

func (a *IslandAtom) Size() uint64 {
	switch a.Variant {
	case IslandThumb2Absolute:
		return 10
	case IslandARMToThumb1PIC:
		return 16
	case IslandARMToThumb1NonPIC:
		return 8
	default:
		return 4
	}
}

// RawContent emits this island's machine code (spec §4.5). The two
// ARM-to-Thumb1 variants bake an absolute displacement/address
// directly into their content rather than carrying a fixup, so they
// need finalAddr to resolve both their own final address and their
// final target's; every other variant carries its target in a fixup
// and emits a fixed instruction template here.
func (a *IslandAtom) RawContent(finalAddr func(Atom) uint64) []byte {
	return islandRawContent(a, finalAddr)
}

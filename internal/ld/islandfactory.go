package ld

import (
	"encoding/binary"
	"fmt"
)

// nameForIsland implements spec §4.5 "Naming": "anon" substitutes for
// an unnamed final target, an addend suffix is appended when non-zero,
// and the region suffix is omitted only for region 0 with a zero
// addend.
func nameForIsland(final TargetAndOffset, region int) string {
	name := "anon"
	if final.Atom != nil && final.Atom.Name() != "" {
		name = final.Atom.Name()
	}
	if final.Offset != 0 {
		return fmt.Sprintf("%s_plus_%d.island.%d", name, final.Offset, region)
	}
	if region == 0 {
		return name + ".island"
	}
	return fmt.Sprintf("%s.island.%d", name, region)
}

// SelectARMVariant implements spec §4.5's top-down ARM-family
// selection: an absolute Thumb-2 island wins whenever the branch
// crosses sections and Thumb-2 is both requested and available;
// otherwise a Thumb final target gets a Thumb-2-to-Thumb island when
// Thumb-2 is available, else one of the two ARM-to-Thumb1 kinds, and
// anything else is an ordinary ARM-to-ARM branch.
func SelectARMVariant(opts *Options, crossSectionBranch, finalIsThumb bool) IslandVariant {
	if crossSectionBranch && opts.PreferSubArchitecture() && opts.ArchSupportsThumb2() {
		return IslandThumb2Absolute
	}
	if finalIsThumb {
		if opts.ArchSupportsThumb2() {
			return IslandThumb2ToThumb
		}
		if opts.OutputSlidable() {
			return IslandARMToThumb1PIC
		}
		return IslandARMToThumb1NonPIC
	}
	return IslandARMToARM
}

// MakeIsland implements spec §4.5's contract: given the chosen
// variant, the region it belongs to, the immediate next-hop target
// for relative variants, and the ultimate (final target, addend)
// pair, produce a fresh island atom with its per-kind fixup cluster
// plus the "island target" hint fixup. The two ARM-to-Thumb1 variants
// carry no fixups at all, not even the hint. A variant outside the
// seven known ones is fatal.
func MakeIsland(variant IslandVariant, region int, nextHop Atom, final TargetAndOffset) *IslandAtom {
	island := &IslandAtom{
		AtomName:    nameForIsland(final, region),
		Variant:     variant,
		FinalTarget: final,
		NextHop:     nextHop,
	}

	switch variant {
	case IslandPPC:
		if nextHop == final.Atom && final.Offset != 0 {
			island.AddFixup(&Fixup{Pos: ClusterFirst, Kind: KindSetTargetAddress, Binding: BindingDirectlyBound, Target: final.Atom})
			island.AddFixup(&Fixup{Pos: ClusterMiddle, Kind: KindAddAddend, Addend: final.Offset})
			island.AddFixup(&Fixup{Pos: ClusterLast, Kind: KindStorePPCBranch24})
		} else {
			island.AddFixup(&Fixup{Pos: ClusterOnly, Kind: KindStoreTargetAddressPPCBranch24, Binding: BindingDirectlyBound, Target: nextHop})
		}
		addIslandTargetHint(island, final)
	case IslandARM64:
		island.AddFixup(&Fixup{Pos: ClusterOnly, Kind: KindStoreTargetAddressARM64Branch26, Binding: BindingDirectlyBound, Target: nextHop})
		addIslandTargetHint(island, final)
	case IslandARMToARM:
		island.AddFixup(&Fixup{Pos: ClusterOnly, Kind: KindStoreTargetAddressARMBranch24, Binding: BindingDirectlyBound, Target: nextHop})
		addIslandTargetHint(island, final)
	case IslandThumb2ToThumb:
		island.AddFixup(&Fixup{Pos: ClusterOnly, Kind: KindStoreTargetAddressThumbBranch22, Binding: BindingDirectlyBound, Target: nextHop})
		addIslandTargetHint(island, final)
	case IslandThumb2Absolute:
		island.AddFixup(&Fixup{OffsetInAtom: 0, Pos: ClusterFirst, Kind: KindSetTargetAddress, Binding: BindingDirectlyBound, Target: final.Atom})
		island.AddFixup(&Fixup{OffsetInAtom: 0, Pos: ClusterLast, Kind: KindStoreThumbLow16})
		island.AddFixup(&Fixup{OffsetInAtom: 4, Pos: ClusterFirst, Kind: KindSetTargetAddress, Binding: BindingDirectlyBound, Target: final.Atom})
		island.AddFixup(&Fixup{OffsetInAtom: 4, Pos: ClusterLast, Kind: KindStoreThumbHigh16})
		addIslandTargetHint(island, final)
	case IslandARMToThumb1PIC, IslandARMToThumb1NonPIC:
		// Displacement/address is baked into RawContent; no fixups, not even the island-target hint.
	default:
		fatalf("branch island factory: unexpected island variant %d", variant)
	}

	return island
}

// addIslandTargetHint appends the "island target" hint fixup (plus its
// addend, when non-zero) that every variant other than the two
// ARM-to-Thumb1 ones carries (spec §4.5).
func addIslandTargetHint(island *IslandAtom, final TargetAndOffset) {
	if final.Offset != 0 {
		island.AddFixup(&Fixup{Pos: ClusterFirst, Kind: KindIslandTarget, Binding: BindingDirectlyBound, Target: final.Atom})
		island.AddFixup(&Fixup{Pos: ClusterLast, Kind: KindAddAddend, Addend: final.Offset})
	} else {
		island.AddFixup(&Fixup{Pos: ClusterOnly, Kind: KindIslandTarget, Binding: BindingDirectlyBound, Target: final.Atom})
	}
}

// islandRawContent implements spec §4.5's seven byte encodings. The
// two ARM-to-Thumb1 variants bake a live address into their content,
// computed through finalAddr rather than carried as a fixup.
func islandRawContent(a *IslandAtom, finalAddr func(Atom) uint64) []byte {
	buf := make([]byte, a.Size())

	switch a.Variant {
	case IslandPPC:
		binary.BigEndian.PutUint32(buf, 0x48000000)
	case IslandARM64:
		binary.LittleEndian.PutUint32(buf, 0x14000000)
	case IslandARMToARM:
		binary.LittleEndian.PutUint32(buf, 0xEA000000)
	case IslandThumb2ToThumb:
		binary.LittleEndian.PutUint32(buf, 0xF0008000)
	case IslandThumb2Absolute:
		copy(buf, []byte{0xF2, 0x40, 0x0C, 0x00, 0xF2, 0xC0, 0x0C, 0x00, 0x47, 0x60})
	case IslandARMToThumb1PIC:
		binary.LittleEndian.PutUint32(buf[0:4], 0xe59fc004)  // ldr ip, [pc, #4]
		binary.LittleEndian.PutUint32(buf[4:8], 0xe08fc00c)  // add ip, pc, ip
		binary.LittleEndian.PutUint32(buf[8:12], 0xe12fff1c) // bx ip
		displacement := finalAddr(a.FinalTarget.Atom) + uint64(a.FinalTarget.Offset) - (finalAddr(a) + 12)
		d32 := uint32(displacement)
		if isThumbTarget(a.FinalTarget.Atom) {
			d32 |= 1
		}
		binary.LittleEndian.PutUint32(buf[12:16], d32)
	case IslandARMToThumb1NonPIC:
		binary.LittleEndian.PutUint32(buf[0:4], 0xe51ff004) // ldr pc, [pc, #-4]
		addr := finalAddr(a.FinalTarget.Atom) + uint64(a.FinalTarget.Offset)
		a32 := uint32(addr)
		if isThumbTarget(a.FinalTarget.Atom) {
			a32 |= 1
		}
		binary.LittleEndian.PutUint32(buf[4:8], a32)
	}

	return buf
}

func isThumbTarget(t Atom) bool { return t != nil && t.IsThumb() }

package ld

import (
	"encoding/json"
	"fmt"
)

// rawFixture mirrors the on-disk JSON layout fixture cmd/isld reads: a
// complete program image description sufficient to drive the pass in
// isolation, in lieu of a real object-file/symbol-resolver pipeline
// (spec §1 "out of scope"). Every atom that can be a fixup target is
// named; cross-references resolve by name in a second pass once every
// atom exists.
type rawFixture struct {
	Architecture          string       `json:"architecture"`
	OutputKind            string       `json:"outputKind"`
	AllowBranchIslands    *bool        `json:"allowBranchIslands"`
	PreferSubArchitecture bool         `json:"preferSubArchitecture"`
	Thumb2Available       bool         `json:"thumb2Available"`
	Slidable              bool         `json:"slidable"`
	Sections              []rawSection `json:"sections"`
	IndirectTable         []string     `json:"indirectTable"`
}

type rawSection struct {
	Segment string    `json:"segment"`
	Name    string    `json:"name"`
	Type    string    `json:"type"`
	Address uint64    `json:"address"`
	Atoms   []rawAtom `json:"atoms"`
}

type rawAtom struct {
	Name      string     `json:"name"`
	Size      uint64     `json:"size"`
	AlignPow2 uint8      `json:"alignPow2"`
	AlignMod  uint32     `json:"alignMod"`
	Thumb     bool       `json:"thumb"`
	Stub      bool       `json:"stub"`
	Fixups    []rawFixup `json:"fixups"`
}

type rawFixup struct {
	Offset  uint32 `json:"offset"`
	Pos     string `json:"pos"`
	Kind    string `json:"kind"`
	Binding string `json:"binding"`
	Target  string `json:"target"`
	Index   int    `json:"bindingIndex"`
	Addend  uint32 `json:"addend"`
}

// Fixture is a decoded layout fixture ready to hand to Run: resolved
// Options, sections in file order, and the indirect binding table.
type Fixture struct {
	Options  Options
	Sections []*Section
	Indirect []Atom
}

// LoadFixture decodes a JSON layout fixture (spec §1's external
// object-file/symbol-resolver inputs, modeled here as a single
// document since this pass's scope stops at "in-memory program
// representation").
func LoadFixture(data []byte) (*Fixture, error) {
	var raw rawFixture
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("isld: decoding layout fixture: %w", err)
	}

	opts := DefaultOptions()
	if raw.Architecture != "" {
		arch, err := ParseCPUType(raw.Architecture)
		if err != nil {
			return nil, fmt.Errorf("isld: %w", err)
		}
		opts.Architecture = arch
	}
	if raw.OutputKind != "" {
		kind, err := ParseOutputKind(raw.OutputKind)
		if err != nil {
			return nil, fmt.Errorf("isld: %w", err)
		}
		opts.OutputKind = kind
	}
	if raw.AllowBranchIslands != nil {
		opts.AllowBranchIslands = *raw.AllowBranchIslands
	}
	opts.PreferSubArch = raw.PreferSubArchitecture
	opts.ThumbV2Available = raw.Thumb2Available
	opts.Slidable = raw.Slidable

	byName := make(map[string]Atom)
	sections := make([]*Section, 0, len(raw.Sections))

	for _, rs := range raw.Sections {
		typ, err := parseSectionType(rs.Type)
		if err != nil {
			return nil, fmt.Errorf("isld: section %s/%s: %w", rs.Segment, rs.Name, err)
		}
		sect := NewSection(rs.Segment, rs.Name, typ)
		sect.Address = rs.Address

		for _, ra := range rs.Atoms {
			align := Alignment{PowerOf2: ra.AlignPow2, Modulus: ra.AlignMod}
			var atom Atom
			if ra.Stub {
				atom = NewStubAtom(ra.Name, ra.Size, align)
			} else {
				ca := NewCodeAtom(ra.Name, ra.Size, align)
				ca.Thumb = ra.Thumb
				atom = ca
			}
			atom.SetSection(sect)
			sect.Atoms = append(sect.Atoms, atom)
			if ra.Name != "" {
				if _, dup := byName[ra.Name]; dup {
					return nil, fmt.Errorf("isld: duplicate atom name %q", ra.Name)
				}
				byName[ra.Name] = atom
			}
		}

		sections = append(sections, sect)
	}

	indirect := make([]Atom, len(raw.IndirectTable))
	for i, name := range raw.IndirectTable {
		atom, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("isld: indirect table entry %q: no such atom", name)
		}
		indirect[i] = atom
	}

	for si, rs := range raw.Sections {
		sect := sections[si]
		for ai, ra := range rs.Atoms {
			atom := sect.Atoms[ai]
			for _, rf := range ra.Fixups {
				f, err := buildFixup(rf, byName)
				if err != nil {
					return nil, fmt.Errorf("isld: atom %q: %w", atom.Name(), err)
				}
				atom.AddFixup(f)
			}
		}
	}

	return &Fixture{Options: opts, Sections: sections, Indirect: indirect}, nil
}

func buildFixup(rf rawFixup, byName map[string]Atom) (*Fixup, error) {
	pos, err := parseClusterPos(rf.Pos)
	if err != nil {
		return nil, err
	}
	kind, err := parseKind(rf.Kind)
	if err != nil {
		return nil, err
	}
	binding, err := parseBinding(rf.Binding)
	if err != nil {
		return nil, err
	}

	f := &Fixup{OffsetInAtom: rf.Offset, Pos: pos, Kind: kind, Binding: binding, Addend: rf.Addend, BindingIndex: rf.Index}

	switch binding {
	case BindingByContentBound, BindingDirectlyBound:
		target, ok := byName[rf.Target]
		if !ok {
			return nil, fmt.Errorf("fixup target %q: no such atom", rf.Target)
		}
		f.Target = target
	}

	return f, nil
}

func parseSectionType(s string) (SectionType, error) {
	switch s {
	case "code":
		return SectionCode, nil
	case "stub":
		return SectionStub, nil
	case "data":
		return SectionData, nil
	default:
		return 0, fmt.Errorf("unrecognized section type %q", s)
	}
}

func parseClusterPos(s string) (ClusterPos, error) {
	switch s {
	case "", "middle":
		return ClusterMiddle, nil
	case "first":
		return ClusterFirst, nil
	case "last":
		return ClusterLast, nil
	case "only":
		return ClusterOnly, nil
	default:
		return 0, fmt.Errorf("unrecognized cluster position %q", s)
	}
}

func parseBinding(s string) (Binding, error) {
	switch s {
	case "", "none":
		return BindingNone, nil
	case "byNameUnbound":
		return BindingByNameUnbound, nil
	case "byContentBound":
		return BindingByContentBound, nil
	case "direct", "directlyBound":
		return BindingDirectlyBound, nil
	case "indirect", "indirectlyBound":
		return BindingIndirectlyBound, nil
	default:
		return 0, fmt.Errorf("unrecognized binding %q", s)
	}
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "addAddend":
		return KindAddAddend, nil
	case "setTargetAddress":
		return KindSetTargetAddress, nil
	case "islandTarget":
		return KindIslandTarget, nil
	case "storeThumbLow16":
		return KindStoreThumbLow16, nil
	case "storeThumbHigh16":
		return KindStoreThumbHigh16, nil
	case "noFollowOn":
		return KindNoneFollowOn, nil
	case "storePPCBranch24":
		return KindStorePPCBranch24, nil
	case "storeTargetAddressPPCBranch24":
		return KindStoreTargetAddressPPCBranch24, nil
	case "storeARMBranch24":
		return KindStoreARMBranch24, nil
	case "storeTargetAddressARMBranch24":
		return KindStoreTargetAddressARMBranch24, nil
	case "storeThumbBranch22":
		return KindStoreThumbBranch22, nil
	case "storeTargetAddressThumbBranch22":
		return KindStoreTargetAddressThumbBranch22, nil
	case "storeARM64Branch26":
		return KindStoreARM64Branch26, nil
	case "storeTargetAddressARM64Branch26":
		return KindStoreTargetAddressARM64Branch26, nil
	default:
		return 0, fmt.Errorf("unrecognized fixup kind %q", s)
	}
}

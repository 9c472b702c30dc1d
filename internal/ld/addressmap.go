package ld

// AddressMap maps atom identity to the absolute address that atom would
// occupy under current layout (spec §3, §4.1). It is rebuilt from
// scratch on every pass invocation and used only within that invocation.
type AddressMap map[Atom]uint64

// BuildAddressMap implements spec §4.1: for each atom,
// addr(atom) = section.address + offset_within_section, where the
// offset honors the atom's alignment rule. It is consumed only when the
// reachability analyzer has found cross-section branches or a
// pre-linked output kind (spec §4.1 "Usage"); in the section-local case
// the map is never built.
func BuildAddressMap(sections []*Section) AddressMap {
	m := make(AddressMap)
	for _, sect := range sections {
		var offset uint64
		for _, atom := range sect.Atoms {
			offset = alignOffset(offset, atom.Alignment())
			m[atom] = sect.Address + offset
			offset += atom.Size()
		}
	}
	return m
}

package ld

// Binding describes how a fixup's target is resolved (spec §3).
type Binding int

const (
	BindingNone Binding = iota
	BindingByNameUnbound
	BindingByContentBound
	BindingDirectlyBound
	BindingIndirectlyBound
)

// ClusterPos marks a fixup's position within its cluster. Fixups sharing
// one store site are grouped into a cluster that begins at a
// first-in-cluster fixup and ends at a last-in-cluster one (spec §3).
type ClusterPos int

const (
	ClusterMiddle ClusterPos = iota
	ClusterFirst
	ClusterLast
	ClusterOnly // a single-fixup cluster: both first and last
)

// FirstInCluster reports whether pos opens a cluster.
func (p ClusterPos) FirstInCluster() bool { return p == ClusterFirst || p == ClusterOnly }

// LastInCluster reports whether pos closes a cluster.
func (p ClusterPos) LastInCluster() bool { return p == ClusterLast || p == ClusterOnly }

// Kind identifies what a fixup does when applied.
type Kind int

const (
	KindNone Kind = iota
	KindAddAddend
	KindSetTargetAddress
	KindIslandTarget
	KindStoreThumbLow16
	KindStoreThumbHigh16
	KindNoneFollowOn

	KindStorePPCBranch24
	KindStoreTargetAddressPPCBranch24
	KindStoreARMBranch24
	KindStoreTargetAddressARMBranch24
	KindStoreThumbBranch22
	KindStoreTargetAddressThumbBranch22
	KindStoreARM64Branch26
	KindStoreTargetAddressARM64Branch26
)

// IsBranch reports whether kind is one of the four architecture ×
// direct/store-target-address branch kinds named in spec §3.
func (k Kind) IsBranch() bool {
	switch k {
	case KindStorePPCBranch24, KindStoreTargetAddressPPCBranch24,
		KindStoreARMBranch24, KindStoreTargetAddressARMBranch24,
		KindStoreThumbBranch22, KindStoreTargetAddressThumbBranch22,
		KindStoreARM64Branch26, KindStoreTargetAddressARM64Branch26:
		return true
	}
	return false
}

// IsThumbBranch reports whether kind is the Thumb-22 branch kind, the
// one that marks a section as having Thumb branches (spec §4.2).
func (k Kind) IsThumbBranch() bool {
	return k == KindStoreThumbBranch22 || k == KindStoreTargetAddressThumbBranch22
}

// Fixup is a (offset-in-atom, kind, binding, payload) record (spec §3).
type Fixup struct {
	OffsetInAtom uint32
	Pos          ClusterPos
	Kind         Kind
	Binding      Binding
	Target       Atom // valid when Binding is ByContentBound or DirectlyBound
	BindingIndex int  // valid when Binding is IndirectlyBound
	Addend       uint32
}

func (f *Fixup) FirstInCluster() bool { return f.Pos.FirstInCluster() }
func (f *Fixup) LastInCluster() bool  { return f.Pos.LastInCluster() }

// TargetAndOffset is the (final target atom, final addend) key used to
// deduplicate islands within one region (spec §3, "Island deduplication
// table").
type TargetAndOffset struct {
	Atom   Atom
	Offset uint32
}

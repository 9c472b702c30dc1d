package ld

import (
	"fmt"
	"strings"

	env "github.com/xyproto/env/v2"
)

// CPUType identifies the target architecture (spec §6, consumed from
// Options as architecture: cputype).
type CPUType int

const (
	CPUUnknown CPUType = iota
	CPUPowerPC
	CPUPowerPC64
	CPUARM
	CPUARM64
)

func (c CPUType) String() string {
	switch c {
	case CPUPowerPC:
		return "ppc"
	case CPUPowerPC64:
		return "ppc64"
	case CPUARM:
		return "arm"
	case CPUARM64:
		return "arm64"
	default:
		return "unknown"
	}
}

func ParseCPUType(s string) (CPUType, error) {
	switch strings.ToLower(s) {
	case "ppc", "powerpc":
		return CPUPowerPC, nil
	case "ppc64", "powerpc64":
		return CPUPowerPC64, nil
	case "arm":
		return CPUARM, nil
	case "arm64", "aarch64":
		return CPUARM64, nil
	default:
		return CPUUnknown, fmt.Errorf("unrecognized architecture %q", s)
	}
}

// OutputKind mirrors the small set of kinds the pass distinguishes
// (spec §6): object output is a no-op, preload output takes the
// "global addressing" path unconditionally.
type OutputKind int

const (
	OutputExecutable OutputKind = iota
	OutputDylib
	OutputBundle
	OutputObject
	OutputPreload
)

func ParseOutputKind(s string) (OutputKind, error) {
	switch strings.ToLower(s) {
	case "", "executable", "exe":
		return OutputExecutable, nil
	case "dylib":
		return OutputDylib, nil
	case "bundle":
		return OutputBundle, nil
	case "object", "objectfile", "obj":
		return OutputObject, nil
	case "preload":
		return OutputPreload, nil
	default:
		return OutputExecutable, fmt.Errorf("unrecognized output kind %q", s)
	}
}

// Options is the external-collaborator surface the pass consumes (spec
// §6: "Consumed from Options").
type Options struct {
	OutputKind         OutputKind
	AllowBranchIslands bool
	Architecture       CPUType
	PreferSubArch      bool // preferSubArchitecture()
	ThumbV2Available   bool // archSupportsThumb2()
	Slidable           bool // outputSlidable()
	Verbose            bool
}

func (o *Options) PreferSubArchitecture() bool { return o.PreferSubArch }
func (o *Options) ArchSupportsThumb2() bool    { return o.ThumbV2Available }
func (o *Options) OutputSlidable() bool        { return o.Slidable }

// DefaultOptions returns the conservative defaults used when neither the
// CLI nor the environment overrides them: an executable on arm64 with
// islands allowed.
func DefaultOptions() Options {
	return Options{
		OutputKind:         OutputExecutable,
		AllowBranchIslands: true,
		Architecture:       CPUARM64,
	}
}

// LoadOptionsFromEnv overlays environment variables onto base, the way a
// CI pipeline might pin link options without touching CLI invocations.
// CLI flags are applied after this and always win (see cmd/isld).
//
// github.com/xyproto/env/v2 is declared in the teacher's go.mod but never
// imported there; this is its one call site in this repository.
func LoadOptionsFromEnv(base Options) Options {
	opts := base

	if env.Has("ISLD_ARCH") {
		if arch, err := ParseCPUType(env.Str("ISLD_ARCH")); err == nil {
			opts.Architecture = arch
		}
	}
	if env.Has("ISLD_OUTPUT_KIND") {
		if kind, err := ParseOutputKind(env.Str("ISLD_OUTPUT_KIND")); err == nil {
			opts.OutputKind = kind
		}
	}
	if env.Has("ISLD_ALLOW_BRANCH_ISLANDS") {
		opts.AllowBranchIslands = env.Bool("ISLD_ALLOW_BRANCH_ISLANDS")
	}
	if env.Has("ISLD_PREFER_SUBARCH") {
		opts.PreferSubArch = env.Bool("ISLD_PREFER_SUBARCH")
	}
	if env.Has("ISLD_THUMB2") {
		opts.ThumbV2Available = env.Bool("ISLD_THUMB2")
	}
	if env.Has("ISLD_SLIDABLE") {
		opts.Slidable = env.Bool("ISLD_SLIDABLE")
	}
	if env.Has("ISLD_VERBOSE") {
		opts.Verbose = env.Bool("ISLD_VERBOSE")
	}

	return opts
}

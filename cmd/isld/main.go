// Command isld drives the branch-island insertion pass against a JSON
// layout fixture, standing in for the late-link-phase invocation this
// pass would otherwise receive from inside a full static linker (spec
// §1, §6 "File formats / CLI / environment: None at this layer").
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli"

	ld "github.com/xyproto/isld/internal/ld"
)

func main() {
	app := cli.NewApp()
	app.Name = "isld"
	app.Usage = "run the branch-island insertion pass over a layout fixture"
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "arch", Usage: "override architecture: ppc, ppc64, arm, arm64"},
		cli.StringFlag{Name: "output-kind", Usage: "override output kind: executable, dylib, bundle, object, preload"},
		cli.BoolFlag{Name: "no-islands", Usage: "disable branch island insertion (allowBranchIslands = false)"},
		cli.BoolFlag{Name: "verbose", Usage: "log each resolved section to stderr"},
		cli.StringFlag{Name: "out", Usage: "write the post-pass JSON summary to this path instead of stdout"},
	}

	app.Action = runLink

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "isld:", err)
		os.Exit(1)
	}
}

func runLink(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: isld [options] <layout-fixture.json>", 2)
	}

	data, err := os.ReadFile(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("reading fixture: %v", err), 1)
	}

	fixture, err := ld.LoadFixture(data)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	opts := ld.LoadOptionsFromEnv(fixture.Options)
	if err := applyCLIOverrides(c, &opts); err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	layout := &ld.SimpleLayout{}
	if err := ld.Run(&opts, fixture.Sections, fixture.Indirect, layout); err != nil {
		return cli.NewExitError(fmt.Sprintf("pass failed: %v", err), 1)
	}

	return writeResult(c, fixture)
}

func applyCLIOverrides(c *cli.Context, opts *ld.Options) error {
	if s := c.String("arch"); s != "" {
		arch, err := ld.ParseCPUType(s)
		if err != nil {
			return err
		}
		opts.Architecture = arch
	}
	if s := c.String("output-kind"); s != "" {
		kind, err := ld.ParseOutputKind(s)
		if err != nil {
			return err
		}
		opts.OutputKind = kind
	}
	if c.Bool("no-islands") {
		opts.AllowBranchIslands = false
	}
	if c.Bool("verbose") {
		opts.Verbose = true
	}
	return nil
}

// summary is what isld prints: the fixture format is a pass-internal
// convenience, not a format consumers should round-trip byte-for-byte.
type summary struct {
	Sections []sectionSummary `json:"sections"`
}

type sectionSummary struct {
	Segment      string   `json:"segment"`
	Name         string   `json:"name"`
	AtomCount    int      `json:"atomCount"`
	IslandNames  []string `json:"islandNames,omitempty"`
	NeedsIslands bool     `json:"neededIslands"`
}

func writeResult(c *cli.Context, fixture *ld.Fixture) error {
	out := summary{}
	for _, sect := range fixture.Sections {
		ss := sectionSummary{Segment: sect.SegmentName, Name: sect.Name(), AtomCount: len(sect.Atoms), NeedsIslands: sect.NeedsIslands}
		for _, atom := range sect.Atoms {
			if isl, ok := atom.(*ld.IslandAtom); ok {
				ss.IslandNames = append(ss.IslandNames, isl.Name())
			}
		}
		out.Sections = append(out.Sections, ss)
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("encoding result: %v", err), 1)
	}

	if dst := c.String("out"); dst != "" {
		return os.WriteFile(dst, encoded, 0o644)
	}
	fmt.Println(string(encoded))
	return nil
}

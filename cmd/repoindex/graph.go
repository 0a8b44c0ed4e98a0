package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/repoindex/internal/graph"
	"github.com/standardbeagle/repoindex/internal/types"
)

// edgeInput mirrors the external symbol/graph producer's contract (§6): a
// typed adjacency list between repo-relative file paths.
type edgeInput struct {
	From string         `json:"from"`
	To   string         `json:"to"`
	Kind types.EdgeKind `json:"kind"`
}

func loadGraphFromFile(path string) (*graph.Graph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read edges file: %w", err)
	}
	var edges []edgeInput
	if err := json.Unmarshal(raw, &edges); err != nil {
		return nil, fmt.Errorf("parse edges file: %w", err)
	}
	g := graph.New()
	for _, e := range edges {
		kind := e.Kind
		if kind == "" {
			kind = types.EdgeImports
		}
		g.AddEdge(e.From, e.To, kind)
	}
	return g, nil
}

func graphCommand() *cli.Command {
	edgesFlag := &cli.StringFlag{
		Name:     "edges-file",
		Usage:    "JSON adjacency-list file (external parser output, §6)",
		Required: true,
	}
	jsonFlag := &cli.BoolFlag{Name: "json", Usage: "Output as JSON"}

	withGraph := func(fn func(c *cli.Context, g *graph.Graph) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			g, err := loadGraphFromFile(c.String("edges-file"))
			if err != nil {
				return err
			}
			return fn(c, g)
		}
	}

	return &cli.Command{
		Name:  "graph",
		Usage: "Query the dependency graph: dependencies, dependents, impact, cycles, hubs, orphans, stats",
		Subcommands: []*cli.Command{
			{
				Name:      "dependencies",
				Usage:     "List the files a given file depends on",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{edgesFlag, jsonFlag, &cli.IntFlag{Name: "depth", Value: 1, Usage: "BFS depth (1 = direct only)"}},
				Action: withGraph(func(c *cli.Context, g *graph.Graph) error {
					path := c.Args().First()
					var out []string
					if c.Int("depth") <= 1 {
						out = g.DependenciesOf(path)
					} else {
						out = g.DependenciesOfDepth(path, c.Int("depth"))
					}
					return printStrings(c, out)
				}),
			},
			{
				Name:      "dependents",
				Usage:     "List the files that depend on a given file",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{edgesFlag, jsonFlag, &cli.IntFlag{Name: "depth", Value: 1, Usage: "BFS depth (1 = direct only)"}},
				Action: withGraph(func(c *cli.Context, g *graph.Graph) error {
					path := c.Args().First()
					var out []string
					if c.Int("depth") <= 1 {
						out = g.DependentsOf(path)
					} else {
						out = g.DependentsOfDepth(path, c.Int("depth"))
					}
					return printStrings(c, out)
				}),
			},
			{
				Name:      "impact",
				Usage:     "Estimate the blast radius of changing a file",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{edgesFlag, jsonFlag, &cli.IntFlag{Name: "max-depth", Value: 5}},
				Action: withGraph(func(c *cli.Context, g *graph.Graph) error {
					entries := g.ImpactOf(c.Args().First(), c.Int("max-depth"))
					if c.Bool("json") {
						return printJSON(entries)
					}
					for _, e := range entries {
						fmt.Printf("%s (distance %d)\n", e.Path, e.Distance)
					}
					return nil
				}),
			},
			{
				Name:   "cycles",
				Usage:  "Find circular dependencies",
				Flags:  []cli.Flag{edgesFlag, jsonFlag},
				Action: withGraph(func(c *cli.Context, g *graph.Graph) error {
					cycles := g.FindCycles()
					if c.Bool("json") {
						return printJSON(cycles)
					}
					for _, cyc := range cycles {
						fmt.Println(joinArrow(cyc.Path))
					}
					return nil
				}),
			},
			{
				Name:   "hubs",
				Usage:  "Rank files by combined in+out degree",
				Flags:  []cli.Flag{edgesFlag, jsonFlag, &cli.IntFlag{Name: "limit", Value: 10}},
				Action: withGraph(func(c *cli.Context, g *graph.Graph) error {
					hubs := g.HubFiles(c.Int("limit"))
					if c.Bool("json") {
						return printJSON(hubs)
					}
					for _, h := range hubs {
						fmt.Printf("%s  degree=%d\n", h.Path, h.Degree)
					}
					return nil
				}),
			},
			{
				Name:   "orphans",
				Usage:  "List files with no incoming or outgoing edges",
				Flags:  []cli.Flag{edgesFlag, jsonFlag},
				Action: withGraph(func(c *cli.Context, g *graph.Graph) error {
					return printStrings(c, g.OrphanFiles())
				}),
			},
			{
				Name:   "stats",
				Usage:  "Summary statistics: node/edge/cycle/hub/orphan counts",
				Flags:  []cli.Flag{edgesFlag, jsonFlag, &cli.IntFlag{Name: "hub-threshold", Value: 10}},
				Action: withGraph(func(c *cli.Context, g *graph.Graph) error {
					stats := g.Stats(c.Int("hub-threshold"))
					if c.Bool("json") {
						return printJSON(stats)
					}
					fmt.Printf("nodes=%d edges=%d cycles=%d hubs=%d orphans=%d\n",
						stats.NodeCount, stats.EdgeCount, stats.CycleCount, stats.HubCount, stats.OrphanCount)
					return nil
				}),
			},
		},
	}
}

func printStrings(c *cli.Context, paths []string) error {
	if c.Bool("json") {
		return printJSON(paths)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

func joinArrow(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += " -> "
		}
		out += p
	}
	return out
}

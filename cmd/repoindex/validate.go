package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/repoindex/internal/types"
	"github.com/standardbeagle/repoindex/internal/validator"
)

// architectureModel is the persisted layout's architecture.json shape
// (§6): a list of bounded contexts plus an optional naming-convention
// pattern applied to every graph node path.
type architectureModel struct {
	Contexts      []validator.BoundedContext `json:"contexts"`
	NamingPattern string                     `json:"namingPattern,omitempty"`
}

func loadArchitectureModel(path string) (architectureModel, error) {
	var model architectureModel
	raw, err := os.ReadFile(path)
	if err != nil {
		return model, fmt.Errorf("read architecture model: %w", err)
	}
	if err := json.Unmarshal(raw, &model); err != nil {
		return model, fmt.Errorf("parse architecture model: %w", err)
	}
	return model, nil
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check the dependency graph against a declarative architecture model",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "edges-file", Required: true, Usage: "JSON adjacency-list file (external parser output, §6)"},
			&cli.StringFlag{Name: "architecture-file", Usage: "JSON bounded-context model; defaults to .repoindex/architecture.json"},
			&cli.BoolFlag{Name: "json", Usage: "Output RuleViolations as JSON"},
			&cli.BoolFlag{Name: "no-circular-check", Usage: "Skip the built-in no-circular-deps rule"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}

			g, err := loadGraphFromFile(c.String("edges-file"))
			if err != nil {
				return err
			}

			archPath := c.String("architecture-file")
			if archPath == "" {
				archPath = filepath.Join(cfg.Project.Root, defaultIndexDir, "architecture.json")
			}
			var model architectureModel
			if _, statErr := os.Stat(archPath); statErr == nil {
				model, err = loadArchitectureModel(archPath)
				if err != nil {
					return err
				}
			}

			vc := &validator.ValidationContext{Graph: g, Contexts: model.Contexts}

			var rules []validator.Rule
			if !c.Bool("no-circular-check") {
				rules = append(rules, validator.NewNoCircularDepsRule())
			}
			if len(model.Contexts) > 0 {
				rules = append(rules, validator.NewProhibitedDependencyRule())
			}
			if model.NamingPattern != "" {
				namingRule, err := validator.NewNamingRule("naming-convention", model.NamingPattern, types.SeverityWarning)
				if err != nil {
					return err
				}
				rules = append(rules, namingRule)
			}

			violations := validator.Validate(vc, rules)

			if c.Bool("json") {
				return printJSON(violations)
			}
			if len(violations) == 0 {
				fmt.Println("no violations found")
				return nil
			}
			for _, v := range violations {
				fmt.Printf("[%s] %s: %s\n", v.Severity, v.Rule, v.Message)
				if v.Suggestion != "" {
					fmt.Printf("    suggestion: %s\n", v.Suggestion)
				}
			}
			return nil
		},
	}
}

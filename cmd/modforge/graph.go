// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/modforge/modforge/internal/dag"
	"github.com/modforge/modforge/internal/issue"
	"github.com/modforge/modforge/pkg/diag"
	"github.com/modforge/modforge/pkg/metadata"
	"github.com/modforge/modforge/pkg/resolver"
)

// newGraphCommand creates the `modforge graph` command.
func newGraphCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "graph [dir]",
		Short: "Show the resolved dependency tree and install order",
		Long: `Resolve the dependencies of the module in dir (default: the current
directory) without installing, then print the dependency tree and an order
in which every release follows the releases it depends on.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			chain := &diag.Chain{}
			root, err := loadDescriptor(dirArg(args), chain)
			if err != nil {
				return err
			}
			sess, err := app.newSession(ctx, false)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			res, err := sess.resolver.Plan(ctx, root)
			if err != nil {
				return issue.WrapWithContext(err, "resolve dependencies", dirArg(args))
			}
			chain.Merge(res.Diagnostics)
			renderDiagnostics(app.stderr, chain, verboseFromContext(ctx))
			renderTree(app.stdout, res)
			renderOrder(app.stdout, res)
			return nil
		},
	}
}

// installOrder ranks the releases of res so that each follows the resolved
// releases it depends on. Releases on a cycle keep resolution order and are
// also returned in cyclic.
func installOrder(res *resolver.Result) (order []resolver.Release, cyclic []metadata.ModuleName) {
	byName := make(map[metadata.ModuleName]resolver.Release, len(res.Releases))
	g := dag.New[metadata.ModuleName]()
	for _, rel := range res.Releases {
		byName[rel.Name] = rel
		g.Add(rel.Name)
	}
	for _, rel := range res.Releases {
		if rel.Metadata == nil {
			continue
		}
		for _, d := range rel.Metadata.Dependencies {
			if _, ok := byName[d.Name]; ok {
				g.DependsOn(rel.Name, d.Name)
			}
		}
	}

	names, cyclic := g.Order()
	order = make([]resolver.Release, len(names))
	for i, n := range names {
		order[i] = byName[n]
	}
	return order, cyclic
}

func renderTree(w io.Writer, res *resolver.Result) {
	children := map[metadata.ModuleName][]resolver.Release{}
	for _, rel := range res.Releases {
		children[rel.RequiredBy] = append(children[rel.RequiredBy], rel)
	}

	fmt.Fprintln(w, TitleStyle.Render("Dependency tree"))
	rootLabel := res.Root.Name.Slash()
	if res.Root.Version != nil {
		rootLabel += " " + res.Root.Version.String()
	}
	fmt.Fprintln(w, CmdStyle.Render(rootLabel))

	shown := map[metadata.ModuleName]bool{res.Root.Name: true}
	var walk func(owner metadata.ModuleName, prefix string)
	walk = func(owner metadata.ModuleName, prefix string) {
		kids := children[owner]
		for i, rel := range kids {
			branch, next := "├── ", "│   "
			if i == len(kids)-1 {
				branch, next = "└── ", "    "
			}
			line := prefix + branch + CmdStyle.Render(rel.Name.Slash()) + " " + rel.Version.String()
			if rel.RangeText != "" {
				line += SubtitleStyle.Render(" (" + rel.RangeText + ")")
			}
			fmt.Fprintln(w, line)
			if !shown[rel.Name] {
				shown[rel.Name] = true
				walk(rel.Name, prefix+next)
			}
		}
	}
	walk(res.Root.Name, "")
}

func renderOrder(w io.Writer, res *resolver.Result) {
	if len(res.Releases) == 0 {
		return
	}
	order, cyclic := installOrder(res)
	onCycle := make(map[metadata.ModuleName]bool, len(cyclic))
	for _, n := range cyclic {
		onCycle[n] = true
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("Install order"))
	for i, rel := range order {
		line := fmt.Sprintf("  %d. %s %s", i+1, CmdStyle.Render(rel.Name.Slash()), rel.Version.String())
		if onCycle[rel.Name] {
			line += WarningStyle.Render(" (cycle)")
		}
		fmt.Fprintln(w, line)
	}
}

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/milmillin/copyem/inventory"
	"github.com/milmillin/copyem/schedule"
)

// PlanCommand returns the plan command: a dry run that builds the inventory
// and schedule and prints the summary without moving any data.
func PlanCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Show what a transfer would do without running it",
		ArgsUsage: "SRC_DIR REMOTE DST_DIR",
		Flags:     transferFlags(),
		Action:    planAction,
	}
}

func planAction(c *cli.Context) error {
	s, err := resolveSettings(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("copyem: %v", err), exitFatal)
	}
	if info, err := os.Stat(s.sourceDir); err != nil || !info.IsDir() {
		return cli.Exit(fmt.Sprintf("copyem: source directory does not exist: %s", s.sourceDir), exitFatal)
	}

	builder := &inventory.Builder{
		Source:  s.sourceDir,
		Include: s.include,
		Remote:  &inventory.SSHLister{Remote: s.remote, DestDir: s.destDir},
	}
	manifest, err := builder.Build(context.Background())
	if err != nil {
		return cli.Exit(fmt.Sprintf("copyem: %v", err), exitFatal)
	}

	plans := schedule.Partition(manifest, s.parallel, s.costModel())
	printSummary(os.Stdout, s, manifest, plans)

	if len(manifest) == 0 {
		fmt.Println("Nothing to transfer.")
	}
	return nil
}

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/priyxstudio/coreutils/internal/report"
	"github.com/priyxstudio/coreutils/internal/sysx"
)

var rmdirArgs struct {
	IgnoreNonEmpty bool
	Parents        bool
	Verbose        bool
}

func newRmdirCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "rmdir [flags] directory...",
		Short: "Remove empty directories.",
		Args:  cobra.MinimumNArgs(1),
		Run:   rmdirCmdRun,
	}

	f := command.Flags()
	f.BoolVar(&rmdirArgs.IgnoreNonEmpty, "ignore-fail-on-non-empty", false, "ignore each failure to remove a non-empty directory")
	f.BoolVarP(&rmdirArgs.Parents, "parents", "p", false, "remove directory and its ancestors")
	f.BoolVarP(&rmdirArgs.Verbose, "verbose", "v", false, "output a diagnostic for every directory processed")

	return command
}

func rmdirCmdRun(cmd *cobra.Command, args []string) {
	rep := report.New("rmdir")
	sysx.Rmdir(args, sysx.RmdirOptions{
		IgnoreNonEmpty: rmdirArgs.IgnoreNonEmpty,
		Parents:        rmdirArgs.Parents,
		Verbose:        rmdirArgs.Verbose,
	}, rep, os.Stdout)
	os.Exit(rep.Status())
}

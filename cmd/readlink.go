package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/priyxstudio/coreutils/internal/report"
	"github.com/priyxstudio/coreutils/internal/sysx"
)

var readlinkArgs struct {
	Canonicalize bool
	Existing     bool
	Missing      bool
	NoNewline    bool
	Quiet        bool
	Silent       bool
	Verbose      bool
	Zero         bool
}

func newReadlinkCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "readlink [flags] file...",
		Short: "Print resolved symbolic links or canonical file names.",
		Args:  cobra.MinimumNArgs(1),
		Run:   readlinkCmdRun,
	}

	f := command.Flags()
	f.BoolVarP(&readlinkArgs.Canonicalize, "canonicalize", "f", false, "canonicalize; all but the last component must exist")
	f.BoolVarP(&readlinkArgs.Existing, "canonicalize-existing", "e", false, "canonicalize; every component must exist")
	f.BoolVarP(&readlinkArgs.Missing, "canonicalize-missing", "m", false, "canonicalize without any existence requirement")
	f.BoolVarP(&readlinkArgs.NoNewline, "no-newline", "n", false, "do not output the trailing delimiter")
	f.BoolVarP(&readlinkArgs.Quiet, "quiet", "q", false, "suppress most error messages")
	f.BoolVarP(&readlinkArgs.Silent, "silent", "s", false, "suppress most error messages")
	f.BoolVarP(&readlinkArgs.Verbose, "verbose", "v", false, "report error messages")
	f.BoolVarP(&readlinkArgs.Zero, "zero", "z", false, "end each output line with NUL, not newline")

	return command
}

func readlinkCmdRun(cmd *cobra.Command, args []string) {
	rep := report.New("readlink")

	noNewline := readlinkArgs.NoNewline
	if noNewline && len(args) > 1 && !readlinkArgs.Zero {
		// A warning only, the exit status is unaffected.
		fmt.Fprintln(os.Stderr, "readlink: ignoring --no-newline with multiple arguments")
		noNewline = false
	}

	quiet := (readlinkArgs.Quiet || readlinkArgs.Silent) && !readlinkArgs.Verbose

	for _, file := range args {
		target, err := readlinkResolve(file)
		if err != nil {
			if !quiet {
				rep.Errorf("%s: %v", file, err)
			}
			rep.Latch()
			continue
		}
		fmt.Fprint(os.Stdout, target)
		if !noNewline {
			if readlinkArgs.Zero {
				fmt.Fprint(os.Stdout, "\x00")
			} else {
				fmt.Fprintln(os.Stdout)
			}
		}
	}
	os.Exit(rep.Status())
}

func readlinkResolve(file string) (string, error) {
	switch {
	case readlinkArgs.Existing:
		return sysx.Canonicalize(file, sysx.MissingExisting)
	case readlinkArgs.Missing:
		return sysx.Canonicalize(file, sysx.MissingAll)
	case readlinkArgs.Canonicalize:
		return sysx.Canonicalize(file, sysx.MissingNormal)
	default:
		return os.Readlink(file)
	}
}

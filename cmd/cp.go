package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/priyxstudio/coreutils/config"
	"github.com/priyxstudio/coreutils/internal/copier"
	"github.com/priyxstudio/coreutils/internal/report"
)

var cpArgs struct {
	Recursive     bool
	RecursiveCaps bool
	Verbose       bool
	DerefAll      bool
	DerefArgs     bool
	NoDeref       bool
	Parents       bool
	Archive       bool
	PreserveAll   bool
	PreserveList  []string
	TargetDir     string
	NoTargetDir   bool
}

func newCpCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "cp [flags] source... dest",
		Short: "Copy files and directories.",
		Args:  cobra.MinimumNArgs(1),
		Run:   cpCmdRun,
	}

	f := command.Flags()
	f.BoolVarP(&cpArgs.Recursive, "recursive", "r", false, "copy directories recursively")
	f.BoolVarP(&cpArgs.RecursiveCaps, "R", "R", false, "copy directories recursively")
	_ = f.MarkHidden("R")
	f.BoolVarP(&cpArgs.Verbose, "verbose", "v", false, "explain what is being done")
	f.BoolVarP(&cpArgs.DerefAll, "dereference", "L", false, "always follow symbolic links in source")
	f.BoolVarP(&cpArgs.DerefArgs, "dereference-args", "H", false, "follow command line symbolic links in source")
	f.BoolVarP(&cpArgs.NoDeref, "no-dereference", "P", false, "never follow symbolic links in source")
	f.BoolVar(&cpArgs.Parents, "parents", false, "use full source file name under directory")
	f.BoolVarP(&cpArgs.Archive, "archive", "a", false, "same as -RP --preserve=all")
	f.BoolVarP(&cpArgs.PreserveAll, "p", "p", false, "same as --preserve=mode,ownership,timestamps")
	_ = f.MarkHidden("p")
	f.StringSliceVar(&cpArgs.PreserveList, "preserve", nil, "preserve the specified attributes")
	f.StringVarP(&cpArgs.TargetDir, "target-directory", "t", "", "copy all source arguments into this directory")
	f.BoolVarP(&cpArgs.NoTargetDir, "no-target-directory", "T", false, "treat dest as a normal file")

	return command
}

func cpCmdRun(cmd *cobra.Command, args []string) {
	opts, err := cpOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cp: %v\n", err)
		os.Exit(1)
	}

	sources, target, intoDir, err := cpOperands(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cp: %v\n", err)
		os.Exit(1)
	}

	rep := report.New("cp")
	c := copier.New(opts, rep, os.Stdout)
	for _, source := range sources {
		dest := target
		if intoDir {
			dest, err = c.Dest(source, target)
			if err != nil {
				rep.Error(err)
				continue
			}
		}
		if err := c.Copy(source, dest); err != nil {
			rep.Error(err)
		}
	}
	os.Exit(rep.Status())
}

// Decides which operands are sources and which one is the destination, and
// whether sources are copied into the destination or onto it.
func cpOperands(args []string) (sources []string, target string, intoDir bool, err error) {
	if cpArgs.TargetDir != "" {
		if cpArgs.NoTargetDir {
			return nil, "", false, fmt.Errorf("cannot combine --target-directory (-t) and --no-target-directory (-T)")
		}
		st, err := os.Stat(cpArgs.TargetDir)
		if err != nil || !st.IsDir() {
			return nil, "", false, fmt.Errorf("target: %q is not a directory", cpArgs.TargetDir)
		}
		return args, cpArgs.TargetDir, true, nil
	}
	if len(args) < 2 {
		return nil, "", false, fmt.Errorf("missing destination file operand after %q", args[0])
	}
	sources, target = args[:len(args)-1], args[len(args)-1]
	if cpArgs.NoTargetDir {
		if len(sources) > 1 {
			return nil, "", false, fmt.Errorf("extra operand %q", sources[1])
		}
		return sources, target, false, nil
	}
	if st, err := os.Stat(target); err == nil && st.IsDir() && !cpArgs.Parents {
		return sources, target, true, nil
	}
	if cpArgs.Parents {
		return sources, target, false, nil
	}
	if len(sources) > 1 {
		return nil, "", false, fmt.Errorf("target %q is not a directory", target)
	}
	// Copying a single source onto a destination path that resembles a
	// directory still has to fail the way a trailing slash demands.
	if strings.HasSuffix(target, string(filepath.Separator)) {
		if st, err := os.Stat(target); err != nil || !st.IsDir() {
			return nil, "", false, fmt.Errorf("target %q is not a directory", target)
		}
	}
	return sources, target, false, nil
}

func cpOptions() (copier.Options, error) {
	opts := copier.Options{
		Recursive: cpArgs.Recursive || cpArgs.RecursiveCaps || cpArgs.Archive,
		Parents:   cpArgs.Parents,
		Verbose:   cpArgs.Verbose,
		Umask:     config.Get().Umask,
	}

	switch {
	case cpArgs.NoDeref || cpArgs.Archive:
		opts.Deref = copier.DerefNone
	case cpArgs.DerefAll:
		opts.Deref = copier.DerefAll
	case cpArgs.DerefArgs:
		opts.Deref = copier.DerefArgs
	case opts.Recursive:
		// Recursive copies do not follow symlinks unless told to.
		opts.Deref = copier.DerefNone
	default:
		opts.Deref = copier.DerefAll
	}

	list := cpArgs.PreserveList
	if cpArgs.PreserveAll {
		list = append(list, "mode", "ownership", "timestamps")
	}
	if cpArgs.Archive {
		list = append(list, "all")
	}
	for _, attr := range list {
		switch attr {
		case "mode":
			opts.Preserve.Mode = true
		case "ownership":
			opts.Preserve.Ownership = true
		case "timestamps":
			opts.Preserve.Timestamps = true
		case "links":
			opts.Preserve.Links = true
		case "all":
			opts.Preserve = copier.Preserve{Mode: true, Ownership: true, Timestamps: true, Links: true}
		default:
			return opts, fmt.Errorf("invalid attribute %q", attr)
		}
	}

	return opts, nil
}

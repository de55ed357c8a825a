package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/priyxstudio/coreutils/config"
	"github.com/priyxstudio/coreutils/internal/chmodder"
	"github.com/priyxstudio/coreutils/internal/mode"
	"github.com/priyxstudio/coreutils/internal/report"
	"github.com/priyxstudio/coreutils/internal/ufs"
	"github.com/priyxstudio/coreutils/internal/walk"
)

func newChmodCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "chmod [flags] mode[,mode]... file...",
		Short: "Change the mode of each file.",
		// Mode operands such as -w or -rx are indistinguishable from flags,
		// so the arguments are parsed by hand after the modes are pulled out.
		DisableFlagParsing: true,
		Run:                chmodCmdRun,
	}
	return command
}

// A leading dash followed by a permission or octal character marks a mode
// operand rather than a flag.
func isNegativeMode(arg string) bool {
	if len(arg) < 2 || arg[0] != '-' {
		return false
	}
	return strings.ContainsRune("rwxXstugo01234567", rune(arg[1]))
}

func chmodCmdRun(cmd *cobra.Command, args []string) {
	var modes []string
	rest := make([]string, 0, len(args))
	terminated := false
	for _, arg := range args {
		switch {
		case arg == "--" && !terminated:
			terminated = true
			rest = append(rest, arg)
		case !terminated && isNegativeMode(arg):
			modes = append(modes, arg)
		default:
			rest = append(rest, arg)
		}
	}

	var chmodArgs struct {
		Changes      bool
		Quiet        bool
		Verbose      bool
		PreserveRoot bool
		Recursive    bool
		Reference    string
		Dereference  bool
		FollowArgs   bool
		FollowAll    bool
		FollowNone   bool
	}

	f := flag.NewFlagSet("chmod", flag.ContinueOnError)
	f.BoolVarP(&chmodArgs.Changes, "changes", "c", false, "like verbose but report only when a change is made")
	f.BoolVarP(&chmodArgs.Quiet, "silent", "f", false, "suppress most error messages")
	f.BoolVarP(&chmodArgs.Verbose, "verbose", "v", false, "output a diagnostic for every file processed")
	f.BoolVar(&chmodArgs.PreserveRoot, "preserve-root", false, "fail to operate recursively on '/'")
	noPreserveRoot := f.Bool("no-preserve-root", false, "do not treat '/' specially (the default)")
	f.StringVar(&chmodArgs.Reference, "reference", "", "use RFILE's mode instead of MODE values")
	f.BoolVar(&chmodArgs.Dereference, "dereference", true, "affect the referent of each symbolic link, rather than the symbolic link itself")
	noDereference := f.Bool("no-dereference", false, "affect each symbolic link, rather than the referent")
	f.BoolVarP(&chmodArgs.Recursive, "recursive", "R", false, "change files and directories recursively")
	f.BoolVarP(&chmodArgs.FollowArgs, "H", "H", false, "if a command line argument is a symbolic link to a directory, traverse it")
	f.BoolVarP(&chmodArgs.FollowAll, "L", "L", false, "traverse every symbolic link to a directory encountered")
	f.BoolVarP(&chmodArgs.FollowNone, "P", "P", false, "do not traverse any symbolic links (the default)")
	help := f.BoolP("help", "h", false, "help for chmod")

	if err := f.Parse(rest); err != nil {
		fmt.Fprintf(os.Stderr, "chmod: %v\n", err)
		os.Exit(1)
	}
	if *help {
		_ = cmd.Help()
		return
	}

	operands := f.Args()
	opts := chmodder.Options{
		Changes:      chmodArgs.Changes,
		Quiet:        chmodArgs.Quiet,
		Verbose:      chmodArgs.Verbose,
		PreserveRoot: chmodArgs.PreserveRoot && !*noPreserveRoot,
		Recursive:    chmodArgs.Recursive,
		Dereference:  chmodArgs.Dereference && !*noDereference,
		Umask:        config.Get().Umask,
	}
	// Command-line symlinks are followed by default, like -H; -P turns
	// the traversal off entirely.
	switch {
	case chmodArgs.FollowAll:
		opts.Follow = walk.FollowAll
	case chmodArgs.FollowNone:
		opts.Follow = walk.FollowNone
	default:
		opts.Follow = walk.FollowTop
	}

	if chmodArgs.Reference != "" {
		// ufs.Stat keeps the full 0o7777, so a setgid or sticky bit on
		// the reference file carries over.
		st, err := ufs.Stat(chmodArgs.Reference)
		if err != nil {
			fmt.Fprintf(os.Stderr, "chmod: failed to get attributes of %q: %v\n", chmodArgs.Reference, err)
			os.Exit(1)
		}
		m := st.Perm()
		opts.RefMode = &m
	} else {
		if len(modes) == 0 {
			if len(operands) == 0 {
				fmt.Fprintln(os.Stderr, "chmod: missing operand")
				os.Exit(1)
			}
			modes, operands = operands[:1], operands[1:]
		}
		set, err := mode.Parse(strings.Join(modes, ","))
		if err != nil {
			fmt.Fprintf(os.Stderr, "chmod: %v\n", err)
			os.Exit(1)
		}
		opts.Modes = set
	}

	if len(operands) == 0 {
		fmt.Fprintf(os.Stderr, "chmod: missing operand after %q\n", strings.Join(modes, ","))
		os.Exit(1)
	}

	rep := report.New("chmod")
	if err := chmodder.New(opts, rep, os.Stdout).Run(operands); err != nil {
		rep.Error(err)
	}
	os.Exit(rep.Status())
}

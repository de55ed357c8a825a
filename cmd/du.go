package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/priyxstudio/coreutils/config"
	"github.com/priyxstudio/coreutils/internal/du"
	"github.com/priyxstudio/coreutils/internal/report"
)

var duArgs struct {
	All            bool
	ApparentSize   bool
	Bytes          bool
	BlockSize      string
	KibiBlocks     bool
	MebiBlocks     bool
	HumanBinary    bool
	HumanDecimal   bool
	Inodes         bool
	CountLinks     bool
	DerefAll       bool
	DerefArgs      bool
	DerefArgsAlias bool
	NoDeref        bool
	MaxDepth       int
	Summarize      bool
	Total          bool
	SeparateDirs   bool
	Threshold      int64
	OneFileSystem  bool
	Excludes       []string
	ExcludeFrom    []string
	Files0From     string
	NulEnding      bool
}

func newDuCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "du [flags] [file]...",
		Short: "Estimate file space usage.",
		Run:   duCmdRun,
	}

	f := command.Flags()
	// Registered without a shorthand so that -h is free for human readable
	// sizes the way du expects.
	f.Bool("help", false, "help for du")
	f.BoolVarP(&duArgs.All, "all", "a", false, "write counts for all files, not just directories")
	f.BoolVar(&duArgs.ApparentSize, "apparent-size", false, "print apparent sizes rather than device usage")
	f.BoolVarP(&duArgs.Bytes, "bytes", "b", false, "equivalent to --apparent-size --block-size=1")
	f.StringVarP(&duArgs.BlockSize, "block-size", "B", "", "scale sizes by SIZE before printing them")
	f.BoolVarP(&duArgs.KibiBlocks, "kilo", "k", false, "like --block-size=1K")
	f.BoolVarP(&duArgs.MebiBlocks, "mega", "m", false, "like --block-size=1M")
	f.BoolVarP(&duArgs.HumanBinary, "human-readable", "h", false, "print sizes in human readable format (e.g. 1K 234M 2G)")
	f.BoolVar(&duArgs.HumanDecimal, "si", false, "like -h, but use powers of 1000 not 1024")
	f.BoolVar(&duArgs.Inodes, "inodes", false, "list inode usage information instead of block usage")
	f.BoolVarP(&duArgs.CountLinks, "count-links", "l", false, "count sizes many times if hard linked")
	f.BoolVarP(&duArgs.DerefAll, "dereference", "L", false, "dereference all symbolic links")
	f.BoolVarP(&duArgs.DerefArgs, "dereference-args", "D", false, "dereference only symlinks that are listed on the command line")
	f.BoolVarP(&duArgs.DerefArgsAlias, "H", "H", false, "equivalent to --dereference-args (-D)")
	_ = f.MarkHidden("H")
	f.BoolVarP(&duArgs.NoDeref, "no-dereference", "P", false, "don't follow any symbolic links (this is the default)")
	f.IntVarP(&duArgs.MaxDepth, "max-depth", "d", -1, "print the total for a directory only if it is N or fewer levels below the command line argument")
	f.BoolVarP(&duArgs.Summarize, "summarize", "s", false, "display only a total for each argument")
	f.BoolVarP(&duArgs.Total, "total", "c", false, "produce a grand total")
	f.BoolVarP(&duArgs.SeparateDirs, "separate-dirs", "S", false, "for directories, do not include size of subdirectories")
	f.Int64VarP(&duArgs.Threshold, "threshold", "t", 0, "exclude entries smaller than SIZE if positive, or entries greater than SIZE if negative")
	f.BoolVarP(&duArgs.OneFileSystem, "one-file-system", "x", false, "skip directories on different file systems")
	f.StringSliceVar(&duArgs.Excludes, "exclude", nil, "exclude files that match PATTERN")
	f.StringSliceVarP(&duArgs.ExcludeFrom, "exclude-from", "X", nil, "exclude files that match any pattern in FILE")
	f.StringVar(&duArgs.Files0From, "files0-from", "", "summarize device usage of the NUL-terminated file names specified in file F")
	f.BoolVarP(&duArgs.NulEnding, "null", "0", false, "end each output line with NUL, not newline")

	return command
}

func duCmdRun(cmd *cobra.Command, args []string) {
	opts, err := duOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "du: %v\n", err)
		os.Exit(1)
	}

	roots := args
	if duArgs.Files0From != "" {
		if len(args) > 0 {
			fmt.Fprintln(os.Stderr, "du: file operands cannot be combined with --files0-from")
			os.Exit(1)
		}
		roots, err = du.ReadRoots(duArgs.Files0From)
		if err != nil {
			fmt.Fprintf(os.Stderr, "du: %v\n", err)
			os.Exit(1)
		}
	}
	if len(roots) == 0 {
		roots = []string{"."}
	}
	roots = du.DedupRoots(roots, opts.CountLinks, opts.Deref != du.DerefNone)

	rep := report.New("du")
	if err := du.New(opts, rep, os.Stdout).Run(roots); err != nil {
		rep.Error(err)
	}
	os.Exit(rep.Status())
}

// excludePatterns merges the configured defaults, --exclude values and
// the contents of every --exclude-from file.
func excludePatterns() ([]string, error) {
	patterns := append([]string{}, config.Get().Traversal.DefaultExcludes...)
	patterns = append(patterns, duArgs.Excludes...)
	for _, name := range duArgs.ExcludeFrom {
		var data []byte
		var err error
		if name == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(name)
		}
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				patterns = append(patterns, line)
			}
		}
	}
	return patterns, nil
}

func duOptions() (du.Options, error) {
	opts := du.Options{
		All:                 duArgs.All,
		ApparentSize:        duArgs.ApparentSize || duArgs.Bytes,
		CountLinks:          duArgs.CountLinks,
		Inodes:              duArgs.Inodes,
		MaxDepth:            duArgs.MaxDepth,
		NulEnding:           duArgs.NulEnding,
		OneFileSystem:       duArgs.OneFileSystem,
		SeparateDirs:        duArgs.SeparateDirs,
		Summarize:           duArgs.Summarize,
		Threshold:           duArgs.Threshold,
		Total:               duArgs.Total,
		UnreadableDirBlocks: config.Get().Traversal.UnreadableDirBlocks,
	}

	excludes, err := excludePatterns()
	if err != nil {
		return opts, err
	}
	opts.Excludes = excludes

	switch {
	case duArgs.DerefAll:
		opts.Deref = du.DerefAll
	case duArgs.DerefArgs || duArgs.DerefArgsAlias:
		opts.Deref = du.DerefArgs
	default:
		opts.Deref = du.DerefNone
	}

	switch {
	case duArgs.HumanBinary:
		opts.Format = du.FormatHumanBinary
	case duArgs.HumanDecimal:
		opts.Format = du.FormatHumanDecimal
	default:
		opts.Format = du.FormatBlocks
	}

	arg := duArgs.BlockSize
	switch {
	case duArgs.Bytes:
		arg = "1"
	case duArgs.KibiBlocks:
		arg = "1K"
	case duArgs.MebiBlocks:
		arg = "1M"
	}
	size, err := du.BlockSizeFromEnv(arg)
	if err != nil {
		return opts, err
	}
	opts.BlockSize = size

	return opts, opts.Validate()
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/priyxstudio/coreutils/internal/sysx"
)

func newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the user name for the current effective user ID.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			name, err := sysx.Whoami()
			if err != nil {
				fmt.Fprintf(os.Stderr, "whoami: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(name)
		},
	}
}

func newLognameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logname",
		Short: "Print the name of the current user's login session.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			name, err := sysx.Logname()
			if err != nil {
				fmt.Fprintf(os.Stderr, "logname: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(name)
		},
	}
}

func newHostidCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hostid",
		Short: "Print the numeric identifier for the current host.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(sysx.FormatHostid(sysx.Hostid()))
		},
	}
}

package main

import (
	"os"
	"path/filepath"

	"github.com/priyxstudio/coreutils/cmd"
)

// Utilities the binary answers to when invoked through a link named after
// one of them.
var tools = map[string]struct{}{
	"du":       {},
	"cp":       {},
	"chmod":    {},
	"readlink": {},
	"rmdir":    {},
	"whoami":   {},
	"logname":  {},
	"hostid":   {},
}

func main() {
	if name := filepath.Base(os.Args[0]); name != "" {
		if _, ok := tools[name]; ok {
			os.Args = append([]string{os.Args[0], name}, os.Args[1:]...)
		}
	}
	cmd.Execute()
}

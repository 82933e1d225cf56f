package cli

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

func Help(program string, fs *pflag.FlagSet, stdout io.Writer) {
	Version(stdout)
	fmt.Fprintf(stdout, "Usage: \"%s [-Options...] FileName\"\n", program)
	fmt.Fprintln(stdout, "")
	fmt.Fprintln(stdout, "Computes the lowest AV1 level an IVF stream conforms to and optionally")
	fmt.Fprintln(stdout, "rewrites seq_level_idx in its sequence headers. Without --output or")
	fmt.Fprintln(stdout, "--inplace the file is only analyzed.")
	fmt.Fprintln(stdout, "")
	fmt.Fprintln(stdout, "Options:")
	fmt.Fprint(stdout, fs.FlagUsages())
	fmt.Fprintln(stdout, "")
	fmt.Fprintln(stdout, "Commands:")
	fmt.Fprintln(stdout, "completion           Generate the autocompletion script for the specified shell")
	fmt.Fprintln(stdout, "help                 Help about any command")
	fmt.Fprintln(stdout, "version              Print go-av1level version information")
	fmt.Fprintln(stdout, "update               Update av1level to latest version (release builds only)")
}

func HelpNothing(program string, stdout io.Writer) {
	fmt.Fprintf(stdout, "Usage: \"%s [-Options...] FileName\"\n", program)
	fmt.Fprintf(stdout, "\"%s --help\" for displaying more information\n", program)
}

func Usage(program string, stdout io.Writer) int {
	HelpNothing(program, stdout)
	return exitError
}

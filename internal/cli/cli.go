package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/autobrr/go-av1level/internal/av1level"
	"github.com/autobrr/go-av1level/internal/errs"
	"github.com/autobrr/go-av1level/internal/level"
	"github.com/autobrr/go-av1level/internal/patch"
)

const (
	exitOK    = 0
	exitError = 1
)

// errUsage is returned once the short usage has already been printed.
var errUsage = errors.New("usage")

// flagError marks failures while parsing the command line.
type flagError struct {
	err error
}

func (e flagError) Error() string { return e.err.Error() }

type Options struct {
	Input       string
	Output      string
	InPlace     bool
	ForcedLevel string
	Verbose     bool
	Format      string
}

// NewCommand builds the root command. It analyzes the input named by
// --input or the single positional argument, then applies the requested
// output mode.
func NewCommand(program string, stdout, stderr io.Writer) *cobra.Command {
	opts := Options{}
	var showVersion bool

	cmd := &cobra.Command{
		Use:           program + " [options] <file.ivf>",
		Short:         "Compute and rewrite the AV1 level of an IVF stream.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 1 || (len(args) == 1 && opts.Input != "") {
				return errs.Newf(errs.InvalidArguments, "options", "unexpected arguments: %s", strings.Join(args, " "))
			}
			return nil
		},
		RunE: func(c *cobra.Command, args []string) error {
			if showVersion {
				Version(c.OutOrStdout())
				return nil
			}
			if opts.Input == "" {
				if len(args) == 0 {
					Usage(program, c.OutOrStdout())
					return errUsage
				}
				opts.Input = args[0]
			}
			output, err := runCore(opts, c.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprint(c.OutOrStdout(), output)
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fs := cmd.Flags()
	fs.SortFlags = false
	fs.StringVarP(&opts.Input, "input", "i", "", "input IVF file (or pass it as the only argument)")
	fs.StringVarP(&opts.Output, "output", "o", "", "write a patched copy to this path")
	fs.BoolVar(&opts.InPlace, "inplace", false, "patch the input file in place")
	fs.StringVarP(&opts.ForcedLevel, "forcedlevel", "f", "", "write this seq_level_idx instead of the computed one")
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "log parsing details to stderr")
	fs.StringVar(&opts.Format, "format", "text", "report format: text or json")
	fs.BoolP("help", "h", false, "display this help and exit")
	fs.BoolVar(&showVersion, "version", false, "display version information and exit")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return flagError{err: err}
	})
	defaultHelp := cmd.HelpFunc()
	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		if c != cmd {
			defaultHelp(c, args)
			return
		}
		Help(program, c.Flags(), c.OutOrStdout())
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print go-av1level version information",
		RunE: func(c *cobra.Command, _ []string) error {
			Version(c.OutOrStdout())
			return nil
		},
		DisableFlagsInUseLine: true,
	})
	return cmd
}

// Run executes the root command with args[1:] plus any extra subcommands
// and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer, extra ...*cobra.Command) int {
	if len(args) == 0 {
		return exitError
	}

	program := programName(args[0])
	cmd := NewCommand(program, stdout, stderr)
	cmd.AddCommand(extra...)
	cmd.SetArgs(args[1:])

	err := cmd.Execute()
	var ferr flagError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitError
	case errors.As(err, &ferr):
		fmt.Fprintf(stderr, "%s: %s\n", program, err)
		return Usage(program, stderr)
	}
	fmt.Fprintf(stderr, "%s: %s\n", program, err)
	return exitError
}

func programName(arg0 string) string {
	name := filepath.Base(arg0)
	if runtime.GOOS == "windows" {
		ext := filepath.Ext(name)
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

func newLogger(stderr io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// outputMode validates the mutually exclusive output flags.
func outputMode(opts Options) (patch.Mode, error) {
	switch {
	case opts.InPlace && opts.Output != "":
		return patch.Mode{}, errs.New(errs.InvalidArguments, "options", "--inplace and --output are mutually exclusive")
	case opts.InPlace:
		return patch.InPlace(), nil
	case opts.Output != "":
		return patch.File(opts.Output), nil
	}
	return patch.Report(), nil
}

func runCore(opts Options, stderr io.Writer) (string, error) {
	format := strings.ToLower(opts.Format)
	if format != "text" && format != "json" {
		return "", errs.Newf(errs.InvalidArguments, "options", "unknown format %q, expected text or json", opts.Format)
	}
	mode, err := outputMode(opts)
	if err != nil {
		return "", err
	}

	log := newLogger(stderr, opts.Verbose)
	analyzeOpts := av1level.AnalyzeOptions{Logger: log}
	if opts.ForcedLevel != "" {
		forced, err := level.ParseIndex(opts.ForcedLevel)
		if err != nil {
			return "", err
		}
		analyzeOpts.ForcedLevel = &forced
	}

	report, err := av1level.AnalyzeFileWithOptions(opts.Input, analyzeOpts)
	if err != nil {
		return "", err
	}
	if err := av1level.Apply(&report, mode, log); err != nil {
		return "", err
	}

	if format == "json" {
		return av1level.RenderJSON(report), nil
	}
	return av1level.RenderText(report), nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/blang/semver"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/autobrr/go-av1level/internal/av1level"
	"github.com/autobrr/go-av1level/internal/cli"
)

var version = "dev"

const repositorySlug = "autobrr/go-av1level"

func main() {
	cli.SetVersion(resolveVersion())
	os.Exit(cli.Run(os.Args, os.Stdout, os.Stderr, newUpdateCommand()))
}

func newUpdateCommand() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update av1level to the latest release",
		Long:  "Update av1level to the latest release (release builds only). With --check only report whether a newer release exists.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSelfUpdate(cmd.Context(), cmd.OutOrStdout(), check)
		},
		DisableFlagsInUseLine: true,
	}
	cmd.Flags().BoolVar(&check, "check", false, "only check for a newer release")
	return cmd
}

func runSelfUpdate(ctx context.Context, stdout io.Writer, check bool) error {
	if version == "" || version == "dev" {
		return errors.New("self-update is only available in release builds")
	}
	if _, err := semver.ParseTolerant(version); err != nil {
		return errors.Wrap(err, "could not parse version")
	}

	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(repositorySlug))
	if err != nil {
		return errors.Wrap(err, "detect latest release")
	}
	if !found {
		return errors.Errorf("no release of %s found for this platform", repositorySlug)
	}

	current := av1level.FormatVersion(version)
	if latest.LessOrEqual(version) {
		fmt.Fprintf(stdout, "%s is up to date (%s)\n", av1level.AppName, current)
		return nil
	}
	if check {
		fmt.Fprintf(stdout, "%s %s is available (running %s)\n", av1level.AppName, av1level.FormatVersion(latest.Version()), current)
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return errors.Wrap(err, "locate executable")
	}
	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		return errors.Wrapf(err, "update to %s", latest.Version())
	}

	fmt.Fprintf(stdout, "Updated %s from %s to %s\n", av1level.AppName, current, av1level.FormatVersion(latest.Version()))
	return nil
}

// resolveVersion prefers the linker-set version, then the module version
// recorded by go install.
func resolveVersion() string {
	if version != "" && version != "dev" {
		return strings.TrimPrefix(version, "v")
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return strings.TrimPrefix(info.Main.Version, "v")
	}
	return "dev"
}

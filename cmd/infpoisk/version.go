package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Overridden with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = ""
	commit  = ""
	date    = ""
)

// buildInfo describes the running binary.
type buildInfo struct {
	Version string
	Commit  string
	Date    string
	Go      string
}

// String renders the one-line form used by --version style output.
func (b buildInfo) String() string {
	return fmt.Sprintf("infpoisk %s (%s, %s, %s)", b.Version, b.Commit, b.Date, b.Go)
}

// currentBuild merges the ldflags values with what the toolchain recorded.
func currentBuild() buildInfo {
	b := buildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
		Go:      runtime.Version(),
	}

	info, ok := debug.ReadBuildInfo()
	if ok {
		if b.Version == "" && info.Main.Version != "" {
			b.Version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && b.Commit == "":
				b.Commit = shortRevision(s.Value)
			case s.Key == "vcs.time" && b.Date == "":
				b.Date = s.Value
			}
		}
	}

	if b.Version == "" {
		b.Version = "(devel)"
	}
	if b.Commit == "" {
		b.Commit = "unknown"
	}
	if b.Date == "" {
		b.Date = "unknown"
	}
	return b
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show build version",
		Long: `Show which build of infpoisk is running: release version, source
revision, build time and Go toolchain. With --short only the version is
printed, which is handy in scripts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			short, err := cmd.Flags().GetBool("short")
			if err != nil {
				return err
			}

			b := currentBuild()
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, b.Version)
				return nil
			}
			fmt.Fprintln(out, b.String())
			return nil
		},
	}
	cmd.Flags().Bool("short", false, "print only the version")
	return cmd
}

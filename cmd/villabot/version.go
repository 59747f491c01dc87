package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// Build information variables (set with -ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var versionJSON bool

// VersionOutput represents the version output structure
type VersionOutput struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display version number, build time, git commit and Go version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeVersion(cmd.OutOrStdout(), versionJSON)
	},
}

func currentVersion() VersionOutput {
	return VersionOutput{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
	}
}

func writeVersion(w io.Writer, asJSON bool) error {
	v := currentVersion()

	if asJSON {
		output, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(output))
		return err
	}

	fmt.Fprintln(w, "villabot version information:")
	fmt.Fprintf(w, "  Version:   %s\n", v.Version)
	fmt.Fprintf(w, "  BuildTime: %s\n", v.BuildTime)
	fmt.Fprintf(w, "  GitCommit: %s\n", v.GitCommit)
	fmt.Fprintf(w, "  Go:        %s\n", v.GoVersion)
	return nil
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output in JSON format")
}

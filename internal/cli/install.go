package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"quarry-packages/internal/app"
)

type installOptions struct {
	ProjectDir      string
	PackagesFile    string
	InstallDir      string
	DownloadsDir    string
	HubURL          string
	AllowPrerelease bool
}

func newInstallCommand() *cobra.Command {
	opts := installOptions{}
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Resolve, fetch and install declared packages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInstall(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ProjectDir, "project-dir", ".", "Project directory")
	cmd.Flags().StringVar(&opts.PackagesFile, "packages-file", "", "Packages file (defaults to packages.yml in the project directory)")
	cmd.Flags().StringVar(&opts.InstallDir, "install-dir", "", "Install directory (defaults to quarry_packages in the project directory)")
	cmd.Flags().StringVar(&opts.DownloadsDir, "downloads-dir", "", "Downloads directory (defaults to .quarry-downloads in the project directory)")
	cmd.Flags().StringVar(&opts.HubURL, "hub-url", "", "Package hub base URL")
	cmd.Flags().BoolVar(&opts.AllowPrerelease, "allow-prerelease", false, "Allow prerelease versions for hub packages")

	_ = viper.BindPFlag("project_dir", cmd.Flags().Lookup("project-dir"))
	_ = viper.BindPFlag("packages_file", cmd.Flags().Lookup("packages-file"))
	_ = viper.BindPFlag("install_dir", cmd.Flags().Lookup("install-dir"))
	_ = viper.BindPFlag("downloads_dir", cmd.Flags().Lookup("downloads-dir"))
	_ = viper.BindPFlag("hub_url", cmd.Flags().Lookup("hub-url"))
	_ = viper.BindPFlag("allow_prerelease", cmd.Flags().Lookup("allow-prerelease"))

	return cmd
}

func runInstall(ctx context.Context, cmd *cobra.Command, opts installOptions) error {
	service := newAppService()
	result, err := service.Install(ctx, app.InstallRequest{
		ProjectDir:      resolveString(cmd, opts.ProjectDir, "project_dir", "project-dir"),
		PackagesFile:    resolveString(cmd, opts.PackagesFile, "packages_file", "packages-file"),
		InstallDir:      resolveString(cmd, opts.InstallDir, "install_dir", "install-dir"),
		DownloadsDir:    resolveString(cmd, opts.DownloadsDir, "downloads_dir", "downloads-dir"),
		HubURL:          resolveString(cmd, opts.HubURL, "hub_url", "hub-url"),
		AllowPrerelease: resolveBool(cmd, opts.AllowPrerelease, "allow_prerelease", "allow-prerelease"),
	})
	if err != nil {
		return err
	}
	for _, row := range result.Packages {
		fmt.Println(formatRow(row))
	}
	fmt.Printf("installed: %d packages in %s\n", len(result.Packages), result.InstallDir)
	return nil
}

// formatRow renders one resolved package, flagging hub packages whose
// pin trails the newest installable version.
func formatRow(row app.PackageRow) string {
	line := fmt.Sprintf("%s %s (%s)", row.Name, row.Pin, row.Kind)
	if row.Latest != "" && row.Latest != row.Pin {
		line += fmt.Sprintf(", latest %s available", row.Latest)
	}
	return line
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetString(key)
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetBool(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}

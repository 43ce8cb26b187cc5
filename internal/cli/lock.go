package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"quarry-packages/internal/app"
)

type lockOptions struct {
	ProjectDir      string
	PackagesFile    string
	DownloadsDir    string
	HubURL          string
	AllowPrerelease bool
}

func newLockCommand() *cobra.Command {
	opts := lockOptions{}
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Resolve declared packages and write the lock file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLock(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ProjectDir, "project-dir", ".", "Project directory")
	cmd.Flags().StringVar(&opts.PackagesFile, "packages-file", "", "Packages file (defaults to packages.yml in the project directory)")
	cmd.Flags().StringVar(&opts.DownloadsDir, "downloads-dir", "", "Downloads directory (defaults to .quarry-downloads in the project directory)")
	cmd.Flags().StringVar(&opts.HubURL, "hub-url", "", "Package hub base URL")
	cmd.Flags().BoolVar(&opts.AllowPrerelease, "allow-prerelease", false, "Allow prerelease versions for hub packages")

	_ = viper.BindPFlag("project_dir", cmd.Flags().Lookup("project-dir"))
	_ = viper.BindPFlag("packages_file", cmd.Flags().Lookup("packages-file"))
	_ = viper.BindPFlag("downloads_dir", cmd.Flags().Lookup("downloads-dir"))
	_ = viper.BindPFlag("hub_url", cmd.Flags().Lookup("hub-url"))
	_ = viper.BindPFlag("allow_prerelease", cmd.Flags().Lookup("allow-prerelease"))

	return cmd
}

func runLock(ctx context.Context, cmd *cobra.Command, opts lockOptions) error {
	service := newAppService()
	result, err := service.Lock(ctx, app.LockRequest{
		ProjectDir:      resolveString(cmd, opts.ProjectDir, "project_dir", "project-dir"),
		PackagesFile:    resolveString(cmd, opts.PackagesFile, "packages_file", "packages-file"),
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
	fmt.Printf("locked: %s\n", result.LockPath)
	return nil
}

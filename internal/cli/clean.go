package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"quarry-packages/internal/app"
)

type cleanOptions struct {
	ProjectDir   string
	InstallDir   string
	DownloadsDir string
}

func newCleanCommand() *cobra.Command {
	opts := cleanOptions{}
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the install directory and the downloads area",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClean(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ProjectDir, "project-dir", ".", "Project directory")
	cmd.Flags().StringVar(&opts.InstallDir, "install-dir", "", "Install directory (defaults to quarry_packages in the project directory)")
	cmd.Flags().StringVar(&opts.DownloadsDir, "downloads-dir", "", "Downloads directory (defaults to .quarry-downloads in the project directory)")

	_ = viper.BindPFlag("project_dir", cmd.Flags().Lookup("project-dir"))
	_ = viper.BindPFlag("install_dir", cmd.Flags().Lookup("install-dir"))
	_ = viper.BindPFlag("downloads_dir", cmd.Flags().Lookup("downloads-dir"))

	return cmd
}

func runClean(ctx context.Context, cmd *cobra.Command, opts cleanOptions) error {
	service := newAppService()
	result, err := service.Clean(ctx, app.CleanRequest{
		ProjectDir:   resolveString(cmd, opts.ProjectDir, "project_dir", "project-dir"),
		InstallDir:   resolveString(cmd, opts.InstallDir, "install_dir", "install-dir"),
		DownloadsDir: resolveString(cmd, opts.DownloadsDir, "downloads_dir", "downloads-dir"),
	})
	if err != nil {
		return err
	}
	if len(result.Removed) == 0 {
		fmt.Println("nothing to clean")
		return nil
	}
	for _, dir := range result.Removed {
		fmt.Printf("removed %s\n", dir)
	}
	return nil
}

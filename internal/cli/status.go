package cli

import (
	"fmt"

	"github.com/jhomra21/opencanvas/internal/config"
	"github.com/jhomra21/opencanvas/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show OpenCanvas status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("OpenCanvas %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:    %s\n", paths.Config)
			fmt.Printf("Data:      %s\n", paths.Data)
			fmt.Printf("Viewports: %s\n", paths.Viewports)
			fmt.Printf("Logs:      %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Printf("Config:    error loading: %v\n", err)
				return nil
			}

			fmt.Printf("Gateway:   port=%d bind=%s auth=%s tls=%v\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode, cfg.Gateway.TLS.Enabled)
			fmt.Printf("Storage:   db=%s viewportCacheDays=%d\n",
				paths.DatabasePath(cfg), cfg.Storage.ViewportCacheDays)
			fmt.Printf("Canvas:    defaultName=%q gridPadding=%g\n",
				cfg.Canvas.DefaultName, cfg.Canvas.GridPadding)

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Println()
				for _, issue := range issues {
					fmt.Printf("Issue:     %s\n", issue)
				}
			}
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func runCMD() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Perform one pipeline pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := buildApp(ctx, cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			sum, err := a.orch.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("articles=%d posts=%d trend_analyses=%d alerts=%d\n",
				sum.ArticlesProcessed, sum.PostsProcessed, sum.TrendAnalysesCreated, sum.AlertsPrioritized)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	return cmd
}

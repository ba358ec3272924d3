package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/1195214305/xhs-backend/internal/domain/login/dto"
	"github.com/1195214305/xhs-backend/internal/domain/login/progress"
	"github.com/1195214305/xhs-backend/internal/domain/login/usecase/business"
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Invalidate every stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUseCase(cmd, runInvalidate)
	},
}

func runInvalidate(ctx context.Context, uc *business.LoginUseCase) error {
	n, err := uc.InvalidateAll(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return progress.NewJSONWriter(os.Stdout).Write(dto.InvalidateResponse{Invalidated: n})
	}
	fmt.Printf("Invalidated %d credentials\n", n)
	return nil
}

func init() {
	rootCmd.AddCommand(invalidateCmd)
}

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/1195214305/xhs-backend/internal/domain/login/progress"
	"github.com/1195214305/xhs-backend/internal/domain/login/usecase/business"
)

var extractQRCmd = &cobra.Command{
	Use:   "extract-qr",
	Short: "Print the login QR code without waiting for a scan",
	Long: `Open the login page, extract the QR code and exit. The browser
session is closed right away, so the code cannot complete a login.

Examples:
  xhs-login extract-qr
  xhs-login extract-qr --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUseCase(cmd, runExtractQR)
	},
}

func runExtractQR(ctx context.Context, uc *business.LoginUseCase) error {
	qr, err := uc.ExtractQR(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return progress.NewJSONWriter(os.Stdout).Write(qr)
	}

	if qr.ASCII != "" {
		fmt.Printf("%s\n", qr.ASCII)
	}
	if qr.URL != "" {
		fmt.Printf("Login URL: %s\n", qr.URL)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(extractQRCmd)
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
	"github.com/1195214305/xhs-backend/internal/domain/login/progress"
	"github.com/1195214305/xhs-backend/internal/domain/login/usecase/business"
)

// errNotConfirmed makes the process exit non-zero when no credential was saved
var errNotConfirmed = errors.New("login was not confirmed")

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in by scanning a QR code",
	Long: `Open the login page, show the QR code and wait until the scan is
confirmed in the Xiaohongshu app. On success the session cookies replace
the stored credential.

With --json every progress event is printed as one JSON line and the last
line is the run report.

Examples:
  xhs-login login
  xhs-login login --headless --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUseCase(cmd, runLogin)
	},
}

func runLogin(ctx context.Context, uc *business.LoginUseCase) error {
	var (
		sink   deps.ProgressSink
		writer *progress.JSONWriter
	)
	if jsonOutput {
		writer = progress.NewJSONWriter(os.Stdout)
		sink = writer
	} else {
		sink = progress.NewConsoleWriter(os.Stdout)
	}

	report, err := uc.Run(ctx, "", sink)

	if writer != nil {
		if werr := writer.Write(report); werr != nil {
			return werr
		}
	} else if report.Success {
		fmt.Printf("Saved %d cookies for user %s\n", report.CookieCount, report.UserID)
	}

	if err != nil {
		return err
	}
	if !report.Success {
		return fmt.Errorf("%w: %s", errNotConfirmed, reportOutcome(report))
	}
	return nil
}

func reportOutcome(r entities.LoginReport) string {
	if r.Error != "" {
		return r.Outcome + ": " + r.Error
	}
	return r.Outcome
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

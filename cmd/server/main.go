// @title           Caseflow API
// @version         1.0
// @description     Legal case lifecycle API: clients open cases and upload documents, lawyers claim cases from the marketplace and move them through review, document collection, filing and conclusion.
// @contact.name    Aldo Rifki Putra
// @contact.email   aldoetobex@gmail.com
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
// @securityDefinitions.apikey SystemKey
// @in              header
// @name            X-System-Key
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aldoetobex/caseflow/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "caseflow",
		Short: "Legal case lifecycle service",
		Long: `caseflow serves the case API and provides operator tools
for migrating the schema, issuing tokens and auditing case history.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.TokenCmd())
	rootCmd.AddCommand(cli.AuditCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

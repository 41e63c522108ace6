// Vetflow CLI — инструмент командной строки для запуска
// discharge workflow и просмотра cases через HTTP API.
//
// Использование:
//
//	vetflow [--api-url URL] [--json] [--user-id ID] [--clinic-id ID] <command> [flags]
//
// Команды:
//
//	discharge  Запуск discharge workflow (text, structured, case)
//	case       Просмотр cases
//	result     Просмотр сохранённых результатов по Idempotency-Key
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Vetflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var (
		apiURL     string
		jsonOutput bool
		userID     string
		clinicID   string
		email      string
	)

	rootCmd := &cobra.Command{
		Use:           "vetflow",
		Short:         "Vetflow CLI — veterinary discharge workflow",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&apiURL, "api-url", envOr("VETFLOW_API_URL", "http://localhost:8080"), "API server URL")
	flags.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	flags.StringVar(&userID, "user-id", os.Getenv("VETFLOW_USER_ID"), "Acting user ID")
	flags.StringVar(&clinicID, "clinic-id", os.Getenv("VETFLOW_CLINIC_ID"), "Acting clinic ID")
	flags.StringVar(&email, "email", os.Getenv("VETFLOW_USER_EMAIL"), "Acting user email")

	clientFn := func() *cli.Client {
		return cli.NewClient(cli.ClientConfig{
			BaseURL:  apiURL,
			UserID:   userID,
			ClinicID: clinicID,
			Email:    email,
		})
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewDischargeCmd(clientFn, outputFn),
		cli.NewCaseCmd(clientFn, outputFn),
		cli.NewResultCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

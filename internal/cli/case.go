package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewCaseCmd создаёт группу команд для просмотра cases.
func NewCaseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "case",
		Short: "Inspect cases",
	}

	cmd.AddCommand(newCaseShowCmd(clientFn, outputFn))

	return cmd
}

func newCaseShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show case with extracted entities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			c, err := client.GetCase(args[0])
			if err != nil {
				return err
			}

			var patient, owner, diagnoses string
			if e := c.Entities; e != nil {
				patient = strings.TrimSpace(e.Patient.Name + " " + e.Patient.Species)
				owner = e.Owner.Name
				diagnoses = strings.Join(e.Clinical.Diagnoses, "; ")
			}

			out.Print(
				[]string{"ID", "SOURCE", "MODE", "PATIENT", "OWNER", "DIAGNOSES", "CREATED", "STATUS"},
				[][]string{{
					c.ID.String(),
					c.Source,
					string(c.Mode),
					patient,
					owner,
					diagnoses,
					c.CreatedAt.Format("2006-01-02 15:04"),
					Status(string(c.Status)),
				}},
				c,
			)
			return nil
		},
	}
}

// NewResultCmd создаёт группу команд для сохранённых результатов.
func NewResultCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result",
		Short: "Inspect stored discharge results",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show KEY",
		Short: "Show discharge result by idempotency key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := clientFn().GetResult(args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			printResult(out, result, result)
			if !result.Success {
				out.Warn(fmt.Sprintf("Failed steps: %s", strings.Join(stepNames(result.FailedSteps), ", ")))
			}
			return nil
		},
	})

	return cmd
}

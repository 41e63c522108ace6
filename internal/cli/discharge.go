package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Vetflow/internal/domain"
)

// NewDischargeCmd создаёт группу команд для запуска discharge workflow.
func NewDischargeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discharge",
		Short: "Run the discharge workflow",
	}

	cmd.AddCommand(
		newDischargeTextCmd(clientFn, outputFn),
		newDischargeStructuredCmd(clientFn, outputFn),
		newDischargeCaseCmd(clientFn, outputFn),
	)

	return cmd
}

// runFlags — общие флаги запуска.
type runFlags struct {
	sequential     bool
	stopOnError    bool
	idempotencyKey string
	disable        []string
	template       string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.sequential, "sequential", false, "Run steps one by one instead of parallel batches")
	cmd.Flags().BoolVar(&f.stopOnError, "stop-on-error", false, "Do not start new steps after the first failure")
	cmd.Flags().StringVar(&f.idempotencyKey, "idempotency-key", "", "Idempotency key (repeated calls return the stored result)")
	cmd.Flags().StringSliceVar(&f.disable, "disable", nil, "Steps to disable (repeatable, e.g. scheduleCall)")
	cmd.Flags().StringVar(&f.template, "email-template", "", "Email template name for prepareEmail")
}

// apply заполняет options и steps запроса.
func (f *runFlags) apply(req *domain.OrchestrationRequest) error {
	if f.sequential || f.stopOnError {
		parallel := !f.sequential
		req.Options = &domain.OrchestrationOptions{
			Parallel:    &parallel,
			StopOnError: f.stopOnError,
		}
	}

	if len(f.disable) > 0 || f.template != "" {
		req.Steps = make(map[domain.StepName]domain.StepOptions)
	}
	for _, name := range f.disable {
		step := domain.StepName(strings.TrimSpace(name))
		if !step.IsValid() {
			return fmt.Errorf("unknown step %q", name)
		}
		disabled := false
		req.Steps[step] = domain.StepOptions{Enabled: &disabled}
	}
	if f.template != "" {
		opts := req.Steps[domain.StepPrepareEmail]
		opts.Options = map[string]any{"template": f.template}
		req.Steps[domain.StepPrepareEmail] = opts
	}
	return nil
}

func newDischargeTextCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flags runFlags
	var source, text, file string

	cmd := &cobra.Command{
		Use:   "text",
		Short: "Discharge from free-text notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" && file != "" {
				data, err := readInput(cmd, file)
				if err != nil {
					return err
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("text is empty: use --text or --file")
			}

			req := &domain.OrchestrationRequest{
				Input: domain.OrchestrationInput{
					RawData: &domain.RawData{Mode: domain.InputModeText, Source: source, Text: text},
				},
			}
			return runDischarge(clientFn(), outputFn(), &flags, req)
		},
	}

	cmd.Flags().StringVar(&source, "source", "cli", "Source of the notes")
	cmd.Flags().StringVar(&text, "text", "", "Notes text")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read notes from file (- for stdin)")
	flags.register(cmd)

	return cmd
}

func newDischargeStructuredCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flags runFlags
	var source, file string

	cmd := &cobra.Command{
		Use:   "structured",
		Short: "Discharge from structured JSON record",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, file)
			if err != nil {
				return err
			}

			var data map[string]any
			if err := json.Unmarshal(raw, &data); err != nil {
				return fmt.Errorf("invalid JSON: %w", err)
			}

			req := &domain.OrchestrationRequest{
				Input: domain.OrchestrationInput{
					RawData: &domain.RawData{Mode: domain.InputModeStructured, Source: source, Data: data},
				},
			}
			return runDischarge(clientFn(), outputFn(), &flags, req)
		},
	}

	cmd.Flags().StringVar(&source, "source", "pims", "Source system")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the record (- for stdin)")
	_ = cmd.MarkFlagRequired("file")
	flags.register(cmd)

	return cmd
}

func newDischargeCaseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flags runFlags
	var emailFile string

	cmd := &cobra.Command{
		Use:   "case CASE_ID",
		Short: "Continue discharge for an existing case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			existing := &domain.ExistingCase{CaseID: args[0]}

			if emailFile != "" {
				raw, err := readInput(cmd, emailFile)
				if err != nil {
					return err
				}
				var email domain.EmailContent
				if err := json.Unmarshal(raw, &email); err != nil {
					return fmt.Errorf("invalid email JSON: %w", err)
				}
				existing.EmailContent = &email
			}

			req := &domain.OrchestrationRequest{
				Input: domain.OrchestrationInput{ExistingCase: existing},
			}
			return runDischarge(clientFn(), outputFn(), &flags, req)
		},
	}

	cmd.Flags().StringVar(&emailFile, "email-file", "", "JSON file with precomputed email {subject, html, text}")
	flags.register(cmd)

	return cmd
}

// runDischarge отправляет запрос и печатает результат.
// Неуспешный workflow возвращает ошибку, чтобы CLI завершился с ненулевым кодом.
func runDischarge(client *Client, out *Output, flags *runFlags, req *domain.OrchestrationRequest) error {
	if err := flags.apply(req); err != nil {
		return err
	}

	resp, err := client.Discharge(req, flags.idempotencyKey)
	if err != nil {
		return err
	}

	if resp.Replayed {
		out.Warn(fmt.Sprintf("Stored result returned for key %s", resp.Key))
	}

	printResult(out, resp.Result, resp)

	if !resp.Result.Success {
		return fmt.Errorf("discharge failed: %s", strings.Join(stepNames(resp.Result.FailedSteps), ", "))
	}
	out.Success(fmt.Sprintf("Discharge completed (key %s)", resp.Key))
	return nil
}

// printResult выводит таблицу шагов в фиксированном порядке.
func printResult(out *Output, result *domain.OrchestrationResult, jsonData any) {
	headers := []string{"STEP", "TIME_MS", "DETAIL", "STATUS"}
	rows := make([][]string, 0, len(domain.AllSteps()))
	for _, step := range domain.AllSteps() {
		status, ok := result.StepStatusOf(step)
		if !ok {
			continue
		}
		rows = append(rows, []string{
			step.String(),
			strconv.FormatInt(result.Metadata.StepTimings[step], 10),
			stepDetail(result, step, status),
			Status(strings.ToUpper(string(status))),
		})
	}

	out.Print(headers, rows, jsonData)
}

// stepDetail — ошибка, причина пропуска или ключевое поле данных шага.
func stepDetail(result *domain.OrchestrationResult, step domain.StepName, status domain.StepStatus) string {
	switch status {
	case domain.StepStatusFailed:
		return result.ErrorFor(step.String())
	case domain.StepStatusSkipped:
		return result.Metadata.SkipReasons[step]
	}

	data, ok := result.Data[step].(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"caseId", "summaryId", "emailId", "callId", "subject"} {
		if v, ok := data[key]; ok {
			return fmt.Sprintf("%s=%v", key, v)
		}
	}
	return ""
}

func stepNames(steps []domain.StepName) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.String()
	}
	return names
}

// readInput читает файл или stdin ("-").
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	switch path {
	case "":
		return nil, errors.New("input file is required")
	case "-":
		return io.ReadAll(cmd.InOrStdin())
	default:
		return os.ReadFile(path)
	}
}

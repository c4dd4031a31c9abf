package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mkarlsen/opsimport/internal/ingest"
)

var validateJSON bool

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Parse and validate a file without committing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer p.close()

		session, err := runValidation(p, args[0])
		if err != nil {
			return err
		}

		if validateJSON {
			return json.NewEncoder(os.Stdout).Encode(session.Validation)
		}
		printValidation(session.Validation)

		if session.Validation.ErrorCount > 0 {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "emit the validation result as JSON")
	rootCmd.AddCommand(validateCmd)
}

// runValidation pushes one file through parse + validate and waits for the
// session to settle.
func runValidation(p *pipeline, path string) (ingest.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.Session{}, fmt.Errorf("read input: %w", err)
	}

	sessionID, err := p.service.StartValidation(p.tenantID, filepath.Base(path), data)
	if err != nil {
		return ingest.Session{}, err
	}

	session, ok := p.service.Wait(sessionID)
	if !ok {
		return ingest.Session{}, fmt.Errorf("session vanished")
	}
	if session.State == ingest.StateIdle {
		return ingest.Session{}, fmt.Errorf("validation failed: %s", session.Error)
	}
	return session, nil
}

func printValidation(result *ingest.ValidationResult) {
	fmt.Printf("rows: %d  valid: %d  errors: %d  warnings: %d\n",
		result.TotalRows, result.ValidCount, result.ErrorCount, result.WarningCount)

	if len(result.Issues) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tSEVERITY\tFIELD\tMESSAGE")
	for _, issue := range result.Issues {
		row := fmt.Sprintf("%d", issue.Row+1)
		if issue.Row == ingest.HeaderRow {
			row = "header"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row, issue.Severity, issue.Field, issue.Message)
	}
	w.Flush()
}

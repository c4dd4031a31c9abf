package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkarlsen/opsimport/internal/ingest"
)

var uploadYes bool

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Validate a file and commit the valid rows",
	Long: `Upload validates the file and, if any rows pass, commits them in
batches. Rows with errors are reported and skipped. With --catalog the
commit goes to an in-memory store, which makes it a dry run.`,
	Args: cobra.ExactArgs(1),
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
		printValidation(session.Validation)

		if session.Validation.ValidCount == 0 {
			return fmt.Errorf("no valid rows to commit")
		}
		if session.Validation.ErrorCount > 0 && !uploadYes {
			return fmt.Errorf("%d rows have errors; pass --yes to commit the %d valid rows anyway",
				session.Validation.ErrorCount, session.Validation.ValidCount)
		}

		if err := p.service.Commit(session.ID); err != nil {
			return err
		}
		final, ok := p.service.Wait(session.ID)
		if !ok {
			return fmt.Errorf("session vanished during commit")
		}

		fmt.Println(final.Upload.Message)
		if p.memory != nil {
			fmt.Printf("dry run: %d records written to the in-memory store\n", p.memory.Created())
		}
		if final.State == ingest.StatePartiallyFailed {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadYes, "yes", false, "commit valid rows even when other rows have errors")
	rootCmd.AddCommand(uploadCmd)
}

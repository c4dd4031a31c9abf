package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkarlsen/opsimport/internal/template"
)

var templateOut string

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write a blank import template",
	Long:  "Template writes a blank import template; the format follows the output file extension (.csv or .xlsx).",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		switch strings.ToLower(filepath.Ext(templateOut)) {
		case ".csv":
			data, err = template.CSV()
		case ".xlsx":
			data, err = template.XLSX()
		default:
			return fmt.Errorf("output file must end in .csv or .xlsx")
		}
		if err != nil {
			return err
		}

		if err := os.WriteFile(templateOut, data, 0o644); err != nil {
			return err
		}
		fmt.Println("wrote", templateOut)
		return nil
	},
}

func init() {
	templateCmd.Flags().StringVarP(&templateOut, "out", "o", "service-orders-template.xlsx", "output file path")
	rootCmd.AddCommand(templateCmd)
}

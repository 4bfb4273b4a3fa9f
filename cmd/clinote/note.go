package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"clinote/internal/core"
	"clinote/pkg"
)

func noteCmd(open opener) *cobra.Command {
	var (
		inputPath string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "note",
		Short: "Assemble one progress note from a ClinicalInput JSON file",
		Long: `Assemble one progress note from a ClinicalInput JSON document.

Examples:
  clinote note -f visit.json
  cat visit.json | clinote note -f - --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in pkg.ClinicalInput
			if err := readJSON(cmd.InOrStdin(), inputPath, &in); err != nil {
				return err
			}
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			note := a.Assembler.ProcessInput(cmd.Context(), in)
			return writeNote(cmd.OutOrStdout(), note, asJSON)
		},
	}
	cmd.Flags().StringVarP(&inputPath, "file", "f", "-", "input JSON file, - for stdin")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the structured note as JSON")
	return cmd
}

func renderCmd() *cobra.Command {
	var notePath string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a stored ProgressNote JSON document as text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var note pkg.ProgressNote
			if err := readJSON(cmd.InOrStdin(), notePath, &note); err != nil {
				return err
			}
			return writeNote(cmd.OutOrStdout(), note, false)
		},
	}
	cmd.Flags().StringVarP(&notePath, "file", "f", "-", "note JSON file, - for stdin")
	return cmd
}

func readJSON(stdin io.Reader, path string, v any) error {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeNote(w io.Writer, note pkg.ProgressNote, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(note)
	}
	_, err := fmt.Fprintln(w, core.Render(note))
	return err
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"clinote/pkg"
)

func ingestCmd(open opener) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Index text documents for patient questions",
		Long: `Index plain text documents.  Each file is stored under its base name
unless --source is given for a single file; re-ingesting a name replaces it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if source != "" && len(args) > 1 {
				return fmt.Errorf("--source needs exactly one file")
			}
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, path := range args {
				content, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				name := source
				if name == "" {
					name = filepath.Base(path)
				}
				n, err := a.Indexer.Ingest(cmd.Context(), name, string(content))
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks\n", name, n)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "source name for a single file")
	return cmd
}

func askCmd(open opener) *cobra.Command {
	var (
		extra  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a patient question from the indexed documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ans, err := a.QA.Answer(cmd.Context(), pkg.AskRequest{Question: args[0], Context: extra})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(ans)
			}
			fmt.Fprintln(out, ans.Answer)
			for _, s := range ans.Sources {
				fmt.Fprintf(out, "  [%s #%d] %.3f\n", s.Source, s.Chunk, s.Score)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&extra, "context", "", "extra context about the patient")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

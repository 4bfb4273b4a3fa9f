package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"clinote/internal/core"
	"clinote/pkg"
)

type noteGenerator interface {
	ProcessInput(ctx context.Context, in pkg.ClinicalInput) pkg.ProgressNote
}

func batchCmd(open opener) *cobra.Command {
	var (
		inDir       string
		outDir      string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Assemble a note for every *.json input in a directory",
		Long: `Assemble a note for every *.json ClinicalInput in --in and write
<name>.md to --out.  Inputs are processed concurrently; a file that cannot be
read or written is reported and makes the command fail after the rest finish.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return runBatch(cmd.Context(), a.Assembler, inDir, outDir, concurrency, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&inDir, "in", ".", "directory of ClinicalInput JSON files")
	cmd.Flags().StringVar(&outDir, "out", "notes", "directory for rendered notes")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "notes assembled at once")
	return cmd
}

func runBatch(ctx context.Context, gen noteGenerator, inDir, outDir string, concurrency int, report io.Writer) error {
	inputs, err := filepath.Glob(filepath.Join(inDir, "*.json"))
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no *.json inputs in %s", inDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	var (
		mu       sync.Mutex
		failures []error
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for _, path := range inputs {
		path := path
		g.Go(func() error {
			out, err := batchOne(ctx, gen, path, outDir)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Error("Batch input failed", "file", path, "error", err)
				failures = append(failures, fmt.Errorf("%s: %w", filepath.Base(path), err))
				return nil
			}
			fmt.Fprintf(report, "%s -> %s\n", filepath.Base(path), out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d inputs failed: %w", len(failures), len(inputs), errors.Join(failures...))
	}
	return nil
}

func batchOne(ctx context.Context, gen noteGenerator, path, outDir string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var in pkg.ClinicalInput
	if err := json.Unmarshal(data, &in); err != nil {
		return "", err
	}
	note := gen.ProcessInput(ctx, in)
	out := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(path), ".json")+".md")
	return out, os.WriteFile(out, []byte(core.Render(note)+"\n"), 0o644)
}

package main

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/brennhill/oi-web-bridge/internal/state"
)

func newExportEvidenceCmd() *cobra.Command {
	var (
		attach string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export-evidence",
		Short: "bundle a run's report and evidence directory into a zip for a reviewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveRunID(attach)
			if err != nil {
				return err
			}
			layout, err := state.NewRunLayout(id)
			if err != nil {
				return err
			}
			out := output
			if out == "" {
				out = fmt.Sprintf("%s-evidence.zip", id)
			}
			if err := bundleEvidence(layout, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&attach, "attach", "last", `run id, or "last"`)
	cmd.Flags().StringVar(&output, "output", "", "output zip path (default <run_id>-evidence.zip)")
	return cmd
}

// bundleEvidence writes to a temp file in the destination directory and
// renames it into place last, the same write-to-temp-then-rename
// discipline internal/state.AtomicWrite uses for every other bridge
// output file.
func bundleEvidence(layout *state.RunLayout, outPath string) error {
	destDir := filepath.Dir(outPath)
	if destDir == "" {
		destDir = "."
	}
	tmp, err := os.CreateTemp(destDir, ".export-*.zip")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	zw := zip.NewWriter(tmp)
	if err := addFileToZip(zw, layout.ReportFile, "report.json"); err != nil && !os.IsNotExist(err) {
		zw.Close()
		tmp.Close()
		return err
	}
	if err := addDirToZip(zw, layout.EvidenceDir, "evidence"); err != nil {
		zw.Close()
		tmp.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, outPath)
}

func addFileToZip(zw *zip.Writer, srcPath, name string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func addDirToZip(zw *zip.Writer, dir, prefix string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := addFileToZip(zw, filepath.Join(dir, e.Name()), filepath.Join(prefix, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vnrename/vnrename/pkg/vnrename/batch"
	"github.com/vnrename/vnrename/pkg/vnrename/core"
	"github.com/vnrename/vnrename/pkg/vnrename/engine"
	"github.com/vnrename/vnrename/pkg/vnrename/failure"
	"github.com/vnrename/vnrename/pkg/vnrename/filesystem"
	"github.com/vnrename/vnrename/pkg/vnrename/history"
	"github.com/vnrename/vnrename/pkg/vnrename/undo"
)

func newPreviewCommand() *cobra.Command {
	var (
		recursive     bool
		includeHidden bool
	)

	cmd := &cobra.Command{
		Use:   "preview [folder]",
		Short: "Show what a rename would do without changing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			logger, err := newCLILogger()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fsys := filesystem.NewOSFileSystem(dir)
			eng := engine.New(fsys, logger)
			files, err := engine.ScanFolder(fsys, ".", engine.ScanOptions{
				Recursive:     recursive,
				IncludeHidden: includeHidden,
			})
			if err != nil {
				return fmt.Errorf("failed to scan %s: %w", dir, err)
			}

			previews := eng.DetectAndResolveConflicts(eng.PreviewRename(files, cfg.Rules))
			changed := 0
			for _, p := range previews {
				if !p.HasChanges() {
					continue
				}
				changed++
				fmt.Printf("  %s -> %s\n", p.File.Path, p.NormalizedPath)
				for _, w := range p.Warnings {
					fmt.Printf("    warning: %s\n", w)
				}
			}
			fmt.Printf("\n%d of %d files would be renamed\n", changed, len(previews))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Include subfolders")
	cmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "Include hidden files")

	return cmd
}

func newRenameCommand() *cobra.Command {
	var (
		dryRun        bool
		recursive     bool
		includeHidden bool
		historyPath   string
	)

	cmd := &cobra.Command{
		Use:   "rename [folder]",
		Short: "Normalize every filename in a folder",
		Long:  "Normalize every filename in a folder. The batch is recorded in the history file and can be undone with 'vnrename undo'.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			logger, err := newCLILogger()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if historyPath == "" {
				historyPath = cfg.HistoryPath
			}

			fsys := filesystem.NewOSFileSystem(dir)
			store, err := history.NewFileStore(historyPath, logger)
			if err != nil {
				return fmt.Errorf("failed to open history %s: %w", historyPath, err)
			}

			files, err := engine.ScanFolder(fsys, ".", engine.ScanOptions{
				Recursive:     recursive,
				IncludeHidden: includeHidden,
			})
			if err != nil {
				return fmt.Errorf("failed to scan %s: %w", dir, err)
			}
			if len(files) == 0 {
				fmt.Println("nothing to rename")
				return nil
			}

			undoSvc := undo.NewService(fsys, store, logger)
			tracker := failure.NewHandler(undoSvc, logger)
			svc := batch.NewService(engine.New(fsys, logger), fsys, store, tracker, logger)

			var final core.OperationResult
			opID, err := svc.StartBatchOperation(batch.Request{
				Files:     files,
				Rules:     cfg.Rules,
				DryRun:    dryRun,
				SourceDir: dir,
			}, batch.Callbacks{
				OnProgress: func(p batch.Progress) {
					fmt.Printf("\r[%5.1f%%] %s", p.Percentage, p.CurrentFile)
				},
				OnComplete: func(res core.OperationResult) {
					final = res
				},
			})
			if err != nil {
				return err
			}
			svc.Wait()
			fmt.Println()

			fmt.Printf("operation %s: %s\n", opID, final.Status)
			fmt.Printf("  renamed: %d, skipped: %d, failed: %d (of %d)\n",
				final.SuccessCount, final.SkippedCount, final.ErrorCount, final.TotalFiles)
			if report, ok := tracker.Report(opID); ok && report.FailedOperations > 0 {
				fmt.Printf("  recommended recovery: %s\n", report.RecommendedStrategy)
				for _, f := range report.FailedFiles {
					fmt.Printf("    %s: %v\n", f.FilePath, f.Err)
				}
			}
			tracker.Finalize(opID)
			if final.Status == core.StatusFailed {
				return fmt.Errorf("batch operation failed: %s", final.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Simulate the rename without touching files")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Include subfolders")
	cmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "Include hidden files")
	cmd.Flags().StringVar(&historyPath, "history", "", "History file (default from config)")

	return cmd
}

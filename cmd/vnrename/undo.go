package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vnrename/vnrename/pkg/vnrename/filesystem"
	"github.com/vnrename/vnrename/pkg/vnrename/history"
	"github.com/vnrename/vnrename/pkg/vnrename/undo"
)

func newUndoCommand() *cobra.Command {
	var (
		historyPath string
		checkOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "undo [operation-id]",
		Short: "Restore the original filenames of a previous batch",
		Long: `Restore the original filenames of a previous batch. Without an
operation ID the most recent undoable batch is used. The undo is
all-or-nothing: if any file cannot be restored, every rename made so
far is rolled back.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			store, err := history.NewFileStore(historyPath, logger)
			if err != nil {
				return fmt.Errorf("failed to open history %s: %w", historyPath, err)
			}

			var op *history.OperationRecord
			if len(args) == 1 {
				op, err = store.GetOperation(args[0])
				if err != nil {
					return err
				}
				if op == nil {
					return fmt.Errorf("operation %s not found", args[0])
				}
			} else {
				op, err = store.LastUndoable("")
				if err != nil {
					return err
				}
				if op == nil {
					return fmt.Errorf("no undoable operation in history")
				}
			}

			fsys := filesystem.NewOSFileSystem(op.SourceDirectory)
			svc := undo.NewService(fsys, store, logger)

			elig, err := svc.CanUndoOperation(op.OperationID)
			if err != nil {
				return err
			}
			if checkOnly || !elig.CanUndo {
				printEligibility(op, elig)
				if !elig.CanUndo {
					return fmt.Errorf("operation cannot be undone: %s", elig.PrimaryReason)
				}
				return nil
			}

			result, err := svc.ExecuteUndoOperation(op.OperationID, func(pct float64, label string) {
				fmt.Printf("\r[%5.1f%%] %s", pct, label)
			}, nil)
			fmt.Println()
			if err != nil {
				return err
			}
			fmt.Printf("undo %s: restored %d of %d files in %s\n",
				result.UndoOperationID, result.SuccessfulRestorations, result.TotalFiles, op.SourceDirectory)
			return nil
		},
	}

	cmd.Flags().StringVar(&historyPath, "history", "", "History file (default from config)")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only report whether the operation can be undone")

	return cmd
}

func printEligibility(op *history.OperationRecord, elig *undo.Eligibility) {
	fmt.Printf("operation %s (%s)\n", op.OperationID, op.SourceDirectory)
	if elig.CanUndo {
		fmt.Printf("  can be undone: %d files\n", elig.ValidFiles)
		return
	}
	fmt.Printf("  cannot be undone: %s\n", elig.PrimaryReason)
	printFileList("missing", elig.MissingFiles)
	printFileList("modified", elig.ModifiedFiles)
	printFileList("conflicting", elig.ConflictingFiles)
	printFileList("read-only", elig.ReadOnlyFiles)
}

func printFileList(label string, files []string) {
	if len(files) == 0 {
		return
	}
	fmt.Printf("  %s: %s\n", label, strings.Join(files, ", "))
}

func newHistoryCommand() *cobra.Command {
	var (
		historyPath string
		limit       int
		showUndos   bool
		cleanup     bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent batch operations",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			store, err := history.NewFileStore(historyPath, logger)
			if err != nil {
				return fmt.Errorf("failed to open history %s: %w", historyPath, err)
			}

			if cleanup {
				expired, err := store.CleanupExpired(time.Now())
				if err != nil {
					return err
				}
				fmt.Printf("%d operation(s) past the undo window\n", expired)
			}

			if showUndos {
				undos, err := store.UndoOperations(limit)
				if err != nil {
					return err
				}
				for _, u := range undos {
					fmt.Printf("%s  %s  restored %d/%d  %s\n",
						u.UndoOperationID, u.ExecutionStatus, u.SuccessfulRestorations, u.TotalFiles, u.FolderPath)
				}
				return nil
			}

			ops, err := store.RecentOperations(limit)
			if err != nil {
				return err
			}
			for _, op := range ops {
				undoable := ""
				if op.CanBeUndone {
					undoable = "  [undoable]"
				}
				fmt.Printf("%s  %s  %d/%d renamed  %s%s\n",
					op.OperationID, op.Status, op.SuccessfulFiles, op.TotalFiles, op.SourceDirectory, undoable)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&historyPath, "history", "", "History file (default from config)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of entries")
	cmd.Flags().BoolVar(&showUndos, "undos", false, "List undo attempts instead of batches")
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "Drop undo eligibility from expired operations first")

	return cmd
}

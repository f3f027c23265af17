package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fundflow-dev/fundflow/internal/importer"
	"github.com/fundflow-dev/fundflow/internal/logging"
	"github.com/fundflow-dev/fundflow/internal/statement"
)

func newExportCommand(opts *globalOptions) *cobra.Command {
	var user, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's ledger as a CSV statement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.openCmd(cmd)
			if err != nil {
				return err
			}
			defer p.close()

			userID, err := p.userID(cmd.Context(), user)
			if err != nil {
				return err
			}
			txns, err := p.ledger.Transactions(cmd.Context(), userID)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				return statement.Write(cmd.OutOrStdout(), txns)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			if err := statement.Write(f, txns); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("closing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d transactions to %s\n", len(txns), output)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user tag")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newImportCommand(opts *globalOptions) *cobra.Command {
	var user, format, category string

	cmd := &cobra.Command{
		Use:   "import [file.csv...]",
		Short: "Record income and expenses from bank CSV exports",
		Long: "Record income and expenses from bank CSV exports. With no files, every CSV in\n" +
			"<dir>/import/ is imported and then moved to import/processed/.",
		RunE: func(cmd *cobra.Command, args []string) error {
			parser := importer.DefaultRegistry().Get(format)
			if parser == nil {
				return fmt.Errorf("unknown import format %q", format)
			}

			p, err := opts.openCmd(cmd)
			if err != nil {
				return err
			}
			defer p.close()

			userID, err := p.userID(cmd.Context(), user)
			if err != nil {
				return err
			}

			files := args
			scanned := len(args) == 0
			if scanned {
				found, err := importer.Scan(p.dir)
				if err != nil {
					return err
				}
				for _, f := range found {
					files = append(files, f.Path)
				}
			}

			out := cmd.OutOrStdout()
			for _, path := range files {
				n, err := importFile(cmd, p, parser, userID, category, path)
				if err != nil {
					return fmt.Errorf("importing %s: %w", path, err)
				}
				if scanned {
					if err := importer.MarkProcessed(p.dir, filepath.Base(path)); err != nil {
						return err
					}
				}
				p.recordOp(cmd, user, fmt.Sprintf("imported %d %s records from %s", n, parser.Format(), filepath.Base(path)), "")
				fmt.Fprintf(out, "Imported %d transactions from %s\n", n, filepath.Base(path))
			}
			if len(files) == 0 {
				fmt.Fprintln(out, "Nothing to import")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user tag")
	cmd.Flags().StringVar(&format, "format", "chase", "bank export format")
	cmd.Flags().StringVar(&category, "category", "Imported", "category for imported records")
	return cmd
}

func importFile(cmd *cobra.Command, p *project, parser importer.Parser, userID, category, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	entries, err := parser.Parse(f)
	if err != nil {
		return 0, err
	}
	reqs := importer.Records(userID, category, entries)
	for i, req := range reqs {
		if _, err := p.ledger.RecordTransaction(cmd.Context(), req); err != nil {
			return i, fmt.Errorf("%q on %s: %w", req.Description, req.Date.Format(dateLayout), err)
		}
	}
	logging.Event(p.logger, "statement_imported", map[string]any{
		"user_id": userID,
		"file":    filepath.Base(path),
		"format":  parser.Format(),
		"records": len(reqs),
	})
	return len(reqs), nil
}

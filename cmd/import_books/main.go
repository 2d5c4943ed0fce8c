package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"bookstore-catalog/catalog"
)

// bookRecord is one entry of the import file.
type bookRecord struct {
	SellerID   int64  `json:"seller_id"`
	Author     string `json:"author"`
	Title      string `json:"title"`
	Year       int    `json:"year"`
	CountPages int    `json:"count_pages"`
}

type importResult struct {
	imported int
	failed   int
}

func main() {
	var (
		driver string
		dsn    string
	)

	cmd := &cobra.Command{
		Use:   "import_books FILE",
		Short: "Import books for existing sellers from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("reading import file: %w", err)
			}
			defer f.Close()

			mgr, err := catalog.OpenManager(cmd.Context(), catalog.Options{Driver: driver, DSN: dsn})
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer mgr.Close()

			res, err := importBooks(cmd.Context(), mgr, f, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if res.failed > 0 {
				return fmt.Errorf("%d of %d books failed to import", res.failed, res.failed+res.imported)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "db-driver", catalog.DriverSQLite, "store driver (sqlite3|postgres)")
	cmd.Flags().StringVar(&dsn, "db-dsn", "bookstore.db", "SQLite path or PostgreSQL DSN")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// importBooks adds every record in r and prints a line per book plus a
// summary. A record that fails does not stop the import.
func importBooks(ctx context.Context, mgr *catalog.Manager, r io.Reader, out io.Writer) (importResult, error) {
	var records []bookRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return importResult{}, fmt.Errorf("decoding import file: %w", err)
	}

	fmt.Fprintf(out, "Importing %d books...\n", len(records))

	var res importResult
	for _, rec := range records {
		fmt.Fprintf(out, "Importing: %s by %s for seller %d... ", rec.Title, rec.Author, rec.SellerID)

		if strings.TrimSpace(rec.Title) == "" || strings.TrimSpace(rec.Author) == "" {
			fmt.Fprintln(out, "ERROR - title and author are required")
			res.failed++
			continue
		}

		id, err := mgr.AddBook(ctx, catalog.Book{
			Author:     rec.Author,
			Title:      rec.Title,
			Year:       rec.Year,
			CountPages: rec.CountPages,
			SellerID:   rec.SellerID,
		})
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			res.failed++
			continue
		}

		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", id)
		res.imported++
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", res.imported)
	fmt.Fprintf(out, "Errors: %d\n", res.failed)
	return res, nil
}

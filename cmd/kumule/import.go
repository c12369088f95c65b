package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Kumule/internal/importer"
	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

var errUnchanged = errors.New("unchanged")

func newImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a CSV or XLSX portfolio into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			im := importer.New(a.cfg.Import, a.logger)
			var res *importer.Result
			err = a.store.Update(cmd.Context(), func(doc *store.Document) error {
				var err error
				res, err = im.Apply(doc, filepath.Base(args[0]), data)
				if err != nil {
					return err
				}
				if res.Duplicate {
					return errUnchanged
				}
				return nil
			})
			if err != nil && !errors.Is(err, errUnchanged) {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Duplicate {
				fmt.Fprintf(out, "%s is identical to the last import (md5 %s), nothing to do\n", res.File, res.MD5)
				return nil
			}
			fmt.Fprintf(out, "%s: %d rows, %d created, %d updated, %d skipped\n",
				res.File, res.Rows, res.Created, res.Updated, res.Skipped)
			for _, is := range res.Issues {
				fmt.Fprintf(out, "  %s\n", is)
			}
			return nil
		},
	}
}

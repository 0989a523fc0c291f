package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/kolah/courier/internal/output"
	"github.com/spf13/cobra"
)

func OperationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "operations",
		Aliases: []string{"ops", "ls"},
		Short:   "List the operations of the document",
		Args:    cobra.NoArgs,
		RunE:    runOperations,
	}
}

type operationSummary struct {
	ID      string `json:"id"`
	Method  string `json:"method"`
	Path    string `json:"path"`
	Summary string `json:"summary,omitempty"`
	Derived bool   `json:"derivedId,omitempty"`
}

func runOperations(cmd *cobra.Command, _ []string) error {
	doc, err := loadDocument(cmd)
	if err != nil {
		return err
	}

	summaries := make([]operationSummary, 0, len(doc.spec.Operations))
	for _, op := range doc.spec.Operations {
		summaries = append(summaries, operationSummary{
			ID:      op.ID,
			Method:  string(op.Method),
			Path:    op.Path,
			Summary: op.Summary,
			Derived: op.DerivedID,
		})
	}

	if doc.cfg.Output.Format != "" || doc.cfg.Output.Query != "" {
		format, err := output.ParseFormat(doc.cfg.Output.Format)
		if err != nil {
			return err
		}
		p, err := output.NewPrinter(format, doc.cfg.Output.Query)
		if err != nil {
			return err
		}
		return p.Print(cmd.OutOrStdout(), summaries)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OPERATION\tMETHOD\tPATH\tSUMMARY")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Method, s.Path, s.Summary)
	}
	return w.Flush()
}

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/kolah/courier/contract"
	"github.com/kolah/courier/engine"
	"github.com/kolah/courier/internal/batch"
	"github.com/kolah/courier/internal/binding"
	"github.com/kolah/courier/internal/output"
	"github.com/spf13/cobra"
)

func BatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file.yaml>",
		Short: "Run the calls listed in a YAML file concurrently",
		Long: `Run many calls concurrently and print one JSON line per call, in file order.

The file lists invocations:

  concurrency: 4
  calls:
    - operation: getPet
      params: {petId: "1"}
    - operation: createPet
      body: '{"name":"Rex"}'`,
		Args: cobra.ExactArgs(1),
		RunE: runBatch,
	}

	cmd.Flags().Bool("progress", false, "Show progress on stderr")

	return cmd
}

// batchRecord is the line printed for one call.
type batchRecord struct {
	Index     int    `json:"index"`
	Operation string `json:"operation"`
	Status    int    `json:"status,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	Entity    any    `json:"entity,omitempty"`
	Error     string `json:"error,omitempty"`
	Millis    int64  `json:"ms"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	file, err := batch.Load(args[0])
	if err != nil {
		return err
	}

	concurrency := file.Concurrency
	if s.cfg.Batch.Concurrency > 0 {
		concurrency = s.cfg.Batch.Concurrency
	}

	var progress io.Writer
	if show, _ := cmd.Flags().GetBool("progress"); show {
		progress = cmd.ErrOrStderr()
	}

	results := batch.Run(cmd.Context(), file.Calls, concurrency, func(ctx context.Context, inv binding.Invocation) (*engine.Response, error) {
		resp, err := s.invoke(ctx, inv)
		if err != nil {
			return nil, err
		}
		// Streams are drained here so the connection is released.
		if rc, ok := resp.Entity.(io.ReadCloser); ok {
			n, err := io.Copy(io.Discard, rc)
			rc.Close()
			if err != nil {
				return resp, err
			}
			resp.Entity = fmt.Sprintf("<%d bytes>", n)
		}
		return resp, nil
	}, progress)

	lines, err := output.NewPrinter(output.Compact, "")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range results {
		if err := lines.Print(out, s.record(r)); err != nil {
			return err
		}
	}

	success, failure := batch.Count(results)
	cmd.PrintErrf("%d succeeded, %d failed\n", success, failure)
	if s.checker != nil {
		if n := len(s.checker.Violations()); n > 0 {
			cmd.PrintErrf("%d conformance violations\n", n)
		}
	}
	if failure > 0 {
		return fmt.Errorf("%d of %d calls failed", failure, len(results))
	}
	return nil
}

func (s *session) record(r batch.Result) batchRecord {
	rec := batchRecord{
		Index:     r.Index,
		Operation: r.Operation,
		Millis:    r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	resp := r.Response
	if resp == nil {
		return rec
	}
	rec.Status = resp.StatusCode
	rec.Outcome = resp.Outcome.String()

	switch {
	case resp.Outcome != engine.OutcomeDefined:
		if rec.Error == "" {
			rec.Error = resp.Reason
		}
	case resp.Type().Kind() == contract.KindNoContent:
	default:
		entity, err := output.Apply(resp.Entity, s.cfg.Output.Query)
		if err != nil {
			rec.Error = err.Error()
			break
		}
		rec.Entity = entity
	}
	return rec
}

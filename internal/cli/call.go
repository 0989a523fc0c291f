package cli

import (
	"fmt"
	"io"

	"github.com/kolah/courier/contract"
	"github.com/kolah/courier/engine"
	"github.com/kolah/courier/internal/binding"
	"github.com/spf13/cobra"
)

func CallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <operationId> [name=value ...]",
		Short: "Call an operation and print the decoded response",
		Long: `Call an operation by ID.

Parameters are given as name=value. Qualify the name with its location
(header:X-Trace=1) when several locations share it. Arrays are comma
separated.`,
		Example: `  courier call getPet petId=1
  courier call createPet --body '{"name":"Rex"}'
  courier call uploadPhoto petId=1 --file photo=@rex.png -q .id`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCall,
	}

	cmd.Flags().StringP("body", "d", "", "Request body as JSON or text, or @file")
	cmd.Flags().StringArrayP("file", "F", nil, "Multipart file part as name=@path (repeatable)")

	return cmd
}

func runCall(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	params, err := binding.ParseArgs(args[1:])
	if err != nil {
		return err
	}
	body, _ := cmd.Flags().GetString("body")
	fileArgs, _ := cmd.Flags().GetStringArray("file")
	files, err := binding.ParseArgs(fileArgs)
	if err != nil {
		return fmt.Errorf("--file: %w", err)
	}

	resp, err := s.invoke(cmd.Context(), binding.Invocation{
		Operation: args[0],
		Params:    params,
		Body:      body,
		Files:     files,
	})
	if err != nil {
		return err
	}

	switch resp.Outcome {
	case engine.OutcomeIncompatible:
		if len(resp.Body) > 0 {
			cmd.PrintErrln(string(resp.Body))
		}
		return &engine.IncompatibleResponseError{Response: resp}
	case engine.OutcomeIncomplete:
		return &engine.IOError{Request: resp.Request, Response: resp, Err: resp.Cause}
	}

	if err := s.printEntity(cmd.OutOrStdout(), resp); err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: status %d", resp.Request.Method, resp.Request.URL, resp.StatusCode)
	}
	return nil
}

// printEntity writes a defined response entity. Streams are copied
// verbatim, text is printed as is unless a query is set.
func (s *session) printEntity(w io.Writer, resp *engine.Response) error {
	switch resp.Type().Kind() {
	case contract.KindNoContent:
		return nil
	case contract.KindStream:
		rc, ok := resp.Entity.(io.ReadCloser)
		if !ok {
			return nil
		}
		defer rc.Close()
		_, err := io.Copy(w, rc)
		return err
	case contract.KindText:
		if s.cfg.Output.Query == "" {
			_, err := fmt.Fprintln(w, resp.Entity)
			return err
		}
	}
	return s.printer.Print(w, resp.Entity)
}

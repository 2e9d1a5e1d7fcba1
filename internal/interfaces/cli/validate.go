package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/TechIntel/pkg/client"
	"github.com/turtacn/TechIntel/pkg/errors"
)

// validationView renders a backend validation decision.
type validationView struct {
	query string
	v     *client.Validation
}

func (vv validationView) String() string {
	switch vv.v.Decision {
	case client.DecisionAccept:
		return fmt.Sprintf("accepted: %s", vv.v.Technology)
	case client.DecisionNeedsConfirmation:
		if vv.v.Suggestion != "" {
			return fmt.Sprintf("did you mean %q?", vv.v.Suggestion)
		}
		return fmt.Sprintf("%q needs confirmation", vv.query)
	}
	if vv.v.Message != "" {
		return fmt.Sprintf("rejected: %s", vv.v.Message)
	}
	return fmt.Sprintf("rejected: %q is not a technology", vv.query)
}

func (vv validationView) TableHeaders() []string {
	return []string{"query", "decision", "technology", "suggestion", "message"}
}

func (vv validationView) TableRows() [][]string {
	return [][]string{{vv.query, vv.v.Decision, vv.v.Technology, vv.v.Suggestion, vv.v.Message}}
}

// NewValidateCmd creates the validate command.
func NewValidateCmd(deps CommandDependencies) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate query...",
		Short: "Ask the backend whether a query names a technology",
		Example: `  techintel validate quantum computing
  techintel validate --strict "quantum computng" -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if deps.NewBackend == nil {
				return notConfigured("backend")
			}
			backend, err := deps.NewBackend(cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if cliCtx.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cliCtx.Timeout)
				defer cancel()
			}

			query := strings.Join(args, " ")
			v, err := backend.ValidateTechnology(ctx, query)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeExternalService, "validation failed")
			}

			view := validationView{query: strings.TrimSpace(query), v: v}
			if strings.EqualFold(cliCtx.OutputFormat, "json") {
				err = printJSON(cmd, v)
			} else {
				err = PrintResult(cmd, view)
			}
			if err != nil {
				return err
			}
			if strict && !v.Accepted() {
				return errors.New(errors.ErrCodeTechnologyRejected, "query was not accepted").WithDetail(view.query)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail unless the query is accepted")
	return cmd
}

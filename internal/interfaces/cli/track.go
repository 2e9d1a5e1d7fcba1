package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/TechIntel/internal/application/tracking"
	"github.com/turtacn/TechIntel/internal/domain/readiness"
	"github.com/turtacn/TechIntel/pkg/errors"
)

type trackOptions struct {
	createIfMissing bool
	waitTimeout     time.Duration
	pollInterval    time.Duration
}

// statusTable renders tracker statuses.
type statusTable []tracking.Status

func (t statusTable) TableHeaders() []string {
	return []string{"technology", "state", "updated", "stale", "error"}
}

func (t statusTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		updated := "-"
		if !s.UpdatedAt.IsZero() {
			updated = s.UpdatedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{s.Technology, s.State.String(), updated, fmt.Sprint(s.Stale), s.Error})
	}
	return rows
}

// NewTrackCmd creates the track command.
func NewTrackCmd(deps CommandDependencies) *cobra.Command {
	opts := &trackOptions{}

	cmd := &cobra.Command{
		Use:   "track technology...",
		Short: "Follow technologies until the backend has finished processing them",
		Long: `Poll the analytics backend for each technology, printing every readiness
transition, until all of them are ready or missing.  The command fails when any
technology ends up missing.`,
		Example: `  techintel track "quantum computing" robotics
  techintel track --create --wait 30m "solid state batteries"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(cmd, deps, opts, args)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.createIfMissing, "create", false, "ask the backend to create technologies it does not know")
	f.DurationVar(&opts.waitTimeout, "wait", 15*time.Minute, "give up after this long")
	f.DurationVar(&opts.pollInterval, "interval", 0, "poll interval (default: backend.poll_interval)")

	return cmd
}

func runTrack(cmd *cobra.Command, deps CommandDependencies, opts *trackOptions, args []string) error {
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

	interval := opts.pollInterval
	if interval <= 0 {
		interval = cliCtx.Config.Backend.PollInterval
	}
	out := &lockedWriter{w: cmd.OutOrStdout()}

	tracker := tracking.NewTracker(backend, tracking.Options{
		PollInterval:    interval,
		CreateIfMissing: opts.createIfMissing || cliCtx.Config.Backend.CreateIfMissing,
		StaleAfter:      cliCtx.Config.Compare.StaleAfter,
		OnTransition: func(tr tracking.Transition) {
			fmt.Fprintf(out, "%s: %s -> %s\n", tr.Technology, tr.From, tr.To)
		},
	}, cliCtx.Logger)
	defer tracker.Close()

	techs := make([]string, 0, len(args))
	for _, arg := range args {
		tech := strings.TrimSpace(arg)
		if _, err := tracker.Track(tech); err != nil {
			return err
		}
		techs = append(techs, tech)
	}

	ctx := cmd.Context()
	if opts.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.waitTimeout)
		defer cancel()
	}

	var missing []string
	for _, tech := range techs {
		state, err := tracker.Wait(ctx, tech)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeTimeout, "stopped waiting for technologies").WithDetail(tech)
		}
		if state == readiness.Missing {
			missing = append(missing, tech)
		}
	}

	if err := PrintResult(cmd, statusTable(tracker.List())); err != nil {
		return err
	}
	if len(missing) > 0 {
		return errors.New(errors.ErrCodeTechnologyMissing, "technology is missing").WithDetail(strings.Join(missing, ", "))
	}
	return nil
}

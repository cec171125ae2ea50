package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/session"
)

func newInspectCmd(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "inspect <session-id>",
		Short: "Print a stored combat snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.provider(cmd.Context())
			if err != nil {
				return err
			}
			defer closeProvider(p)

			snap, err := p.Repository.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if raw {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "json", false, "Print the stored JSON")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List combats still being driven",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.provider(cmd.Context())
			if err != nil {
				return err
			}
			defer closeProvider(p)

			snaps, err := p.EncounterService.ListActive(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Found %d active combats:\n", len(snaps))
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDRIVER\tTICK\tROUND\tUPDATED")
			for _, snap := range snaps {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", snap.ID, snap.DriverID, snap.Tick(),
					snap.Encounter.Round, snap.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}

func printSnapshot(out io.Writer, snap *session.Snapshot) {
	if snap.Scheduler == nil {
		snap.Scheduler = atb.NewState()
	}
	fmt.Fprintf(out, "Combat %s (%s), driven by %s\n", snap.ID, snap.Status, snap.DriverID)
	fmt.Fprintf(out, "Tick %d, round %d\n", snap.Tick(), snap.Encounter.Round)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nACTOR\tSIDE\tHP\tWEAR\tPOSITION\tCARD\tQUEUED")
	for _, c := range snap.Encounter.Ordered() {
		card, queued := "-", 0
		if actor, ok := snap.Scheduler.Actors[c.ID]; ok {
			if actor.Current != nil {
				card = fmt.Sprintf("%s (%s)", actor.Current.ActionKey, actor.Current.Phase)
			}
			queued = len(actor.Queue)
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d/%d\t(%d,%d)\t%s\t%d\n", c.ID, c.Side, c.CurrentHP, c.MaxHP,
			c.Wear, c.WearMax(), c.Position.X, c.Position.Y, card, queued)
	}
	_ = w.Flush()

	for _, win := range snap.Windows {
		fmt.Fprintf(out, "Window %s: %s may react to %s (%s) until tick %d\n",
			win.ID, win.ActorID, win.ProvokerID, win.Reason, win.ExpiresTick)
	}
	for actorID, states := range snap.Ailments {
		for _, st := range states {
			fmt.Fprintf(out, "Ailment: %s is %s %s\n", actorID, st.Severity, st.DefinitionID)
		}
	}
	if d := snap.Scheduler.PendingDecision; d != nil {
		fmt.Fprintf(out, "Waiting on %s: %s %v\n", d.ActorID, d.Prompt, d.Options)
	}

	if n := len(snap.Encounter.CombatLog); n > 0 {
		fmt.Fprintln(out, "\nRecent log:")
		for _, line := range snap.Encounter.CombatLog[max(0, n-10):] {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
}

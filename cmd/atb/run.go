package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/session"
	"github.com/KirkDiggler/rpg-atb/internal/services/encounter"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		auto  bool
		ticks int
	)

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Drive a scripted encounter tick by tick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := LoadScenario(args[0])
			if err != nil {
				return err
			}
			if ticks > 0 {
				sc.Ticks = ticks
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := a.provider(ctx)
			if err != nil {
				return err
			}
			defer closeProvider(p)

			var answers *prompter
			if !auto {
				answers = newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			}

			r := &runner{
				svc:     p.EncounterService,
				out:     cmd.OutOrStdout(),
				prompt:  answers,
				timeout: a.cfg.Combat.DecisionTimeout,
			}
			return r.run(ctx, sc)
		},
	}

	cmd.Flags().BoolVar(&auto, "auto", false, "Answer every decision with none instead of prompting")
	cmd.Flags().IntVar(&ticks, "ticks", 0, "Ticks to drive, overriding the scenario")
	return cmd
}

// runner plays one scenario against the encounter service
type runner struct {
	svc     encounter.Service
	out     io.Writer
	prompt  *prompter // nil answers none
	timeout time.Duration

	printed []string
}

func (r *runner) run(ctx context.Context, sc *Scenario) error {
	sess, err := r.svc.StartCombat(ctx, &encounter.StartCombatInput{
		ID:         sc.ID,
		Name:       sc.Name,
		DriverID:   sc.Driver,
		Combatants: sc.Combatants,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Combat %s started\n", sess.ID())

	for i, step := range sc.Plan {
		if err := r.declare(ctx, sess, step); err != nil {
			// a bad plan is a warning, the fight goes on
			fmt.Fprintf(r.out, "plan step %d: %v\n", i+1, err)
		}
	}

	for done := 0; done < sc.Ticks; {
		out, err := sess.AdvanceOneTick(ctx, sc.Driver)
		if err != nil {
			return err
		}

		snap, err := sess.Snapshot(ctx)
		if err != nil {
			return err
		}
		r.printLog(snap)

		switch out.Kind {
		case atb.StepTickComplete:
			done++
		case atb.StepAwaitingDecision:
			choice := r.ask(ctx, snap.Scheduler.PendingDecision)
			if _, err := sess.ResolveDecision(ctx, sc.Driver, out.DecisionID, choice); err != nil {
				fmt.Fprintf(r.out, "decision %s: %v\n", out.DecisionID, err)
			}
		}

		if over, winner := snap.Encounter.CheckCombatEnd(); over {
			fmt.Fprintf(r.out, "Side %s wins at tick %d\n", winner, snap.Tick())
			break
		}
	}

	if err := r.svc.EndCombat(ctx, sess.ID(), sc.Driver); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Combat %s ended\n", sess.ID())
	return nil
}

func (r *runner) declare(ctx context.Context, sess *encounter.Session, step PlanStep) error {
	if step.Ailment != nil {
		_, err := sess.ApplyAilment(ctx, step.User, step.Actor, step.Ailment.ID, step.Ailment.Severity)
		return err
	}
	_, err := sess.EnqueueAction(ctx, step.User, step.Actor, *step.Action, step.At)
	return err
}

func (r *runner) ask(ctx context.Context, d *atb.Decision) string {
	if d == nil || r.prompt == nil {
		return atb.ChoiceNone
	}
	return r.prompt.Ask(ctx, d, r.timeout)
}

func (r *runner) printLog(snap *session.Snapshot) {
	for _, line := range newEntries(r.printed, snap.Encounter.CombatLog) {
		fmt.Fprintf(r.out, "  %s\n", line)
	}
	r.printed = slices.Clone(snap.Encounter.CombatLog)
}

// newEntries returns the tail of cur not already in prev. The combat log is
// bounded, so old entries fall off the front as new ones arrive.
func newEntries(prev, cur []string) []string {
	for k := min(len(prev), len(cur)); k > 0; k-- {
		if slices.Equal(prev[len(prev)-k:], cur[:k]) {
			return cur[k:]
		}
	}
	return cur
}

// prompter reads decision answers from a line-based reader
type prompter struct {
	out   io.Writer
	lines chan string
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{out: out, lines: make(chan string)}
	go func() {
		defer close(p.lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			p.lines <- strings.TrimSpace(scanner.Text())
		}
	}()
	return p
}

// Ask shows the decision and waits for an answer. Timeouts, closed input and
// unknown answers all choose none.
func (p *prompter) Ask(ctx context.Context, d *atb.Decision, timeout time.Duration) string {
	fmt.Fprintf(p.out, "%s %s [%s] (%s): ", d.ActorID, d.Prompt, strings.Join(d.Options, "/"), timeout)

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case line, ok := <-p.lines:
		if !ok || line == "" {
			fmt.Fprintln(p.out)
			return atb.ChoiceNone
		}
		if !d.Allows(line) {
			fmt.Fprintf(p.out, "%q is not an option, choosing none\n", line)
			return atb.ChoiceNone
		}
		return line
	case <-expired:
		fmt.Fprintln(p.out, "too slow, choosing none")
		return atb.ChoiceNone
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return atb.ChoiceNone
	}
}

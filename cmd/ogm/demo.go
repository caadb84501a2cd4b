package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/syssam/velox-ogm/client"
	"github.com/syssam/velox-ogm/graph"
)

// Sample domain written by the demo.
type (
	Team struct {
		ID      *int64    `ogm:",id,internal"`
		Name    string    `ogm:"name"`
		Players []*Player `ogm:"players,rel=HAS_PLAYER"`
		Coach   *Coach    `ogm:"coach,rel=COACHED_BY"`
	}
	Player struct {
		ID       *int64  `ogm:",id,internal"`
		Name     string  `ogm:"name"`
		Number   int     `ogm:"number"`
		Team     *Team   `ogm:"team,rel=HAS_PLAYER,dir=in"`
		Mentors  *Player `ogm:"mentors,rel=MENTORS"`
		Position string  `ogm:"position"`
	}
	Coach struct {
		Name string `ogm:"name,id"`
		Team *Team  `ogm:"team,rel=COACHED_BY,dir=in"`
	}
)

// sampleTeam returns a team whose players point back at it and mentor each
// other in a ring.
func sampleTeam() *Team {
	t := &Team{Name: "Ajax"}
	t.Coach = &Coach{Name: "Michels", Team: t}
	for i, n := range []string{"Cruijff", "Neeskens", "Krol"} {
		t.Players = append(t.Players, &Player{Name: n, Number: 14 - i*2, Team: t, Position: "MF"})
	}
	for i, p := range t.Players {
		p.Mentors = t.Players[(i+1)%len(t.Players)]
	}
	return t
}

func newDemoCmd(c *cli) *cobra.Command {
	var players bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Save a sample team graph and load it back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cl, _, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer cl.Close()
			var f graph.Filter
			if !players {
				f = graph.Paths("coach")
			}
			return runDemo(ctx, cmd.OutOrStdout(), cl, f)
		},
	}
	cmd.Flags().BoolVar(&players, "players", true, "load the players along with the team")
	return cmd
}

func runDemo(ctx context.Context, out io.Writer, cl *client.Client, f graph.Filter) error {
	team := sampleTeam()
	if _, err := cl.Save(ctx, team); err != nil {
		return fmt.Errorf("saving team: %w", err)
	}
	fmt.Fprintf(out, "saved team %q with id %d\n", team.Name, *team.ID)

	got, err := client.Get[Team](ctx, cl, *team.ID, f)
	if err != nil {
		return fmt.Errorf("loading team: %w", err)
	}
	coach := "none"
	if got.Coach != nil {
		coach = got.Coach.Name
	}
	fmt.Fprintf(out, "loaded team %q coached by %s\n", got.Name, coach)
	for _, p := range got.Players {
		mentor := "none"
		if p.Mentors != nil {
			mentor = p.Mentors.Name
		}
		fmt.Fprintf(out, "  #%d %s mentors %s\n", p.Number, p.Name, mentor)
	}
	if s, ok := cl.Stats(); ok {
		fmt.Fprintf(out, "statements: %s\n", s)
	}
	return nil
}

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print node counts and the exported statement metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cl, _, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer cl.Close()
			return printStats(ctx, cmd.OutOrStdout(), cl)
		},
	}
}

func printStats(ctx context.Context, out io.Writer, cl *client.Client) error {
	for _, typ := range []any{Team{}, Player{}, Coach{}} {
		n, err := cl.Count(ctx, typ)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%T: %d\n", typ, n)
	}
	coll := cl.Collector()
	if coll == nil {
		fmt.Fprintln(out, "statement statistics are disabled")
		return nil
	}
	reg := prometheus.NewRegistry()
	if err := reg.Register(coll); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		fmt.Fprintf(out, "%s: %d series\n", mf.GetName(), len(mf.GetMetric()))
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaymux/relaymux/internal/state"
)

func stateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show recorded backend cooldowns and token usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := openStateStore()
			if err != nil {
				return err
			}
			defer closeStore()

			s, err := store.Read(cmd.Context())
			if err != nil {
				return err
			}
			printState(cmd, s, time.Now())
			return nil
		},
	}
	cmd.AddCommand(stateClearCmd())
	return cmd
}

func stateClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [backend-key]",
		Short: "Clear cooldown state for one backend, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStateStore()
			if err != nil {
				return err
			}
			defer closeStore()

			mgr := state.NewManager(store)
			cleared := 0
			_, err = mgr.Update(context.Background(), func(s state.State) bool {
				if len(args) == 1 {
					if _, ok := s[args[0]]; !ok {
						return false
					}
					delete(s, args[0])
					cleared = 1
					return true
				}
				cleared = len(s)
				for k := range s {
					delete(s, k)
				}
				return cleared > 0
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d record(s)\n", cleared)
			return nil
		},
	}
}

func printState(cmd *cobra.Command, s state.State, now time.Time) {
	out := cmd.OutOrStdout()
	if len(s) == 0 {
		fmt.Fprintln(out, "No backend state recorded")
		return
	}
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rec := s[k]
		status := "available"
		if rec.Blocked(now) {
			status = fmt.Sprintf("cooling until %s (%s left)",
				rec.UnblockAt.Format(time.RFC3339),
				rec.UnblockAt.Sub(now).Round(time.Second))
		}
		fmt.Fprintf(out, "%-40s tokens=%-8d %s\n", k, rec.UsedTokens, status)
	}
}

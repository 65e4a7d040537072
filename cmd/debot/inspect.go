package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aschepis/backscratcher/debot/memory"
	"github.com/aschepis/backscratcher/debot/personality"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var personalityCmd = &cobra.Command{
	Use:   "personality",
	Short: "Inspect or reset the bot's personality",
}

var personalityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored personality state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(engine *personality.Engine) error {
			state, err := engine.Get(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), state)
		})
	},
}

var personalityResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default personality",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(engine *personality.Engine) error {
			if err := engine.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Personality reset to defaults.")
			return nil
		})
	},
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect what the bot remembers about users",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Print a user's memory record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *memory.Ledger) error {
			rec, err := ledger.Record(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		})
	},
}

var memoryContextCmd = &cobra.Command{
	Use:   "context <user-id> [mentioned-user-id...]",
	Short: "Print the memory context a reply to this user would see",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *memory.Ledger) error {
			text, err := ledger.Context(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			if text == "" {
				text = "Nothing remembered."
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		})
	},
}

var memorySweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Prune every memory record down to its word budget",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *memory.Ledger) error {
			pruned, err := ledger.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d record(s).\n", pruned)
			return nil
		})
	},
}

func init() {
	personalityCmd.AddCommand(personalityShowCmd, personalityResetCmd)
	memoryCmd.AddCommand(memoryShowCmd, memoryContextCmd, memorySweepCmd)
}

func withEngine(fn func(*personality.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := zerolog.Nop()
	db, store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // No remedy for db close errors
	return fn(personality.NewEngine(logger, store, personality.WithOptions(cfg.Personality)))
}

func withLedger(fn func(*memory.Ledger) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := zerolog.Nop()
	db, store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // No remedy for db close errors
	return fn(memory.NewLedger(store, cfg.Memory, logger))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

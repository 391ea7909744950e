package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tycoon.ai/internal/clock"
	"tycoon.ai/internal/config"
	"tycoon.ai/internal/format"
	"tycoon.ai/internal/persistence/journal"
	"tycoon.ai/internal/persistence/kv"
	"tycoon.ai/internal/persistence/savegame"
	"tycoon.ai/internal/persistence/snapshot"
	"tycoon.ai/internal/sim/catalogs"
	"tycoon.ai/internal/sim/game"
	"tycoon.ai/internal/sim/tuning"
)

type globalFlags struct {
	dataDir    string
	configsDir string
	tuningPath string
	key        string
}

func newRootCmd(out io.Writer) *cobra.Command {
	env, envErr := config.LoadServer()
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "admin",
		Short:         "Inspect and maintain the saved game",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return fmt.Errorf("environment: %w", envErr)
			}
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&g.dataDir, "data", env.DataDir, "runtime data directory")
	root.PersistentFlags().StringVar(&g.configsDir, "configs", env.ConfigsDir, "catalog directory (empty: built-in)")
	root.PersistentFlags().StringVar(&g.tuningPath, "tuning", env.TuningPath, "path to tuning.yaml (empty: defaults)")
	root.PersistentFlags().StringVar(&g.key, "key", "", "state key (default: tuning state_key)")

	root.AddCommand(
		newShowCommand(g),
		newOfflineCommand(g),
		newExportCommand(g),
		newImportCommand(g),
		newResetCommand(g),
		newLedgerCommand(g),
	)
	return root
}

func (g *globalFlags) tuning() (tuning.Tuning, error) {
	if strings.TrimSpace(g.tuningPath) == "" {
		return tuning.Defaults(), nil
	}
	return tuning.Load(g.tuningPath)
}

func (g *globalFlags) stateKey() (string, error) {
	if g.key != "" {
		return g.key, nil
	}
	t, err := g.tuning()
	if err != nil {
		return "", err
	}
	return t.StateKey, nil
}

func (g *globalFlags) open() (kv.Store, string, error) {
	key, err := g.stateKey()
	if err != nil {
		return nil, "", err
	}
	store, err := kv.OpenSQLite(config.DBPath(g.dataDir))
	if err != nil {
		return nil, "", err
	}
	return store, key, nil
}

func (g *globalFlags) load(ctx context.Context) (snapshot.Snapshot, error) {
	store, key, err := g.open()
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	defer store.Close()
	snap, ok, err := savegame.Load(ctx, store, key, nil)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	if !ok {
		return snapshot.Snapshot{}, fmt.Errorf("no saved game under %q", key)
	}
	return snap, nil
}

type businessLine struct {
	ID       string `json:"id"`
	Amount   int    `json:"amount"`
	Working  bool   `json:"working"`
	Managed  bool   `json:"managed"`
	Profit   string `json:"profit"`
	CycleFor string `json:"cycle"`
}

type showOutput struct {
	Money      string         `json:"money"`
	Pending    string         `json:"offline_pending"`
	LastSaved  time.Time      `json:"last_saved"`
	SavedAgo   string         `json:"saved_ago"`
	Businesses []businessLine `json:"businesses"`
}

func newShowCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the saved game",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := g.load(cmd.Context())
			if err != nil {
				return err
			}
			cats, err := catalogs.Load(g.configsDir)
			if err != nil {
				return err
			}
			o := showOutput{
				Money:     format.Money(snap.Wallet.Money),
				Pending:   format.Money(snap.OfflineEarnings),
				LastSaved: snap.LastSavedTimestamp,
				SavedAgo:  format.Since(time.Since(snap.LastSavedTimestamp)),
			}
			for _, id := range cats.Businesses.Order {
				b := snap.Businesses[id]
				profit, _ := cats.Profit(id, b.Amount)
				cycle, _ := cats.TimeToProfit(id, b.Amount)
				line := businessLine{
					ID:       id,
					Amount:   b.Amount,
					Working:  b.IsWorking,
					Profit:   format.Money(profit),
					CycleFor: format.Duration(cycle),
				}
				if mid, ok := cats.ManagerForBusiness(id); ok {
					line.Managed = snap.Managers[mid].IsUnlocked
				}
				o.Businesses = append(o.Businesses, line)
			}
			return writeJSON(cmd.OutOrStdout(), o)
		},
	}
}

func newOfflineCommand(g *globalFlags) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "offline",
		Short: "Compute offline earnings the saved game would receive on start",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				now = t
			}
			snap, err := g.load(cmd.Context())
			if err != nil {
				return err
			}
			cats, err := catalogs.Load(g.configsDir)
			if err != nil {
				return err
			}
			eng := game.New(game.Config{}, cats, clock.NewManual(now), nil)
			if err := eng.Restore(snap); err != nil {
				return err
			}
			earned, settled := game.OfflineEarnings(cats, eng.View(), now)
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"elapsed":      format.Since(now.Sub(snap.LastSavedTimestamp)),
				"earned":       earned,
				"earned_text":  format.Money(earned),
				"pending_text": format.Money(snap.OfflineEarnings + earned),
				"settled":      settled,
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate at this RFC3339 time instead of now")
	return cmd
}

func newExportCommand(g *globalFlags) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the saved game to a zstd snapshot file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outPath) == "" {
				return errors.New("missing --out")
			}
			snap, err := g.load(cmd.Context())
			if err != nil {
				return err
			}
			if err := snapshot.WriteFile(outPath, snap); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "output path")
	return cmd
}

func newImportCommand(g *globalFlags) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the saved game with a snapshot file (stop the server first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(inPath) == "" {
				return errors.New("missing --in")
			}
			snap, err := snapshot.ReadFile(inPath)
			if err != nil {
				return err
			}
			store, key, err := g.open()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := savegame.Save(cmd.Context(), store, key, snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s into %s\n", inPath, key)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "snapshot path")
	return cmd
}

func newResetCommand(g *globalFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the saved game so the next start is a first run (stop the server first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}
			store, key, err := g.open()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Delete(cmd.Context(), key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", key)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}

func newLedgerCommand(g *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Print the most recent wallet ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := journal.ReadLedger(g.dataDir)
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "number of entries (0: all)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

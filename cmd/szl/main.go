package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cl "sizzle/internal/cli"
	"sizzle/internal/config"
	"sizzle/internal/ledger"
	"sizzle/internal/syncq"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL
	playerID := cfg.PlayerID

	root := &cobra.Command{
		Use:           "szl",
		Short:         "Sizzle CLI game client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")
	root.PersistentFlags().StringVar(&playerID, "player", playerID, "player id (or SZL_PLAYER_ID)")

	root.AddCommand(
		newJoinCmd(&apiBase, &playerID),
		newStateCmd(&apiBase, &playerID),
		newShopCmd(&apiBase),
		newBuyCmd(&apiBase, &playerID),
		newBonusCmd(&apiBase, &playerID),
		newAchievementsCmd(&apiBase, &playerID),
		newTopCmd(&apiBase),
		newRankCmd(&apiBase, &playerID),
		newSyncCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func requirePlayer(playerID string) (string, error) {
	id := strings.TrimSpace(playerID)
	if id == "" {
		return "", fmt.Errorf("player id required: pass --player or set SZL_PLAYER_ID")
	}
	return id, nil
}

func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func newJoinCmd(apiBase, playerID *string) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Create your burger joint (idempotent)",
		RunE: func(_ *cobra.Command, _ []string) error {
			id, err := requirePlayer(*playerID)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext()
			defer cancel()
			out, err := cl.NewClient(*apiBase).EnsurePlayer(ctx, id, name)
			if err != nil {
				return err
			}
			printState(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func newStateCmd(apiBase, playerID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show your settled balance, rate and upgrades",
		RunE: func(_ *cobra.Command, _ []string) error {
			id, err := requirePlayer(*playerID)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext()
			defer cancel()
			out, err := cl.NewClient(*apiBase).State(ctx, id)
			if err != nil {
				return err
			}
			printState(out)
			return nil
		},
	}
}

func newShopCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "shop",
		Short: "List the upgrade catalog",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := cmdContext()
			defer cancel()
			out, err := cl.NewClient(*apiBase).Upgrades(ctx)
			if err != nil {
				return err
			}
			printShop(out)
			return nil
		},
	}
}

func newBuyCmd(apiBase, playerID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <upgrade_id>",
		Short: "Buy the next level of an upgrade",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := requirePlayer(*playerID)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext()
			defer cancel()
			out, err := cl.NewClient(*apiBase).Purchase(ctx, id, args[0])
			if err != nil {
				if isNetworkError(err) {
					qErr := syncq.Push(syncq.Command{
						Method:   http.MethodPost,
						Path:     "/v1/players/" + id + "/purchase",
						Body:     map[string]any{"upgrade_id": args[0]},
						QueuedAt: time.Now().UTC(),
					})
					if qErr != nil {
						return qErr
					}
					printQueued("buy " + args[0])
					return nil
				}
				return err
			}
			printPurchase(out)
			return nil
		},
	}
}

func newBonusCmd(apiBase, playerID *string) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "bonus <amount_bucks>",
		Short: "Credit a bonus (mini-game payouts and rewards)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := requirePlayer(*playerID)
			if err != nil {
				return err
			}
			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("amount must be a number: %w", err)
			}
			micros := ledger.BucksToMicros(amount)
			ctx, cancel := cmdContext()
			defer cancel()
			out, err := cl.NewClient(*apiBase).Bonus(ctx, id, micros, source)
			if err != nil {
				if isNetworkError(err) {
					qErr := syncq.Push(syncq.Command{
						Method:   http.MethodPost,
						Path:     "/v1/players/" + id + "/bonus",
						Body:     map[string]any{"amount_micros": micros, "source": source},
						QueuedAt: time.Now().UTC(),
					})
					if qErr != nil {
						return qErr
					}
					printQueued(fmt.Sprintf("bonus %s", args[0]))
					return nil
				}
				return err
			}
			printState(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "cli", "opaque bonus source tag")
	return cmd
}

func newAchievementsCmd(apiBase, playerID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "Show achievement progress",
		RunE: func(_ *cobra.Command, _ []string) error {
			id, err := requirePlayer(*playerID)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext()
			defer cancel()
			out, err := cl.NewClient(*apiBase).Achievements(ctx, id)
			if err != nil {
				return err
			}
			printAchievements(out)
			return nil
		},
	}
}

func newTopCmd(apiBase *string) *cobra.Command {
	var by string
	var top int
	var ids string
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the leaderboard",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := cmdContext()
			defer cancel()
			var members []string
			if strings.TrimSpace(ids) != "" {
				members = strings.Split(ids, ",")
			}
			out, err := cl.NewClient(*apiBase).Leaderboard(ctx, by, top, members)
			if err != nil {
				return err
			}
			printLeaderboard(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", "balance", "ranking key: balance or rate")
	cmd.Flags().IntVar(&top, "top", 10, "number of rows")
	cmd.Flags().StringVar(&ids, "ids", "", "comma-separated player ids for a group view")
	return cmd
}

func newRankCmd(apiBase, playerID *string) *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Show your rank",
		RunE: func(_ *cobra.Command, _ []string) error {
			id, err := requirePlayer(*playerID)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext()
			defer cancel()
			out, err := cl.NewClient(*apiBase).Rank(ctx, id, by)
			if err != nil {
				return err
			}
			printRank(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", "balance", "ranking key: balance or rate")
	return cmd
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay commands queued while offline",
		RunE: func(_ *cobra.Command, _ []string) error {
			queued, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queued) == 0 {
				printInfo("nothing to sync")
				return nil
			}
			client := cl.NewClient(*apiBase)
			var remaining []syncq.Command
			replayed := 0
			for i, cmd := range queued {
				ctx, cancel := cmdContext()
				_, err := client.Do(ctx, cmd.Method, cmd.Path, cmd.Body)
				cancel()
				if err != nil {
					if isNetworkError(err) {
						remaining = append(remaining, queued[i:]...)
						break
					}
					// Domain rejection: the command can never succeed, drop it.
					printError(fmt.Errorf("dropped %s %s: %w", cmd.Method, cmd.Path, err))
					continue
				}
				replayed++
			}
			if err := syncq.Save(remaining); err != nil {
				return err
			}
			printInfo(fmt.Sprintf("replayed %d, %d still queued", replayed, len(remaining)))
			return nil
		},
	}
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var urlErr interface{ Timeout() bool }
	if errors.As(err, &urlErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "dial tcp")
}

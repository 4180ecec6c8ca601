package cli

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/halcyonvr/resonance/internal/feed"
	"github.com/halcyonvr/resonance/internal/store"
)

// openDB is a helper that opens the database for CLI commands.
func openDB() (*store.DB, error) {
	dbPath := os.Getenv("RESONANCE_DB")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}

func init() {
	feedCmd.Flags().StringVarP(&feedMode, "mode", "m", "resonant", "Ranking mode: resonant, exploratory, or all")
	feedCmd.Flags().IntVarP(&feedLimit, "limit", "n", 20, "Maximum number of entries")
	feedCmd.Flags().Float64VarP(&feedCuriosity, "curiosity", "c", 0, "Curiosity ratio override")
}

// --- profile command ---

var profileCmd = &cobra.Command{
	Use:   "profile [user]",
	Short: "Show a user's interest profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfile,
}

func runProfile(cmd *cobra.Command, args []string) error {
	userID := args[0]

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	profiles, _, err := restoreEngines(db)
	if err != nil {
		return fmt.Errorf("restore snapshots: %w", err)
	}

	snap, ok := profiles.Snapshot(userID)
	if !ok {
		fmt.Printf("No profile found for %s.\n", userID)
		return nil
	}

	fmt.Printf("## %s (half-life %.1f days)\n\n", userID, snap.HalfLifeDays)

	entries := snap.Entries
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].Topic < entries[j].Topic
	})
	for _, e := range entries {
		marker := " "
		if e.Locked {
			marker = "*"
		}
		fmt.Printf("  %s %-24s %.3f\n", marker, e.Topic, e.Value)
	}
	if len(entries) == 0 {
		fmt.Println("  (no interests recorded)")
	}

	return nil
}

// --- feed command ---

var (
	feedMode      string
	feedLimit     int
	feedCuriosity float64
)

var feedCmd = &cobra.Command{
	Use:   "feed [user]",
	Short: "Rank the content pool for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeed,
}

func runFeed(cmd *cobra.Command, args []string) error {
	userID := args[0]

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	profiles, _, err := restoreEngines(db)
	if err != nil {
		return fmt.Errorf("restore snapshots: %w", err)
	}

	ranker := feed.NewRanker(profiles, db, db, db)
	entries, err := ranker.FeedForUser(userID, feed.Options{
		Mode:           feed.Mode(feedMode),
		Limit:          feedLimit,
		CuriosityRatio: feedCuriosity,
		Now:            time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("rank feed: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No visible content for this user.")
		return nil
	}

	for i, e := range entries {
		boost := ""
		if e.CuriosityBoosted {
			boost = " [curiosity]"
		}
		fmt.Printf("%2d. [%.3f] %-12s %s by %s%s\n",
			i+1, e.Similarity, e.Label, e.Content.ID, e.Content.AuthorID, boost)
	}

	return nil
}

// --- color command ---

var colorCmd = &cobra.Command{
	Use:   "color [user]",
	Short: "Show a user's resonance color state",
	Args:  cobra.ExactArgs(1),
	RunE:  runColor,
}

func runColor(cmd *cobra.Command, args []string) error {
	userID := args[0]

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	_, colors, err := restoreEngines(db)
	if err != nil {
		return fmt.Errorf("restore snapshots: %w", err)
	}

	state := colors.State(userID, time.Now().UnixMilli())

	fmt.Printf("## %s\n\n", userID)
	fmt.Printf("  color:    %s (%s)\n", state.Color, state.Mode)
	if state.DominantCategory != "" {
		fmt.Printf("  dominant: %s\n", state.DominantCategory)
	}

	type cw struct {
		category string
		weight   float64
	}
	weights := make([]cw, 0, len(state.Weights))
	for c, w := range state.Weights {
		weights = append(weights, cw{c, w})
	}
	sort.Slice(weights, func(i, j int) bool {
		if weights[i].weight != weights[j].weight {
			return weights[i].weight > weights[j].weight
		}
		return weights[i].category < weights[j].category
	})
	for _, w := range weights {
		fmt.Printf("  %-12s %.3f\n", w.category, w.weight)
	}

	return nil
}

// --- users command ---

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users with persisted state",
	RunE:  runUsers,
}

func runUsers(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	profiles, colors, err := restoreEngines(db)
	if err != nil {
		return fmt.Errorf("restore snapshots: %w", err)
	}

	seen := map[string]bool{}
	for _, id := range profiles.UserIDs() {
		seen[id] = true
	}
	for _, id := range colors.UserIDs() {
		seen[id] = true
	}

	if len(seen) == 0 {
		fmt.Println("No users recorded.")
		return nil
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Println(id)
	}

	return nil
}

package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/0x6d61/sqlsiphon/internal/session"
)

var errNoSession = errors.New("no session file configured (use --session)")

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the resume cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached values",
	RunE:  runCacheList,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cached values",
	Long: `Purge deletes the cached values of --target, every value when no target is
given, or only the values older than --older-than.`,
	RunE: runCachePurge,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd, cachePurgeCmd)

	cacheCmd.PersistentFlags().String("target", "", "Only entries of this target URL")
	cachePurgeCmd.Flags().Duration("older-than", 0, "Only entries not updated for this long")
}

func openStore() (*session.SQLiteStore, error) {
	if settings == nil || settings.Session == "" {
		return nil, errNoSession
	}
	store, err := session.NewSQLiteStore(settings.Session)
	if err != nil {
		return nil, fmt.Errorf("failed to open session file %q: %w", settings.Session, err)
	}
	return store, nil
}

func runCacheList(cmd *cobra.Command, _ []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	target, _ := cmd.Flags().GetString("target")
	entries, err := store.List(cmd.Context(), target)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %s  %s:%s  %s = %q\n",
			e.UpdatedAt.Local().Format(time.DateTime), e.Key.Target, e.Key.Place, e.Key.Parameter, e.Key.Expression, e.Value)
	}
	fmt.Fprintf(out, "%d cached value(s)\n", len(entries))
	return nil
}

func runCachePurge(cmd *cobra.Command, _ []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	target, _ := cmd.Flags().GetString("target")
	olderThan, _ := cmd.Flags().GetDuration("older-than")
	if target != "" && olderThan > 0 {
		return errors.New("--target and --older-than cannot be combined")
	}

	var n int64
	if olderThan > 0 {
		n, err = store.Cleanup(cmd.Context(), olderThan)
	} else {
		n, err = store.Purge(cmd.Context(), target)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d cached value(s) deleted\n", n)
	return nil
}

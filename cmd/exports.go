package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/trendmerge/internal/store"
	"github.com/spf13/cobra"
)

var exLimit int

var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "List saved exports and published links",
}

var exportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent exports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		st, err := store.New(c.ExportsDir)
		if err != nil {
			return err
		}
		limit := c.RecentLimit
		if cmd.Flags().Changed("limit") {
			limit = exLimit
		}
		entries, err := st.Recent(limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "(no exports)")
			return nil
		}
		for _, e := range entries {
			exts := make([]string, 0, len(e.Files))
			for ext := range e.Files {
				exts = append(exts, ext)
			}
			sort.Strings(exts)
			fmt.Fprintf(out, "- %s  %s  %q (%d rows) [%s]\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.ID, e.Title, e.Rows, strings.Join(exts, ","))
			for _, l := range e.Links {
				fmt.Fprintf(out, "    %s: %s\n", l.Target, l.URL)
			}
		}
		return nil
	},
}

var exportsLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the most recently published links",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		st, err := store.New(c.ExportsDir)
		if err != nil {
			return err
		}
		l, err := st.Latest()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if l == nil {
			fmt.Fprintln(out, "(nothing published)")
			return nil
		}
		fmt.Fprintf(out, "%s (%s)\n", l.Title, l.UpdatedAt.Format("2006-01-02 15:04:05"))
		for _, link := range l.Links {
			fmt.Fprintf(out, "- %s %s: %s\n", link.Target, link.Name, link.URL)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportsCmd)
	exportsCmd.AddCommand(exportsListCmd)
	exportsCmd.AddCommand(exportsLatestCmd)
	exportsListCmd.Flags().IntVarP(&exLimit, "limit", "n", store.DefaultRecentLimit, "number of exports to show")
}

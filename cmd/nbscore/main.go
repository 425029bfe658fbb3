package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nbscore",
		Short:         "Score numeric and text sequences with the N/B MAX/MIN scorer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default: from config)")

	root.AddCommand(calcCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(recentCmd())
	root.AddCommand(showCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(keywordsCmd())
	root.AddCommand(archiveCmd())
	root.AddCommand(collectCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func calcCmd() *cobra.Command {
	var opts calcOptions

	cmd := &cobra.Command{
		Use:   "calc [input...]",
		Short: "Score numbers (\"1.5 2.5 3.5\") or text",
		Long: `Score numbers or text. Input is taken from the arguments, from --input,
or from stdin when the only argument is "-". Input starting with a minus
sign must follow "--" or be passed with --input.`,
		Example: `  nbscore calc 1.5 2.5 3.5 --bit 5.5
  nbscore calc -- -3 -1 2 4
  nbscore calc --input "-3 -1 2 4"
  echo "안녕하세요" | nbscore calc -`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalc(cmd.Context(), cmd.OutOrStdout(), cmd.InOrStdin(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "input to score (use for input starting with '-')")
	cmd.Flags().Float64Var(&opts.bit, "bit", 0, "bit budget (default: scorer.default_bit)")
	cmd.Flags().StringVar(&opts.category, "category", "", "category to store the calculation under")
	cmd.Flags().BoolVar(&opts.legacy, "legacy", false, "use the legacy scorer (bit 5.5, results bounded to ±100)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "output as JSON")
	return cmd
}

func searchCmd() *cobra.Command {
	var (
		fuzzy      int
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find stored calculations by text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd.OutOrStdout(), args, fuzzy, limit, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&fuzzy, "fuzzy", 0, "maximum edit distance (0 = exact match)")
	cmd.Flags().IntVar(&limit, "limit", 10, "max results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func recentCmd() *cobra.Command {
	var (
		limit      int
		mostViewed bool
		kind       string
		category   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List stored calculations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecent(cmd.Context(), cmd.OutOrStdout(), limit, mostViewed, kind, category, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "max calculations to show")
	cmd.Flags().BoolVar(&mostViewed, "most-viewed", false, "order by view count")
	cmd.Flags().StringVar(&kind, "kind", "", "only number or text calculations")
	cmd.Flags().StringVar(&category, "category", "", "only this category")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func showCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one calculation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), cmd.OutOrStdout(), args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func statsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show calculation statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), cmd.OutOrStdout(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func keywordsCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "List the most viewed inputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeywords(cmd.Context(), cmd.OutOrStdout(), limit, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max keywords to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func archiveCmd() *cobra.Command {
	var (
		typ        string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "List archived MAX/MIN results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(cmd.OutOrStdout(), typ, limit, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&typ, "type", "all", "max, min or all")
	cmd.Flags().IntVar(&limit, "limit", 20, "max records to show (0 = all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func collectCmd() *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect headlines once and score their titles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd.Context(), cmd.ErrOrStderr(), sources)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "specific sources to collect (hn,rss)")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with collection scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

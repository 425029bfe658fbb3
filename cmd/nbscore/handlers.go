package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/nbscore/internal/config"
	"github.com/elonfeng/nbscore/internal/logging"
	"github.com/elonfeng/nbscore/internal/metrics"
	"github.com/elonfeng/nbscore/internal/scheduler"
	"github.com/elonfeng/nbscore/internal/store"
	"github.com/elonfeng/nbscore/pkg/alert"
	"github.com/elonfeng/nbscore/pkg/archive"
	"github.com/elonfeng/nbscore/pkg/calc"
	"github.com/elonfeng/nbscore/pkg/nb"
	"github.com/elonfeng/nbscore/pkg/server"
	"github.com/elonfeng/nbscore/pkg/source"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *store.SQLiteStore
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	engine   *calc.Engine
}

func newApp(scorerCfg func(*config.Config) nb.Config) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.SetDefault(cfg.LogLevel)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	nbCfg := cfg.Scorer.Config
	if scorerCfg != nil {
		nbCfg = scorerCfg(cfg)
	}
	scorer, err := nb.NewScorer(nbCfg, nb.WithObserver(m))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create scorer: %w", err)
	}

	options := []calc.Option{
		calc.WithRecorder(m),
		calc.WithLogger(logger),
		calc.WithAlerts(buildAlertManager(cfg)),
	}
	if cfg.Archive.Enabled {
		options = append(options, calc.WithArchive(archive.New(cfg.Archive.Dir)))
	}

	engine := calc.NewEngine(scorer, db, calc.Options{
		MaxValues:     cfg.Scorer.MaxValues,
		TextRepeat:    cfg.Scorer.TextRepeat,
		DecimalPlaces: cfg.Scorer.DecimalPlaces,
		Normalize:     cfg.Scorer.NormalizeText,
		MinBit:        cfg.Scorer.MinBit,
		MaxBit:        cfg.Scorer.MaxBit,
	}, options...)

	return &app{cfg: cfg, logger: logger, db: db, registry: reg, metrics: m, engine: engine}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func buildSources(cfg *config.Config) []source.Source {
	filter := source.NewFilter(cfg.Filter.Keywords, cfg.Filter.ExcludeKeywords)
	var sources []source.Source

	if cfg.Sources.HackerNews.Enabled {
		sources = append(sources, source.NewHackerNews(cfg.Sources.HackerNews.Limit, filter))
	}
	if cfg.Sources.RSS.Enabled {
		feeds := make([]source.RSSFeed, len(cfg.Sources.RSS.Feeds))
		for i, f := range cfg.Sources.RSS.Feeds {
			feeds[i] = source.RSSFeed{Name: f.Name, URL: f.URL}
		}
		sources = append(sources, source.NewRSS(feeds, filter))
	}

	return sources
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers, cfg.Alerts.MinDifference)
}

type calcOptions struct {
	input      string
	bit        float64
	category   string
	legacy     bool
	jsonOutput bool
}

// calcInput picks the input from --input, a lone "-" (stdin) or the
// positional arguments, in that order.
func calcInput(in io.Reader, args []string, opts calcOptions) (string, error) {
	switch {
	case opts.input != "":
		if len(args) > 0 {
			return "", errors.New("pass the input either with --input or as arguments, not both")
		}
		return opts.input, nil
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case len(args) == 0:
		return "", errors.New("no input: pass arguments, --input or - to read stdin")
	}
	return strings.Join(args, " "), nil
}

func runCalc(ctx context.Context, out io.Writer, in io.Reader, args []string, opts calcOptions) error {
	input, err := calcInput(in, args, opts)
	if err != nil {
		return err
	}

	var scorerCfg func(*config.Config) nb.Config
	if opts.legacy {
		scorerCfg = func(*config.Config) nb.Config { return nb.LegacyConfig() }
	}
	a, err := newApp(scorerCfg)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.engine.Calculate(ctx, calc.Request{
		Input:    input,
		Bit:      opts.bit,
		Category: opts.category,
	})
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		return printJSON(out, c)
	}
	return printCalculation(out, c)
}

func runSearch(ctx context.Context, out io.Writer, args []string, fuzzy, limit int, jsonOutput bool) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	found, err := a.engine.Search(ctx, calc.SearchRequest{
		Text:  strings.Join(args, " "),
		Fuzzy: fuzzy,
		Limit: limit,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return printList(out, found, jsonOutput, "no matching calculations")
}

func runRecent(ctx context.Context, out io.Writer, limit int, mostViewed bool, kind, category string, jsonOutput bool) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	var list []store.Calculation
	if mostViewed {
		list, err = a.db.ListMostViewed(ctx, limit)
	} else {
		list, err = a.db.ListCalculations(ctx, store.ListOpts{Kind: kind, Category: category, Limit: limit})
	}
	if err != nil {
		return fmt.Errorf("list calculations: %w", err)
	}
	return printList(out, list, jsonOutput, "no calculations yet (try: nbscore calc hello)")
}

func runShow(ctx context.Context, out io.Writer, id string, jsonOutput bool) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.db.GetCalculation(ctx, id, false)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no calculation with id %s", id)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(out, c)
	}
	return printCalculation(out, c)
}

func runStats(ctx context.Context, out io.Writer, jsonOutput bool) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.db.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	if jsonOutput {
		return printJSON(out, st)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "calculations\t%d\n", st.TotalCalculations)
	fmt.Fprintf(w, "views\t%d\n", st.TotalViews)
	fmt.Fprintf(w, "average max\t%.4f\n", st.AverageMax)
	fmt.Fprintf(w, "average min\t%.4f\n", st.AverageMin)
	for _, kind := range slices.Sorted(maps.Keys(st.ByKind)) {
		fmt.Fprintf(w, "kind %s\t%d\n", kind, st.ByKind[kind])
	}
	for _, cat := range slices.Sorted(maps.Keys(st.ByCategory)) {
		fmt.Fprintf(w, "category %s\t%d\n", cat, st.ByCategory[cat])
	}
	if st.LastCalculation != nil {
		fmt.Fprintf(w, "last\t%s\n", st.LastCalculation.Format(time.RFC3339))
	}
	return w.Flush()
}

func runKeywords(ctx context.Context, out io.Writer, limit int, jsonOutput bool) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	keywords, err := a.db.TopKeywords(ctx, limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(out, keywords)
	}
	if len(keywords) == 0 {
		fmt.Fprintln(out, "no keywords yet")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VIEWS\tCALCULATIONS\tKEYWORD")
	for _, k := range keywords {
		fmt.Fprintf(w, "%d\t%d\t%s\n", k.Views, k.Calculations, truncate(k.Keyword, 60))
	}
	return w.Flush()
}

func runArchive(out io.Writer, typ string, limit int, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a := archive.New(cfg.Archive.Dir)

	var recs []archive.Record
	switch strings.ToLower(typ) {
	case "max":
		recs, err = a.List(archive.TypeMax)
	case "min":
		recs, err = a.List(archive.TypeMin)
	case "all", "":
		recs, err = a.All()
	default:
		return fmt.Errorf("unknown archive type %q (want max, min or all)", typ)
	}
	if err != nil {
		return err
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	if jsonOutput {
		return printJSON(out, recs)
	}
	if len(recs) == 0 {
		fmt.Fprintf(out, "archive %s is empty\n", a.Dir())
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tVALUE\tINPUT\tTIME")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%.10f\t%s\t%s\n", r.Type, r.Value, truncate(r.Input, 40), r.Timestamp.Format(time.RFC3339))
	}
	return w.Flush()
}

func runCollect(ctx context.Context, out io.Writer, filterSources []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	sources, err := selectSources(buildSources(a.cfg), filterSources)
	if err != nil {
		return err
	}

	sched := scheduler.New(a.engine, sources, a.cfg.Schedule.ParseCollectInterval(), a.metrics, a.logger)
	sum, err := sched.CollectOnce(ctx)
	for _, name := range slices.Sorted(maps.Keys(sum.BySource)) {
		fmt.Fprintf(out, "  %s: %d scored\n", name, sum.BySource[name])
	}
	fmt.Fprintf(out, "\ntotal: %d headlines, %d scored, %d failed\n", sum.Collected, sum.Scored, sum.Failed)
	return err
}

func runServe(port int) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return newServer(a, port).Run(ctx)
}

func runDaemon(port int) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sources := buildSources(a.cfg)
	sched := scheduler.New(a.engine, sources, a.cfg.Schedule.ParseCollectInterval(), a.metrics, a.logger)
	srv := newServer(a, port)

	g, gctx := errgroup.WithContext(ctx)
	if len(sources) > 0 {
		g.Go(func() error {
			if err := sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("scheduler: %w", err)
			}
			return nil
		})
	} else {
		a.logger.Warn("no sources enabled, scheduler not started")
	}
	g.Go(func() error {
		return srv.Run(gctx)
	})

	err = g.Wait()
	a.logger.Info("shut down")
	return err
}

func newServer(a *app, port int) *server.Server {
	if port == 0 {
		port = a.cfg.Server.Port
	}
	return server.New(a.engine, server.Options{
		Port:      port,
		RateLimit: a.cfg.Server.RateLimit,
		RateBurst: a.cfg.Server.RateBurst,
		Metrics:   promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		Logger:    a.logger,
	})
}

func selectSources(all []source.Source, names []string) ([]source.Source, error) {
	if len(names) == 0 {
		return all, nil
	}

	wanted := make(map[string]bool)
	for _, s := range names {
		wanted[strings.ToLower(strings.TrimSpace(s))] = true
	}
	var out []source.Source
	for _, s := range all {
		if wanted[string(s.Name())] || wanted[shortName(s.Name())] {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no matching enabled sources for: %s", strings.Join(names, ", "))
	}
	return out, nil
}

func shortName(st source.SourceType) string {
	if st == source.SourceHackerNews {
		return "hn"
	}
	return string(st)
}

func printCalculation(out io.Writer, c *store.Calculation) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "id\t%s\n", c.ID)
	fmt.Fprintf(w, "type\t%s\n", c.Kind)
	fmt.Fprintf(w, "input\t%s\n", c.Input)
	fmt.Fprintf(w, "category\t%s\n", c.Category)
	fmt.Fprintf(w, "bit\t%g\n", c.Bit)
	fmt.Fprintf(w, "views\t%d\n", c.ViewCount)
	for _, r := range c.Results {
		label := "result"
		if r.Calculation > 0 {
			label = fmt.Sprintf("result %d", r.Calculation)
		}
		fmt.Fprintf(w, "%s\tmax %.10f\tmin %.10f\tdiff %.10f\n", label, r.NBMax, r.NBMin, r.Difference)
	}
	return w.Flush()
}

func printList(out io.Writer, list []store.Calculation, jsonOutput bool, empty string) error {
	if jsonOutput {
		return printJSON(out, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(out, empty)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tMAX\tMIN\tVIEWS\tINPUT")
	for _, c := range list {
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%d\t%s\n",
			c.ID, c.Kind, c.NBMax, c.NBMin, c.ViewCount, truncate(c.Input, 40))
	}
	return w.Flush()
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

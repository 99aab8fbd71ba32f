package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	naturaldate "github.com/tj/go-naturaldate"

	"github.com/okarlsen/daytally/internal/classify"
	"github.com/okarlsen/daytally/internal/config"
	"github.com/okarlsen/daytally/internal/gcal"
	"github.com/okarlsen/daytally/internal/ics"
	"github.com/okarlsen/daytally/internal/model"
	"github.com/okarlsen/daytally/internal/msgraph"
	"github.com/okarlsen/daytally/internal/reconcile"
	"github.com/okarlsen/daytally/internal/scheduler"
	"github.com/okarlsen/daytally/internal/source"
	"github.com/okarlsen/daytally/internal/store"
	"github.com/okarlsen/daytally/internal/timecalc"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "daytally",
	Short: "Personal time accounting against your calendars",
	Long:  "daytally reconciles the time you actually logged against what your calendars said you would do, and shows you the hours nobody accounted for.",
}

var dayCmd = &cobra.Command{
	Use:   "day [date]",
	Short: "Show logged entries and unaccounted gaps for a day",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDay,
}

var plannedCmd = &cobra.Command{
	Use:   "planned [date]",
	Short: "Show calendar events not yet covered by logged time",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlanned,
}

var rangeCmd = &cobra.Command{
	Use:   "range [start-date]",
	Short: "Show entries over several days, split at local midnights",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRange,
}

var targetsCmd = &cobra.Command{
	Use:   "targets [start-date]",
	Short: "Show progress against your standing targets",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTargets,
}

var targetsSetCmd = &cobra.Command{
	Use:   "set <category> <hours>",
	Short: "Add a target for a category",
	Args:  cobra.ExactArgs(2),
	RunE:  runTargetsSet,
}

var targetsRmCmd = &cobra.Command{
	Use:   "rm <target-id>",
	Short: "Remove a target",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetsRm,
}

var summaryCmd = &cobra.Command{
	Use:   "summary [start-date]",
	Short: "Total logged time by category",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSummary,
}

var logCmd = &cobra.Command{
	Use:   "log <title>",
	Short: "Log a block of time ending now",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLog,
}

var categorizeCmd = &cobra.Command{
	Use:   "categorize <event-id>",
	Short: "Turn a planned event into a logged entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runCategorize,
}

var autoCategorizeCmd = &cobra.Command{
	Use:   "auto-categorize [date]",
	Short: "File all unlinked imported events under suggested categories",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAutoCategorize,
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Remove duplicate entries, keeping the earliest of each",
	RunE:  runDedupe,
}

var scrubCmd = &cobra.Command{
	Use:   "scrub-future",
	Short: "Delete unlinked entries that start in the future",
	RunE:  runScrub,
}

var importICSCmd = &cobra.Command{
	Use:   "import-ics <path-or-url>",
	Short: "Import planned events from an iCalendar feed",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportICS,
}

var syncStatusCmd = &cobra.Command{
	Use:   "sync-status",
	Short: "Show imported calendar state per source",
	RunE:  runSyncStatus,
}

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Calendar source management",
}

var calendarAuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate a live calendar source",
	RunE:  runCalendarAuth,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the background reminder loop",
	RunE:  runWatch,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running reminder loop",
	RunE:  runStop,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open the config file in your editor",
	RunE:  runConfig,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	plannedCmd.Flags().Bool("google", true, "Include live Google Calendar events")
	plannedCmd.Flags().Bool("outlook", true, "Include live Outlook events")
	rangeCmd.Flags().Int("days", 7, "Number of days to show")
	rangeCmd.Flags().Bool("google", false, "Also query live Google Calendar (default imported only)")
	rangeCmd.Flags().Bool("outlook", false, "Also query live Outlook (default imported only)")
	summaryCmd.Flags().Int("days", 7, "Number of days to total")
	targetsCmd.Flags().Int("days", 7, "Number of days to measure")
	targetsSetCmd.Flags().String("type", "hours_per_week", "Target type: hours_per_day, hours_per_week, min_hours or max_hours")
	logCmd.Flags().String("category", "", "Category name (defaults to a keyword suggestion)")
	logCmd.Flags().String("from", "", "Start time, natural language (e.g. '2 hours ago')")
	logCmd.Flags().String("to", "", "End time, natural language (defaults to now)")
	logCmd.Flags().StringSlice("tags", nil, "Tags for the entry")
	categorizeCmd.Flags().String("category", "", "Category name")
	categorizeCmd.Flags().String("title", "", "Override the event title on the entry")
	importICSCmd.Flags().String("calendar", "Personal", "Calendar name recorded on imported events")
	importICSCmd.Flags().Int("days", 31, "Window size in days, starting today")
	calendarAuthCmd.Flags().Bool("google", false, "Authenticate Google Calendar instead of Outlook")

	calendarCmd.AddCommand(calendarAuthCmd)
	targetsCmd.AddCommand(targetsSetCmd, targetsRmCmd)
	rootCmd.AddCommand(dayCmd, plannedCmd, rangeCmd, summaryCmd, targetsCmd, logCmd,
		categorizeCmd, autoCategorizeCmd, dedupeCmd, scrubCmd,
		importICSCmd, syncStatusCmd, calendarCmd, watchCmd, stopCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// app bundles everything a command needs. Close releases the database.
type app struct {
	cfg    *config.Config
	db     *store.DB
	svc    *reconcile.Service
	loc    *time.Location
	logger *slog.Logger
}

func (a *app) Close() { a.db.Close() }

func openApp() (*app, error) {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	dbPath, err := config.DBPath()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.EnsureUser(cfg.User.ID, "", cfg.User.Timezone); err != nil {
		db.Close()
		return nil, err
	}

	var sources []source.Source
	if cfg.Outlook.Enabled {
		auth := msgraph.NewAuth(cfg.Outlook.ClientID, cfg.Outlook.TenantID, logger)
		sources = append(sources, msgraph.NewClient(auth, logger))
	}
	if cfg.Google.Enabled {
		sources = append(sources, gcal.NewClient(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CalendarID, logger))
	}
	sources = append(sources,
		source.NewStored(db, cfg.User.ID, model.EventSourceAppleICS),
		source.NewStored(db, cfg.User.ID, model.EventSourceAppleEventKit),
	)

	agg := source.NewAggregator(sources,
		time.Duration(cfg.Reconcile.SourceTimeoutSecs)*time.Second, logger)

	var classifier classify.Provider = classify.Rules{}
	if cfg.Classify.Provider == "openai" {
		ai, err := classify.NewOpenAI(cfg.Classify.APIKey, cfg.Classify.Model)
		if err != nil {
			logger.Warn("openai classifier unavailable, using keyword rules", "error", err)
		} else {
			classifier = ai
		}
	}

	svc := reconcile.NewService(db, agg, classifier, reconcile.Options{
		SuppressionThreshold: cfg.Reconcile.SuppressionThreshold,
		StatsExcludeHours:    cfg.Reconcile.StatsExcludeHours,
		MaxRangeDays:         cfg.Reconcile.MaxRangeDays,
		DefaultTimezone:      cfg.User.Timezone,
	}, logger)

	return &app{
		cfg:    cfg,
		db:     db,
		svc:    svc,
		loc:    timecalc.LoadLocation(cfg.User.Timezone, ""),
		logger: logger,
	}, nil
}

// resolveDay turns a CLI date argument into YYYY-MM-DD, accepting both that
// form and natural language ("yesterday", "last monday"). Empty means today.
func resolveDay(arg string, loc *time.Location) string {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return ""
	}
	if _, err := time.ParseInLocation("2006-01-02", arg, loc); err == nil {
		return arg
	}
	if t, err := naturaldate.Parse(arg, time.Now().In(loc), naturaldate.WithDirection(naturaldate.Past)); err == nil {
		return t.In(loc).Format("2006-01-02")
	}
	return arg
}

func runDay(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	day := ""
	if len(args) > 0 {
		day = resolveDay(args[0], a.loc)
	}

	view, err := a.svc.Day(cmd.Context(), a.cfg.User.ID, day)
	if err != nil {
		return err
	}
	fmt.Print(renderDay(view, a.loc))
	return nil
}

func runPlanned(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	day := ""
	if len(args) > 0 {
		day = resolveDay(args[0], a.loc)
	}

	planned, err := a.svc.Planned(cmd.Context(), a.cfg.User.ID, day, sourceOptions(cmd))
	if err != nil {
		return err
	}
	fmt.Print(renderPlanned(planned, a.loc))
	return nil
}

// sourceOptions reads the shared --google/--outlook flags; each command sets
// its own defaults.
func sourceOptions(cmd *cobra.Command) reconcile.SourceOptions {
	google, _ := cmd.Flags().GetBool("google")
	outlook, _ := cmd.Flags().GetBool("outlook")
	return reconcile.SourceOptions{IncludeGoogle: google, IncludeOutlook: outlook}
}

func runRange(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	days, _ := cmd.Flags().GetInt("days")
	startDay := ""
	if len(args) > 0 {
		startDay = resolveDay(args[0], a.loc)
	}

	view, err := a.svc.Range(cmd.Context(), a.cfg.User.ID, startDay, days, sourceOptions(cmd))
	if err != nil {
		return err
	}
	fmt.Print(renderRange(view, a.loc))
	return nil
}

func runTargets(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	days, _ := cmd.Flags().GetInt("days")
	startDay := ""
	if len(args) > 0 {
		startDay = resolveDay(args[0], a.loc)
	}

	report, err := a.svc.TargetReport(cmd.Context(), a.cfg.User.ID, startDay, days)
	if err != nil {
		return err
	}
	fmt.Print(renderTargets(report))
	return nil
}

func runTargetsSet(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	hours, err := strconv.ParseFloat(args[1], 64)
	if err != nil || hours <= 0 {
		return fmt.Errorf("hours must be a positive number, got %q", args[1])
	}
	targetType, _ := cmd.Flags().GetString("type")

	t := store.Target{
		UserID:   a.cfg.User.ID,
		Category: args[0],
		Type:     targetType,
		Value:    hours,
	}
	if err := a.db.CreateTarget(&t); err != nil {
		return err
	}
	fmt.Printf("Target %s: %s %.1fh (%s)\n", t.ID, t.Category, t.Value, t.Type)
	return nil
}

func runTargetsRm(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ok, err := a.db.DeleteTarget(a.cfg.User.ID, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no target %s", args[0])
	}
	fmt.Println("Target removed.")
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	days, _ := cmd.Flags().GetInt("days")
	startDay := ""
	if len(args) > 0 {
		startDay = resolveDay(args[0], a.loc)
	}

	sum, err := a.svc.Summarize(cmd.Context(), a.cfg.User.ID, startDay, days)
	if err != nil {
		return err
	}
	fmt.Print(renderSummary(sum))
	return nil
}

func parseWhen(arg string, loc *time.Location) (time.Time, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, arg); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", arg, loc); err == nil {
		return t, nil
	}
	t, err := naturaldate.Parse(arg, time.Now().In(loc), naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse time %q", arg)
	}
	return t, nil
}

func runLog(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	category, _ := cmd.Flags().GetString("category")
	fromArg, _ := cmd.Flags().GetString("from")
	toArg, _ := cmd.Flags().GetString("to")
	tags, _ := cmd.Flags().GetStringSlice("tags")

	from, err := parseWhen(fromArg, a.loc)
	if err != nil {
		return err
	}
	to, err := parseWhen(toArg, a.loc)
	if err != nil {
		return err
	}

	entry, err := a.svc.QuickLog(cmd.Context(), a.cfg.User.ID, reconcile.QuickLogInput{
		Title:        strings.Join(args, " "),
		CategoryName: category,
		Start:        from,
		End:          to,
		Tags:         tags,
		Device:       a.cfg.User.Device,
	})
	if err != nil {
		return err
	}
	fmt.Print(renderEntry(entry, a.loc))
	return nil
}

func runCategorize(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	category, _ := cmd.Flags().GetString("category")
	title, _ := cmd.Flags().GetString("title")

	entry, err := a.svc.Categorize(cmd.Context(), a.cfg.User.ID, reconcile.CategorizeInput{
		EventID:      args[0],
		CategoryName: category,
		Title:        title,
	})
	if err != nil {
		return err
	}
	fmt.Print(renderEntry(entry, a.loc))
	return nil
}

func runAutoCategorize(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	day := ""
	if len(args) > 0 {
		day = resolveDay(args[0], a.loc)
	}
	start, end := timecalc.DayBounds(time.Now().UTC(), day, a.loc)

	created, err := a.svc.AutoCategorize(cmd.Context(), a.cfg.User.ID, start, end)
	if err != nil {
		return err
	}
	fmt.Printf("Filed %d event(s).\n", created)
	return nil
}

func runDedupe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	deleted, err := a.db.DedupeEntries(a.cfg.User.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d duplicate entr%s.\n", deleted, plural(deleted, "y", "ies"))
	return nil
}

func runScrub(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	start, _ := timecalc.DayBounds(time.Now().UTC(), "", a.loc)
	deleted, err := a.db.ScrubFutureEntries(a.cfg.User.ID, start)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d future entr%s.\n", deleted, plural(deleted, "y", "ies"))
	return nil
}

func runImportICS(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	calendarName, _ := cmd.Flags().GetString("calendar")
	days, _ := cmd.Flags().GetInt("days")

	start, _ := timecalc.DayBounds(time.Now().UTC(), "", a.loc)
	end := start.In(a.loc).AddDate(0, 0, days).UTC()

	res, err := ics.NewImporter(a.db).Import(cmd.Context(), args[0], a.cfg.User.ID, calendarName, start, end, a.loc)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d event(s), replaced %d.\n", res.Upserted, res.Deleted)
	return nil
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.db.ImportStatus(a.cfg.User.ID)
	if err != nil {
		return err
	}
	fmt.Print(renderSyncStatus(status))
	return nil
}

func runCalendarAuth(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	useGoogle, _ := cmd.Flags().GetBool("google")
	ctx := cmd.Context()

	if useGoogle {
		client := gcal.NewClient(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CalendarID, logger)
		fmt.Println("Open this URL and authorize access:")
		fmt.Println("  " + client.AuthURL())
		fmt.Print("Paste the code here: ")
		code, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading code: %w", err)
		}
		if err := client.Exchange(ctx, strings.TrimSpace(code)); err != nil {
			return err
		}
		fmt.Println("Google Calendar connected.")
		return nil
	}

	auth := msgraph.NewAuth(cfg.Outlook.ClientID, cfg.Outlook.TenantID, logger)
	dc, err := auth.StartDeviceCodeFlow(ctx)
	if err != nil {
		return err
	}
	fmt.Println(dc.Message)

	tokens, err := auth.PollForToken(ctx, dc.DeviceCode, dc.Interval)
	if err != nil {
		return err
	}
	if err := msgraph.SaveTokens(tokens); err != nil {
		return err
	}
	fmt.Println("Outlook calendar connected.")
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return scheduler.New(a.cfg, a.db, a.logger).Run(ctx)
}

func runStop(cmd *cobra.Command, args []string) error {
	pid, err := scheduler.ReadPID()
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending stop signal: %w", err)
	}

	fmt.Printf("Sent stop signal to daytally (PID %d)\n", pid)
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data := fmt.Sprintf(`[user]
id = "%s"
timezone = "%s"
device = "%s"

[reconcile]
suppression_threshold = %.1f
stats_exclude_hours = %d
source_timeout_seconds = %d
max_range_days = %d

[google]
enabled = false
client_id = ""
client_secret = ""
calendar_id = "%s"

[outlook]
enabled = false
client_id = ""
tenant_id = "common"

[classify]
provider = "%s"
model = "%s"
api_key = ""

[reminder]
enabled = %t
interval_minutes = %d
`,
			cfg.User.ID, cfg.User.Timezone, cfg.User.Device,
			cfg.Reconcile.SuppressionThreshold, cfg.Reconcile.StatsExcludeHours,
			cfg.Reconcile.SourceTimeoutSecs, cfg.Reconcile.MaxRangeDays,
			cfg.Google.CalendarID,
			cfg.Classify.Provider, cfg.Classify.Model,
			cfg.Reminder.Enabled, cfg.Reminder.IntervalMinutes,
		)
		if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	fmt.Printf("Opening %s with %s...\n", configPath, editor)

	proc := os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	}
	process, err := os.StartProcess(editor, []string{editor, configPath}, &proc)
	if err != nil {
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	_, err = process.Wait()
	return err
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"socialcache/pkg/auth"
	"socialcache/pkg/cachepath"
	"socialcache/pkg/database"
	"socialcache/pkg/logger"
	"socialcache/pkg/ui"
	"socialcache/pkg/ui/tui"
)

var (
	// Fetch command flags
	fetchNetwork   string
	fetchAccount   int
	fetchImageType string
	fetchInput     string
	fetchRootDir   string
	fetchDatabase  string
	fetchParallel  int
	fetchTimeout   time.Duration
	fetchUseTUI    bool
	fetchNotify    bool
	fetchVerbose   bool
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [identifier=url]...",
	Short: "Download images into the local cache",
	Long: `Download images for one social network account into the local cache.

Each target is identifier=url, or a bare url that doubles as its identifier.
Targets can also be read from a file with one "identifier url" pair per line.

When --account is given, the bearer token stored with 'socialcache auth set'
for that network and account is sent with every request.`,
	Example: `  # Cache two Facebook profile pictures
  socialcache fetch --network facebook 1001=https://graph.example.com/1001/picture 1002=https://graph.example.com/1002/picture

  # Cache OneDrive thumbnails listed in a file, with a live dashboard
  socialcache fetch --network onedrive --account 7 --type thumbnail --input thumbs.txt --tui`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&fetchNetwork, "network", "n", "", "social network (facebook, onedrive, dropbox)")
	fetchCmd.Flags().IntVarP(&fetchAccount, "account", "a", 0, "account id recorded with each image and used to look up its token")
	fetchCmd.Flags().StringVarP(&fetchImageType, "type", "t", database.ImageTypeFull, "image type (thumbnail, full)")
	fetchCmd.Flags().StringVarP(&fetchInput, "input", "i", "", "read targets from file (- for stdin)")
	fetchCmd.Flags().StringVar(&fetchRootDir, "root-dir", "", "cache root directory")
	fetchCmd.Flags().StringVar(&fetchDatabase, "database", "", "cache index database path")
	fetchCmd.Flags().IntVar(&fetchParallel, "max-concurrent", 0, "maximum concurrent downloads")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 0, "per-download timeout")
	fetchCmd.Flags().BoolVar(&fetchUseTUI, "tui", false, "show an interactive dashboard")
	fetchCmd.Flags().BoolVar(&fetchNotify, "notify", false, "send a desktop notification when done")
	fetchCmd.Flags().BoolVarP(&fetchVerbose, "verbose", "v", false, "print every result on its own line")
	_ = fetchCmd.MarkFlagRequired("network")
}

func runFetch(cmd *cobra.Command, args []string) error {
	network, ok := cachepath.ParseSocialNetwork(fetchNetwork)
	if !ok {
		return fmt.Errorf("unknown network %q", fetchNetwork)
	}
	if fetchImageType != database.ImageTypeFull && fetchImageType != database.ImageTypeThumbnail {
		return fmt.Errorf("unknown image type %q", fetchImageType)
	}

	targets, err := collectTargets(args)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return errors.New("no targets given")
	}

	flags := map[string]interface{}{
		"root-dir":       fetchRootDir,
		"database":       fetchDatabase,
		"max-concurrent": fetchParallel,
		"timeout":        fetchTimeout,
	}
	if fetchUseTUI {
		// console logs would tear the dashboard
		flags["log-level"] = "error"
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	log := logger.GetLogger().WithField("network", network.String())

	opts := fetchOptions{
		Network:     network,
		AccountID:   fetchAccount,
		ImageType:   fetchImageType,
		AccessToken: lookupToken(network, fetchAccount, log),
		Targets:     targets,
	}

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		stop := startMetricsServer(cfg.Metrics.Listen, registry, log)
		defer stop()
	}

	session, err := newFetchSession(cfg, opts, registry, log)
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !fetchUseTUI {
		ui.PrintInfo("Network", network.String())
		ui.PrintInfo("Cache", cfg.Cache.RootDirectory)
	}

	succeeded, failed, err := runSession(ctx, cancel, session, network, len(targets))
	if fetchNotify {
		if nerr := ui.NewNotifier().NotifyFetchComplete(network.String(), succeeded, failed); nerr != nil {
			log.WithError(nerr).Debug("Desktop notification failed")
		}
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(targets))
	}
	return nil
}

// runSession drives the session through the dashboard or the progress line
func runSession(ctx context.Context, cancel context.CancelFunc, session *fetchSession, network cachepath.SocialNetwork, total int) (succeeded, failed int, err error) {
	if !fetchUseTUI {
		display := ui.NewProgressDisplay(os.Stdout, network.String(), total, fetchVerbose)
		_, err = session.Run(ctx, progressObserver{display})
		display.Complete()
		succeeded, failed = display.Counts()
		return succeeded, failed, err
	}

	dashboard := tui.New(network.String(), session)
	type outcome struct {
		results []fetchResult
		err     error
	}
	finished := make(chan outcome, 1)
	go func() {
		results, err := session.Run(ctx, dashboard)
		dashboard.Done()
		finished <- outcome{results, err}
	}()

	if err := dashboard.Run(); err != nil {
		cancel()
		<-finished
		return 0, 0, fmt.Errorf("dashboard failed: %w", err)
	}
	if dashboard.Interrupted() {
		cancel()
	}

	out := <-finished
	for _, r := range out.results {
		if r.Path == "" {
			failed++
		} else {
			succeeded++
		}
	}
	ui.PrintSuccess(fmt.Sprintf("Cached %d of %d images for %s", succeeded, total, network))
	return succeeded, failed, out.err
}

// progressObserver feeds engine notifications to the progress line
type progressObserver struct {
	display *ui.ProgressDisplay
}

func (p progressObserver) Queued(string, string) {}

func (p progressObserver) Result(url, identifier, path string) {
	p.display.Record(url, path)
}

// collectTargets merges positional targets with the --input file
func collectTargets(args []string) ([]target, error) {
	var targets []target
	for _, arg := range args {
		t, err := parseTarget(arg)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	if fetchInput == "" {
		return targets, nil
	}

	in := os.Stdin
	if fetchInput != "-" {
		f, err := os.Open(fetchInput)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	fromFile, err := readTargets(in)
	if err != nil {
		return nil, err
	}
	return append(targets, fromFile...), nil
}

// lookupToken returns the stored bearer token for the account, if any
func lookupToken(network cachepath.SocialNetwork, account int, log logger.Logger) string {
	if account == 0 {
		return ""
	}

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("Credential storage unavailable, fetching without token")
		return ""
	}

	token, err := manager.AccessToken(network.String(), strconv.Itoa(account))
	if err != nil {
		log.WithField("account", account).Debug("No stored token for account")
		return ""
	}
	return token
}

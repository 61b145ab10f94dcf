package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/repositories"
	"github.com/desertthunder/spm/internal/services"
	"github.com/desertthunder/spm/internal/shared"
	"github.com/desertthunder/spm/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// DefaultConfigPath is read when neither --config nor SPM_CONFIG is given.
const DefaultConfigPath = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	engine     *tasks.Engine

	authOpts    []services.AuthOption
	clientOpts  []services.ClientOption
	openBrowser func(string) error

	mu sync.Mutex // guards config writes from token refreshes
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer

	// AuthOptions and ClientOptions are appended after the options derived from Config.
	AuthOptions   []services.AuthOption
	ClientOptions []services.ClientOption

	// OpenBrowser defaults to [shared.OpenBrowser].
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	r := &Runner{
		configPath:  opts.ConfigPath,
		logger:      opts.Logger,
		output:      opts.Output,
		authOpts:    opts.AuthOptions,
		clientOpts:  opts.ClientOptions,
		openBrowser: opts.OpenBrowser,
	}
	r.setConfig(opts.Config)
	return r
}

// setConfig replaces the active configuration and rebuilds the engine from it.
func (r *Runner) setConfig(config *shared.Config) {
	r.config = config
	r.engine = tasks.NewEngine(tasks.EngineOpts{
		Concurrency: config.Sync.Concurrency,
		Logger:      r.logger,
	})
	if config.Log.Level != "" {
		shared.SetLogLevel(r.logger, shared.ParseLevel(config.Log.Level))
	}
}

// app builds the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "spm",
		Usage:   "Export and import Spotify playlists",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   DefaultConfigPath,
				Sources: cli.EnvVars("SPM_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.load,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistsCommand, exportCommand, importCommand, serveCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// load reads the configuration named by --config before any command runs.
func (r *Runner) load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	config, err := shared.LoadOrDefault(path)
	if err != nil {
		return ctx, err
	}

	r.configPath = path
	r.setConfig(config)
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	r.logger.Debug("configuration loaded", "path", path)
	return ctx, nil
}

// authService builds the OAuth client from the configured credentials.
func (r *Runner) authService() (*services.AuthService, error) {
	opts := append([]services.AuthOption{services.WithAuthLogger(r.logger)}, r.authOpts...)
	return services.NewAuthService(r.config.Credentials.Spotify, opts...)
}

// spotifyClient returns a Web API client for the saved tokens. Refreshed tokens are written back to the config file.
func (r *Runner) spotifyClient(ctx context.Context) (*services.SpotifyClient, error) {
	token := r.config.Credentials.Spotify.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: no saved token, run `spm auth login` first", shared.ErrNotAuthorized)
	}

	auth, err := r.authService()
	if err != nil {
		return nil, err
	}

	ts := auth.NotifyingTokenSource(ctx, token, r.persistToken)
	return services.NewSpotifyClient(ctx, ts, r.clientOptions()...), nil
}

// clientOptions derives Web API client options from the sync config.
func (r *Runner) clientOptions() []services.ClientOption {
	sc := r.config.Sync
	opts := []services.ClientOption{
		services.WithClientLogger(r.logger),
		services.WithRateLimit(sc.RateLimit),
		services.WithPager(services.PagerOpts{PageSize: sc.PageSize, MaxPages: sc.MaxPages}),
	}
	if sc.RequestTimeout.Duration > 0 {
		opts = append(opts, services.WithHTTPClient(&http.Client{Timeout: sc.RequestTimeout.Duration}))
	}
	return append(opts, r.clientOpts...)
}

// persistToken stores a refreshed token in the config file. Failures are logged, not returned.
func (r *Runner) persistToken(token *oauth2.Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		r.logger.Warn("refreshed token not saved", "error", err)
		return
	}
	if r.configPath == "" {
		return
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		r.logger.Warn("refreshed token not saved", "path", r.configPath, "error", err)
		return
	}
	r.logger.Debug("refreshed token saved", "path", r.configPath)
}

// recordRun stores run history. The database is optional for the CLI, so failures only warn.
func (r *Runner) recordRun(run models.Run) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		r.logger.Warn("run history unavailable", "error", err)
		return
	}
	defer db.Close()

	if err := repositories.NewRunRepository(db).Create(&run); err != nil {
		r.logger.Warn("failed to record run", "kind", run.Kind, "error", err)
	}
}

// watchProgress prints progress updates until the returned stop func is called.
func (r *Runner) watchProgress() (chan<- tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("  %s\n", update.Message)
		}
	}()
	return progress, func() {
		close(progress)
		<-done
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

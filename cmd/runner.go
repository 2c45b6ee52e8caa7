package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reelx/internal/credentials"
	"github.com/desertthunder/reelx/internal/pipeline"
	"github.com/desertthunder/reelx/internal/repositories"
	"github.com/desertthunder/reelx/internal/services"
	"github.com/desertthunder/reelx/internal/session"
	"github.com/desertthunder/reelx/internal/shared"
	"github.com/desertthunder/reelx/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Connections are opened on first use, so commands that need neither the database nor the
// backend (e.g. serve) never touch them.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	db          *sql.DB
	cookies     *repositories.CookieRepository
	predictions *repositories.PredictionRepository
	jar         *credentials.PersistentJar
	client      *pipeline.Client
	session     *session.Session
	backend     services.Backend
	movies      services.MovieProvider
	exporter    *tasks.ExportEngine
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Backend, Movies and DB replace the lazily built defaults, mainly for tests.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	DB         *sql.DB
	Backend    services.Backend
	Movies     services.MovieProvider
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
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Config.API.Timeout()}
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
		backend:    opts.Backend,
		movies:     opts.Movies,
	}
	if opts.DB != nil {
		r.cookies = repositories.NewCookieRepository(opts.DB)
		r.predictions = repositories.NewPredictionRepository(opts.DB)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, moviesCommand, studentsCommand, predictCommand, tuiCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config, applies environment overrides and sets the log level.
// A missing config file is not an error; the embedded defaults are used.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = config
			r.logger.Debug("loaded config", "path", path)
		}
	}

	if err := shared.ApplyEnv(r.config); err != nil {
		return ctx, err
	}
	r.httpClient.Timeout = r.config.API.Timeout()
	return ctx, nil
}

// Close releases the database connection, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SetLogger replaces the runner's logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// database opens the configured database and applies pending migrations.
func (r *Runner) database(ctx context.Context) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.cookies = repositories.NewCookieRepository(db)
	r.predictions = repositories.NewPredictionRepository(db)
	return db, nil
}

// predictionRepo returns the prediction history store.
func (r *Runner) predictionRepo(ctx context.Context) (*repositories.PredictionRepository, error) {
	if _, err := r.database(ctx); err != nil {
		return nil, err
	}
	return r.predictions, nil
}

// api builds the cookie jar, request pipeline and session on first use.
//
// Cookies persist in the database; when it cannot be opened the jar lives in memory for this run.
func (r *Runner) api(ctx context.Context) (*pipeline.Client, error) {
	if r.client != nil {
		return r.client, nil
	}

	base, err := url.Parse(r.config.API.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid api.base_url %q", shared.ErrInvalidConfig, r.config.API.BaseURL)
	}

	var store credentials.CookieStore
	if _, err := r.database(ctx); err != nil {
		r.logger.Warn("cookies will not persist", "error", err)
	} else {
		store = r.cookies
	}

	jar, err := credentials.NewPersistentJar(store, r.logger, base)
	if err != nil {
		return nil, err
	}
	accessor, err := credentials.NewJarAccessor(jar, r.config.API.BaseURL, r.config.API.AccessCookie, r.config.API.CSRFCookie)
	if err != nil {
		return nil, err
	}

	httpClient := *r.httpClient
	httpClient.Jar = jar

	navigator := pipeline.NavigatorFunc(func(route string) {
		r.logger.Debug("navigate", "route", route)
	})

	client, err := pipeline.NewClient(pipeline.Options{
		BaseURL:     r.config.API.BaseURL,
		HTTPClient:  &httpClient,
		Credentials: accessor,
		CSRFHeader:  r.config.API.CSRFHeader,
		LoginRoute:  r.config.API.LoginRoute,
		Navigator:   navigator,
		Coalesce:    r.config.API.CoalesceRefresh,
		RateLimit:   r.config.API.RateLimit,
		Timeout:     r.config.API.Timeout(),
		Logger:      shared.WithLogger(r.logger, "component", "pipeline"),
	})
	if err != nil {
		return nil, err
	}

	sess := session.New(client, session.Opts{
		Navigator:  navigator,
		LoginRoute: r.config.API.LoginRoute,
		Logger:     shared.WithLogger(r.logger, "component", "session"),
	})
	client.OnExpired(sess)

	r.jar = jar
	r.client = client
	r.session = sess
	if r.backend == nil {
		r.backend = services.NewBackendService(client)
	}
	return client, nil
}

// authSession returns the session, running the startup check once.
func (r *Runner) authSession(ctx context.Context) (*session.Session, error) {
	if _, err := r.api(ctx); err != nil {
		return nil, err
	}
	if st := r.session.State(); !st.CheckComplete {
		r.session.Check(ctx)
	}
	return r.session, nil
}

// requireAuth checks the session and fails with a hint to log in when it is not authenticated.
func (r *Runner) requireAuth(ctx context.Context) error {
	sess, err := r.authSession(ctx)
	if err != nil {
		return err
	}
	if _, err := sess.Guard(ctx); err != nil {
		return fmt.Errorf("%w: run `reelx auth login` first", err)
	}
	return nil
}

// backendService returns the backend client, building the pipeline when none was injected.
func (r *Runner) backendService(ctx context.Context) (services.Backend, error) {
	if r.backend != nil {
		return r.backend, nil
	}
	if _, err := r.api(ctx); err != nil {
		return nil, err
	}
	return r.backend, nil
}

// movieProvider returns the TMDB client.
func (r *Runner) movieProvider() (services.MovieProvider, error) {
	if r.movies != nil {
		return r.movies, nil
	}

	tmdb, err := services.NewTMDBService(services.TMDBOpts{
		BaseURL:      r.config.TMDB.BaseURL,
		ImageBaseURL: r.config.TMDB.ImageBaseURL,
		AccessToken:  r.config.TMDB.AccessToken,
		Language:     r.config.TMDB.Language,
		CacheSize:    r.config.TMDB.CacheSize,
		HTTPClient:   r.httpClient,
	})
	if err != nil {
		return nil, err
	}
	r.movies = tmdb
	return tmdb, nil
}

// exportEngine returns the student export engine.
func (r *Runner) exportEngine(ctx context.Context) (*tasks.ExportEngine, error) {
	if r.exporter != nil {
		return r.exporter, nil
	}
	backend, err := r.backendService(ctx)
	if err != nil {
		return nil, err
	}
	r.exporter = tasks.NewExportEngine(backend, shared.WithLogger(r.logger, "component", "export"))
	return r.exporter, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

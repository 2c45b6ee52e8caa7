// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reelx/internal/formatter"
	"github.com/desertthunder/reelx/internal/services"
)

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing, initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles authentication against the backend
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the backend session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in with a username or email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Account username"},
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Account email, used when no username is given"},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Usage:    "Account password",
						Sources:  cli.EnvVars("REELX_PASSWORD"),
						Required: true,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "register",
				Usage: "Create an account and log in",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Account username", Required: true},
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Account email", Required: true},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Usage:    "Account password",
						Sources:  cli.EnvVars("REELX_PASSWORD"),
						Required: true,
					},
					&cli.StringFlag{Name: "confirm", Usage: "Repeat the password (defaults to --password)"},
				},
				Action: r.AuthRegister,
			},
			{
				Name:   "logout",
				Usage:  "End the session and forget stored cookies",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show whether the stored session is authenticated",
				Flags:  jsonFlags(),
				Action: r.AuthStatus,
			},
			{
				Name:  "import",
				Usage: "Import session cookies from a browser request (DevTools > Copy as cURL)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
				},
				Action: r.AuthImport,
			},
		},
	}
}

// moviesCommand handles TMDB movie lookups
func moviesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "movies",
		Aliases: []string{"movie", "m"},
		Usage:   "Search The Movie Database",
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search movies by title",
				Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: "page", Usage: "Result page", Value: 1},
				}, jsonFlags()...),
				Action: r.MoviesSearch,
			},
			{
				Name:  "trending",
				Usage: "List trending movies",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "window", Usage: "Trending window: day or week"},
					&cli.IntFlag{Name: "limit", Usage: "Number of movies to show (default from config)"},
				}, jsonFlags()...),
				Action: r.MoviesTrending,
			},
			{
				Name:      "open",
				Usage:     "Open a movie's page in the browser",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.MoviesOpen,
			},
		},
	}
}

// studentsCommand handles the backend student collection
func studentsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "students",
		Usage: "Manage your students",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List students one page at a time",
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: "page", Usage: "Page number", Value: 1},
					&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Filter by name or student ID"},
					&cli.StringFlag{Name: "branch", Aliases: []string{"b"}, Usage: "Filter by branch"},
					&cli.StringFlag{Name: "ordering", Usage: "Sort field, prefix with - for descending", Value: services.DefaultStudentOrdering},
				}, jsonFlags()...),
				Action: r.StudentsList,
			},
			{
				Name:  "add",
				Usage: "Add a student",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Full name", Required: true},
					&cli.StringFlag{Name: "student-id", Usage: "Student ID (at most 10 characters)", Required: true},
					&cli.StringFlag{Name: "branch", Aliases: []string{"b"}, Usage: "Branch", Required: true},
				},
				Action: r.StudentsAdd,
			},
			{
				Name:      "delete",
				Usage:     "Delete a student and show the page it was on",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Usage: "Page the student is listed on", Value: 1},
				},
				Action: r.StudentsDelete,
			},
			{
				Name:  "export",
				Usage: "Export every student to JSON or CSV",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Export format: json or csv", Value: formatter.FormatJSON},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory"},
					&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Filter by name or student ID"},
					&cli.StringFlag{Name: "branch", Aliases: []string{"b"}, Usage: "Filter by branch"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent page fetchers", Value: 3},
					&cli.FloatFlag{Name: "rate", Usage: "Requests per second", Value: 5},
				},
				Action: r.StudentsExport,
			},
		},
	}
}

// predictCommand handles stock price predictions
func predictCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "predict",
		Usage: "Stock price predictions",
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Predict the next closing price for a ticker",
				Arguments: []cli.Argument{&cli.StringArg{Name: "ticker"}},
				Flags: append([]cli.Flag{
					&cli.BoolFlag{Name: "save", Usage: "Record the prediction in local history", Value: true},
				}, jsonFlags()...),
				Action: r.PredictRun,
			},
			{
				Name:      "stock",
				Usage:     "Run the full model for a ticker (requires login)",
				Arguments: []cli.Argument{&cli.StringArg{Name: "ticker"}},
				Flags:     jsonFlags(),
				Action:    r.PredictStock,
			},
			{
				Name:  "history",
				Usage: "Show recorded predictions",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "ticker", Aliases: []string{"t"}, Usage: "Only show this ticker"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of records", Value: 20},
				}, jsonFlags()...),
				Action: r.PredictHistory,
			},
			{
				Name:      "forget",
				Usage:     "Delete a recorded prediction",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.PredictForget,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive movie search.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for movie search",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-file", Usage: "Where to write logs while the TUI runs", Value: "./tmp/reelx-tui.log"},
		},
		Action: r.TUI,
	}
}

// serveCommand runs the local development backend.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local development backend",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "Listen host (default from config)"},
			&cli.IntFlag{Name: "port", Usage: "Listen port (default from config)"},
			&cli.StringSliceFlag{Name: "user", Usage: "Seed an account as username:password (repeatable)"},
		},
		Action: r.Serve,
	}
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/courseshera/coursesearch/internal/config"
	"github.com/courseshera/coursesearch/internal/courseapi"
	"github.com/courseshera/coursesearch/internal/output"
	"github.com/courseshera/coursesearch/internal/resilience"
	"github.com/courseshera/coursesearch/internal/search"
	"github.com/courseshera/coursesearch/pkg/models"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usage = `Usage: coursesearch <command> [flags] [query...]

Commands:
  search     hybrid search over course materials
  ask        grounded answer with numbered sources
  courses    list courses
  materials  list uploaded materials, narrowed by --course-id and --category
  shell      interactive session; "?question" asks, other lines search,
             ":courses", ":materials" and ":status" list, ":q" quits

Run "coursesearch <command> --help" for flags.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type app struct {
	svc    *search.Service
	api    *courseapi.Client
	writer *output.Writer
	opts   search.Options
	logger zerolog.Logger
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}
	cmd := args[0]
	switch cmd {
	case "search", "ask", "courses", "materials", "shell":
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return exitUsage
	}

	fs := pflag.NewFlagSet("coursesearch "+cmd, pflag.ContinueOnError)
	fs.SetOutput(stderr)

	cfg, err := config.Load("", fs, args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "coursesearch: %v\n", err)
		return exitUsage
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := zerolog.New(stderr).Level(level).With().Timestamp().Logger()

	format, _ := output.ParseFormat(cfg.Output)
	exec := resilience.NewExecutor(resilience.Config{
		Attempts: cfg.Retry.MaxAttempts,
		Breaker:  resilience.BreakerConfig{Disabled: !cfg.Retry.BreakerEnabled},
	}, logger)

	client, err := courseapi.New(courseapi.Config{
		BaseURL:            cfg.APIURL,
		Token:              cfg.APIToken,
		Timeout:            cfg.Timeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}, exec, logger)
	if err != nil {
		fmt.Fprintf(stderr, "coursesearch: %v\n", err)
		return exitUsage
	}
	logger.Debug().Str("api_url", cfg.APIURL).Str("command", cmd).Msg("starting coursesearch")

	a := &app{
		svc:    search.NewService(client, logger),
		api:    client,
		writer: output.NewWriter(format, cfg.Color && colorTerminal(stdout)),
		opts: search.Options{
			CourseID: cfg.CourseID,
			Category: models.Category(cfg.Category),
			TopK:     cfg.TopK,
			Language: cfg.Language,
			Symbol:   cfg.Symbol,
		},
		logger: logger,
		stdout: stdout,
		stderr: stderr,
	}

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	switch cmd {
	case "search", "ask":
		if query == "" {
			fmt.Fprintf(stderr, "coursesearch %s: a query is required\n", cmd)
			return exitUsage
		}
		if err := a.dispatch(ctx, cmd, query); err != nil {
			return a.fail(err)
		}
	case "courses":
		if err := a.courses(ctx); err != nil {
			return a.fail(err)
		}
	case "materials":
		if err := a.materials(ctx); err != nil {
			return a.fail(err)
		}
	case "shell":
		if err := a.shell(ctx, stdin); err != nil {
			return a.fail(err)
		}
	}
	return exitOK
}

func (a *app) dispatch(ctx context.Context, cmd, query string) error {
	if cmd == "ask" {
		view, err := a.svc.Ask(ctx, query, a.opts)
		if err != nil {
			return fmt.Errorf("ask: %w", err)
		}
		return a.writer.WriteAsk(a.stdout, query, view)
	}
	hits, err := a.svc.Query(ctx, query, a.opts)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return a.writer.WriteHits(a.stdout, query, hits)
}

func (a *app) courses(ctx context.Context) error {
	courses, err := a.svc.Courses(ctx)
	if err != nil {
		return fmt.Errorf("courses: %w", err)
	}
	return a.writer.WriteCourses(a.stdout, courses)
}

func (a *app) materials(ctx context.Context) error {
	materials, err := a.svc.Materials(ctx, a.opts)
	if err != nil {
		return fmt.Errorf("materials: %w", err)
	}
	return a.writer.WriteMaterials(a.stdout, materials)
}

// status prints the breaker kept for each API operation used so far.
func (a *app) status() {
	states := a.api.Breakers()
	if len(states) == 0 {
		fmt.Fprintln(a.stdout, "No api calls yet.")
		return
	}
	for _, s := range states {
		fmt.Fprintf(a.stdout, "%-16s %-9s requests=%d failures=%d\n", s.Operation, s.State, s.Requests, s.Failures)
	}
}

// shell reads one request per line until EOF, ":q" or cancellation. Failed
// requests are reported and the session continues.
func (a *app) shell(ctx context.Context, stdin io.Reader) error {
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(a.stderr, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(a.stderr)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		var err error
		switch {
		case line == "":
			continue
		case line == ":q" || line == ":quit":
			return nil
		case line == ":courses":
			err = a.courses(ctx)
		case line == ":materials":
			err = a.materials(ctx)
		case line == ":status":
			a.status()
		case strings.HasPrefix(line, "?"):
			q := strings.TrimSpace(strings.TrimPrefix(line, "?"))
			if q == "" {
				continue
			}
			err = a.dispatch(ctx, "ask", q)
		default:
			err = a.dispatch(ctx, "search", line)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			a.report(err)
		}
	}
}

func (a *app) fail(err error) int {
	if errors.Is(err, context.Canceled) {
		return exitError
	}
	a.report(err)
	return exitError
}

func (a *app) report(err error) {
	var apiErr *courseapi.APIError
	switch {
	case errors.As(err, &apiErr):
		a.logger.Debug().Int("status", apiErr.StatusCode).Str("operation", apiErr.Operation).Msg("api error")
		fmt.Fprintf(a.stderr, "coursesearch: %s\n", apiErr.Detail)
	case resilience.BreakerOpen(err):
		fmt.Fprintf(a.stderr, "coursesearch: course api unavailable, try again shortly (%v)\n", err)
	default:
		fmt.Fprintf(a.stderr, "coursesearch: %v\n", err)
	}
}

func colorTerminal(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

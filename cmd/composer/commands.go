package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	cli "github.com/urfave/cli/v3"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/app"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/config"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/repository"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/workflow"
)

func startCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "Start an execution and run it to the first review gate",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "Source page URL", Required: true},
			&cli.StringFlag{Name: "model", Usage: "LLM model override for this execution"},
			&cli.StringFlag{Name: "operator", Usage: "Operator ID recorded on the execution", Sources: cli.EnvVars("USER")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withEngine(ctx, cmd, func(engine *workflow.Engine) error {
				res, err := engine.Start(ctx, domain.ExecutionInput{
					SourceURL:  strings.TrimSpace(cmd.String("url")),
					Model:      cmd.String("model"),
					OperatorID: cmd.String("operator"),
				})
				return reportResult(cmd.Root().Writer, res, err)
			})
		},
	}
}

func resumeCommand() *cli.Command {
	return &cli.Command{
		Name:  "resume",
		Usage: "Submit a review decision for a suspended execution",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Execution ID", Required: true},
			&cli.StringFlag{Name: "gate", Usage: "Gate the decision answers", Required: true},
			&cli.BoolFlag{Name: "approve", Usage: "Approve the gate"},
			&cli.BoolFlag{Name: "reject", Usage: "Reject the gate"},
			&cli.StringFlag{Name: "comments", Usage: "Reviewer comments"},
			&cli.StringFlag{Name: "by", Usage: "Reviewer identity", Sources: cli.EnvVars("USER")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			approve, reject := cmd.Bool("approve"), cmd.Bool("reject")
			if approve == reject {
				return errors.New("exactly one of --approve or --reject is required")
			}
			return withEngine(ctx, cmd, func(engine *workflow.Engine) error {
				res, err := engine.Resume(ctx, cmd.String("id"), domain.Decision{
					GateID:    cmd.String("gate"),
					Approved:  approve,
					Comments:  cmd.String("comments"),
					DecidedBy: cmd.String("by"),
				})
				return reportResult(cmd.Root().Writer, res, err)
			})
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Print the stored execution record",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Execution ID", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withStore(ctx, cmd, func(store repository.ExecutionRepository) error {
				exec, err := store.Get(ctx, cmd.String("id"))
				if err != nil {
					return err
				}
				return printJSON(cmd.Root().Writer, exec)
			})
		},
	}
}

func pendingCommand() *cli.Command {
	return &cli.Command{
		Name:  "pending",
		Usage: "Print the gate a suspended execution is waiting on",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Execution ID", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withStore(ctx, cmd, func(store repository.ExecutionRepository) error {
				exec, err := store.Get(ctx, cmd.String("id"))
				if err != nil {
					return err
				}
				if exec.Status != domain.StatusSuspended || exec.Suspension == nil {
					_, err := fmt.Fprintf(cmd.Root().Writer, "execution %s is %s, nothing pending\n", exec.ID, exec.Status)
					return err
				}
				return printJSON(cmd.Root().Writer, exec.Suspension)
			})
		},
	}
}

// loadConfig reads the config file named by --config and applies the
// global overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadFile(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if driver := cmd.String("store"); driver != "" {
		cfg.Store.Driver = driver
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	if level := cmd.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	cfg.Logging.Format = "console"
	cfg.Logging.Output = "stderr"
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return app.NewLogger(cfg).With().Str("component", "cli").Logger()
}

// withEngine builds the full engine, runs fn and releases every resource.
func withEngine(ctx context.Context, cmd *cli.Command, fn func(*workflow.Engine) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, nil, newLogger(cfg))
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))
	return fn(a.Engine)
}

// withStore opens only the execution store, so read commands need no LLM key.
func withStore(ctx context.Context, cmd *cli.Command, fn func(repository.ExecutionRepository) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := repository.Open(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// reportResult prints res and returns err so the process exits non-zero on
// failures. The result is printed even then, since it records how far the
// run got.
func reportResult(w io.Writer, res *workflow.ExecutionResult, err error) error {
	if res != nil && res.ExecutionID != "" {
		if perr := printJSON(w, res); perr != nil {
			return perr
		}
	}
	if err != nil {
		return fmt.Errorf("%s error: %w", domain.KindOf(err), err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

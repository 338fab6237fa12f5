// Package cli implements ledgerctl, the command-line surface of the ledger.
// Every command prints a JSON envelope on stdout and exits with a code
// derived from the error category.
package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// DateLayout is the accepted format of every date flag
const DateLayout = "2006-01-02"

// Version is stamped at build time with -ldflags "-X ...cli.Version=v1.2.3"
var Version = "dev"

// Environment fallbacks for the company and actor flags
const (
	EnvCompany = "LEDGER_COMPANY"
	EnvActor   = "LEDGER_ACTOR"
)

type rootOptions struct {
	configFile string
	company    string
	actor      string
	store      string
	events     string
}

// NewRootCommand creates the root CLI command with all subcommands registered
func NewRootCommand() *cobra.Command {
	o := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "ledgerctl",
		Short:   "Double-entry general ledger",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&o.configFile, "config", "", "config file (default: config.toml in ., ./config or /etc/ledger)")
	flags.StringVar(&o.company, "company", os.Getenv(EnvCompany), "company ID ($"+EnvCompany+")")
	flags.StringVar(&o.actor, "actor", os.Getenv(EnvActor), "acting user ID ($"+EnvActor+")")
	flags.StringVar(&o.store, "store", "", "ledger store: postgres, sqlite or memory (default: database.driver)")
	flags.StringVar(&o.events, "events", "", `append domain events as JSON lines to this file ("-" for stderr)`)

	rootCmd.AddCommand(
		newAccountCommand(o),
		newTransactionCommand(o),
		newPeriodCommand(o),
		newReportCommand(o),
		newMigrateCommand(o),
	)
	return rootCmd
}

// Execute runs the CLI with args and returns the process exit code. Errors
// are written to stdout as an error envelope.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	if werr := writeJSON(stdout, NewErrorResponse(err)); werr != nil {
		_, _ = io.WriteString(stderr, err.Error()+"\n")
	}
	return ExitCodeOf(err)
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	return config.LoadFrom(o.configFile)
}

// commandFunc runs against a wired App and returns the response to print
type commandFunc func(ctx context.Context, a *App) (Response, error)

// run builds the App, runs fn and prints its response
func (o *rootOptions) run(cmd *cobra.Command, fn commandFunc) (err error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	eventsOut, closeEvents, err := openEventsOutput(o.events, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeEvents()) }()

	ctx := logger.WithCommand(cmd.Context(), cmd.CommandPath())
	if o.company != "" {
		ctx = logger.WithCompanyID(ctx, o.company)
	}
	if o.actor != "" {
		ctx = logger.WithActorID(ctx, o.actor)
	}

	app, err := NewApp(ctx, cfg, appOptions{store: o.store, eventsOut: eventsOut})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		err = errors.Join(err, app.Close(closeCtx))
	}()
	ctx = logger.WithContext(ctx, app.Logger)

	resp, err := fn(ctx, app)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), resp)
}

func (o *rootOptions) companyID() (uuid.UUID, error) {
	return parseRequiredUUID("company", o.company)
}

func (o *rootOptions) actorID() (uuid.UUID, error) {
	return parseRequiredUUID("actor", o.actor)
}

func parseRequiredUUID(name, value string) (uuid.UUID, error) {
	if strings.TrimSpace(value) == "" {
		return uuid.Nil, usageErrorf("--%s is required", name)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, usageErrorf("--%s: invalid ID %q", name, value)
	}
	return id, nil
}

func parseDate(name, value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, usageErrorf("--%s: want a date like 2024-03-31, got %q", name, value)
	}
	return t, nil
}

// parseOptionalDate returns nil for an empty value
func parseOptionalDate(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := parseDate(name, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseAmount parses an empty string as zero
func parseAmount(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, usageErrorf("invalid amount %q", value)
	}
	return d, nil
}

// today returns the current UTC date
func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

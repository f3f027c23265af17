package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fundflow-dev/fundflow/internal/config"
	"github.com/fundflow-dev/fundflow/internal/ledger"
	"github.com/fundflow-dev/fundflow/internal/logging"
	"github.com/fundflow-dev/fundflow/internal/oplog"
	"github.com/fundflow-dev/fundflow/internal/store"
	"github.com/fundflow-dev/fundflow/internal/store/postgres"
	"github.com/fundflow-dev/fundflow/internal/store/sqlite"
)

type globalOptions struct {
	dir        string
	configPath string
	verbose    bool
}

// project is an opened fundflow project: its config, store and ledger.
type project struct {
	dir    string
	cfg    *config.Config
	store  store.Store
	ledger *ledger.Service
	logger logging.Logger
	close  func() error
}

// loadConfig finds the project config. An explicit --config wins;
// otherwise fundflow.yaml and then fundflow.toml are tried in --dir.
func (o *globalOptions) loadConfig() (string, *config.Config, error) {
	dir, err := filepath.Abs(o.dir)
	if err != nil {
		return "", nil, fmt.Errorf("resolving path: %w", err)
	}
	path := o.configPath
	if path == "" {
		path = filepath.Join(dir, config.FileName)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if alt := filepath.Join(dir, "fundflow.toml"); fileExists(alt) {
				path = alt
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return "", nil, err
	}
	config.ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return "", nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return dir, cfg, nil
}

// open loads the config, opens the configured store and builds the
// ledger service. logOut receives settlement events when non-nil.
func (o *globalOptions) open(ctx context.Context, logOut io.Writer) (*project, error) {
	dir, cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	var logger logging.Logger = logging.Nop
	if logOut != nil {
		logger = log.New(logOut, "", log.LstdFlags)
	}

	st, closeFn, err := openStore(ctx, dir, cfg)
	if err != nil {
		return nil, err
	}

	conv, err := cfg.Converter()
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	base, maxDelay, err := cfg.Settlement.Backoff()
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	svc, err := ledger.New(st, ledger.Options{
		Converter: conv,
		Logger:    logger,
		Retry: ledger.RetryPolicy{
			MaxAttempts: cfg.Settlement.MaxAttempts,
			BaseDelay:   base,
			MaxDelay:    maxDelay,
		},
	})
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	return &project{dir: dir, cfg: cfg, store: st, ledger: svc, logger: logger, close: closeFn}, nil
}

// openCmd opens the project for a CLI command, logging to stderr with
// --verbose.
func (o *globalOptions) openCmd(cmd *cobra.Command) (*project, error) {
	var logOut io.Writer
	if o.verbose {
		logOut = cmd.ErrOrStderr()
	}
	return o.open(cmd.Context(), logOut)
}

// openStore opens the configured backend. The embedded sqlite schema is
// created on open; postgres is migrated explicitly with `fundflow migrate`.
func openStore(ctx context.Context, dir string, cfg *config.Config) (store.Store, func() error, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		st, err := postgres.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return st, st.Close, nil
	default:
		st, err := sqlite.Open(cfg.ResolveDSN(dir))
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, nil, fmt.Errorf("migrating sqlite store: %w", err)
		}
		return st, st.Close, nil
	}
}

// migrator is implemented by both store backends.
type migrator interface {
	Migrate(ctx context.Context) error
}

// userID resolves a --user flag, given as a transfer tag, to a user ID.
func (p *project) userID(ctx context.Context, tag string) (string, error) {
	if tag == "" {
		return "", errors.New("--user is required")
	}
	r, err := p.ledger.VerifyRecipient(ctx, tag)
	if err != nil {
		if errors.Is(err, ledger.ErrRecipientNotFound) {
			return "", fmt.Errorf("unknown user %q", tag)
		}
		return "", err
	}
	return r.ID, nil
}

// recordOp appends to the operations log. The ledger change has already
// committed, so a failure is only reported.
func (p *project) recordOp(cmd *cobra.Command, user, summary, ref string) {
	if tag, err := ledger.NormalizeTag(user); err == nil {
		user = tag
	}
	err := oplog.Open(p.dir).Append(oplog.Entry{
		At:      time.Now(),
		Command: strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name()+" "),
		User:    user,
		Summary: summary,
		Ref:     ref,
	})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to write operations log: %v\n", err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

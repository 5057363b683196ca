package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/caja/internal/auth"
	"github.com/mesh-intelligence/caja/internal/config"
	"github.com/mesh-intelligence/caja/internal/logger"
	"github.com/mesh-intelligence/caja/internal/paths"
	"github.com/mesh-intelligence/caja/internal/session"
	"github.com/mesh-intelligence/caja/pkg/caja"
)

// app is what a command runs against: the loaded configuration, the open
// store and the session.
type app struct {
	configDir string
	cfg       *config.Config
	store     *caja.Store
	auth      *auth.Manager
	log       *slog.Logger
	out       io.Writer
}

// loadConfig resolves directories and applies flag overrides.
func loadConfig() (string, *config.Config, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return "", nil, sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return "", nil, sysError(err)
	}
	dataDir, err := paths.ResolveDataDir(flags.dataDir, cfg.DataDir)
	if err != nil {
		return "", nil, sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	cfg.DataDir = dataDir
	if flags.backend != "" {
		cfg.Backend = flags.backend
		if err := cfg.Validate(); err != nil {
			return "", nil, userError(err)
		}
	}
	return configDir, cfg, nil
}

// openApp loads configuration, opens and initializes the store and resumes
// any saved session.
func openApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	configDir, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, userError(err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, sysError(fmt.Errorf("create data directory: %w", err))
	}
	store, err := caja.Open(ctx, cfg.Store(), log)
	if err != nil {
		return nil, sysError(fmt.Errorf("open storage: %w", err))
	}
	if err := store.Initialize(ctx); err != nil {
		store.Close()
		return nil, sysError(err)
	}

	secrets, err := session.NewSecretStore(cfg.Session.Store, cfg.Session.Service, paths.SecretsFile(configDir), log)
	if err != nil {
		store.Close()
		return nil, userError(err)
	}
	mgr := auth.NewManager(store, session.NewVault(secrets, cfg.Session.MaxAge), log)
	mgr.Init(ctx)

	return &app{
		configDir: configDir,
		cfg:       cfg,
		store:     store,
		auth:      mgr,
		log:       log,
		out:       cmd.OutOrStdout(),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing storage", "error", err)
	}
}

// anyPermission marks commands that only need a logged-in user.
const anyPermission = ""

// withApp opens the app, checks the session holds perm and runs fn.
func withApp(cmd *cobra.Command, perm string, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if perm == anyPermission {
		if !a.auth.Session().IsAuthenticated() {
			return userError(auth.ErrUnauthenticated)
		}
	} else if err := a.auth.Require(perm); err != nil {
		return userError(fmt.Errorf("%w: %s", err, perm))
	}

	ctx := auth.WithSession(cmd.Context(), a.auth.Session())
	ctx = logger.With(logger.Into(ctx, a.log), "command", cmd.CommandPath())
	if u := a.auth.Session().User; u != nil {
		ctx = logger.With(ctx, "user", u.Username)
	}
	return fn(ctx, a)
}

// emit writes v as JSON in --json mode and otherwise calls text.
func (a *app) emit(v any, text func(w io.Writer)) error {
	if flags.jsonMode {
		return writeJSON(a.out, v)
	}
	text(a.out)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeTable prints a header, a dashed rule and rows through a tabwriter,
// trimming trailing padding.
func writeTable(w io.Writer, header []string, rows [][]string) {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	rule := make([]string, len(header))
	for i, h := range header {
		rule[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(rule, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	tw.Flush()
	for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, userError(fmt.Errorf("invalid id %q", s))
	}
	return id, nil
}

func money(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

// checkRows reports a zero row count as a missing target.
func checkRows(n int64, err error, what string, id int64) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return userError(fmt.Errorf("%s %d not found", what, id))
	}
	return nil
}

package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fundflow-dev/fundflow/internal/config"
)

func newInitCommand() *cobra.Command {
	var name string
	var baseCurrency string
	var format string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new fundflow project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.OutOrStdout(), absDir, name, baseCurrency, format)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "platform name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&baseCurrency, "base-currency", "USD", "currency every balance is kept in")
	cmd.Flags().StringVar(&format, "format", "yaml", "config format: yaml or toml")

	return cmd
}

func runInit(out io.Writer, dir, name, baseCurrency, format string) error {
	var cfgName string
	switch strings.ToLower(format) {
	case "yaml", "yml":
		cfgName = config.FileName
	case "toml":
		cfgName = "fundflow.toml"
	default:
		return fmt.Errorf("unknown config format %q", format)
	}

	for _, d := range []string{"import", filepath.Join("import", "processed"), "exports"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfgPath := filepath.Join(dir, cfgName)
	if fileExists(cfgPath) {
		return fmt.Errorf("%s already exists", cfgPath)
	}
	cfg := config.Default(name)
	cfg.Platform.BaseCurrency = strings.ToUpper(strings.TrimSpace(baseCurrency))
	if cfg.Platform.BaseCurrency != "USD" {
		// The shipped rate table is quoted against USD.
		cfg.Currency.Rates = map[string]string{}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	gitignore := "*.db\n*.db-wal\n*.db-shm\nexports/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	fmt.Fprintf(out, "Initialized fundflow project at %s (%s)\n", dir, cfgName)
	return nil
}

package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/reschivon/autoforge/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize autoforge configuration interactively",
	Long: `Guides you through setting up autoforge configuration step by step.
Creates a config file with the shuffle, logging and cache settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func runInit() error {
	cfg := config.DefaultConfig()

	// === SECTION 1: Shuffle ===
	seed := strconv.FormatUint(cfg.Seed, 10)
	only := ""
	stripComments := cfg.StripComments
	strict := cfg.Strict
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Shuffle seed").
				Description("The same seed and input always give the same output").
				Placeholder("0").
				Validate(validateUint).
				Value(&seed),
			huh.NewInput().
				Title("Functions to shuffle (comma separated, press Enter for all)").
				Placeholder("optional").
				Value(&only),
			huh.NewConfirm().
				Title("Strip comments and docstrings from shuffled functions?").
				Value(&stripComments),
			huh.NewConfirm().
				Title("Fail when a function cannot be shuffled?").
				Description("Otherwise the function is left unchanged and reported").
				Value(&strict),
		),
	)
	err := form.Run()
	if err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 2: Runtime ===
	workers := strconv.Itoa(cfg.Workers)
	cacheSize := strconv.Itoa(cfg.CacheSize)
	logLevel := cfg.LogLevel
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Files processed concurrently").
				Placeholder(workers).
				Validate(validatePositive).
				Value(&workers),
			huh.NewInput().
				Title("Result cache size (0 disables the cache)").
				Placeholder(cacheSize).
				Validate(validateUint).
				Value(&cacheSize),
			huh.NewSelect[string]().
				Title("Log level").
				Options(
					huh.NewOption("Debug", "debug"),
					huh.NewOption("Info", "info"),
					huh.NewOption("Warn", "warn"),
					huh.NewOption("Error", "error"),
				).
				Value(&logLevel),
		),
	)
	err = form.Run()
	if err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 3: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Global (~/.autoforge/config.yaml)", "global"),
					huh.NewOption("Project (./.autoforge/config.yaml)", "project"),
				).
				Value(&saveLocationChoice),
		),
	)
	err = form.Run()
	if err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigFilePath()
	if saveLocationChoice == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		err = form.Run()
		if err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	// === Build config struct ===
	cfg.Seed, _ = strconv.ParseUint(strings.TrimSpace(seed), 10, 64)
	cfg.Only = config.SplitList(only)
	cfg.StripComments = stripComments
	cfg.Strict = strict
	cfg.Workers, _ = strconv.Atoi(strings.TrimSpace(workers))
	cfg.CacheSize, _ = strconv.Atoi(strings.TrimSpace(cacheSize))
	cfg.LogLevel = logLevel

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", configPath)
	fmt.Printf("Seed: %d\n", cfg.Seed)
	if len(cfg.Only) > 0 {
		fmt.Printf("Only: %s\n", strings.Join(cfg.Only, ", "))
	} else {
		fmt.Println("Only: all functions")
	}
	fmt.Printf("Strip comments: %t\n", cfg.StripComments)
	fmt.Printf("Strict: %t\n", cfg.Strict)
	fmt.Printf("Workers: %d\n", cfg.Workers)
	fmt.Printf("Cache: %s (%d entries)\n", cfg.CacheDir, cfg.CacheSize)
	fmt.Printf("Log level: %s\n", cfg.LogLevel)
	fmt.Println("================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to: %s\n", configPath)
	return nil
}

func validateUint(s string) error {
	if _, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64); err != nil {
		return fmt.Errorf("enter a non-negative whole number")
	}
	return nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive whole number")
	}
	return nil
}

// Package cmd provides CLI command implementations
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/config"
)

var (
	// Persistent flags
	settingsFile string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "glycresoft",
	Short: "Glycresoft - glycopeptide identification from tandem mass spectra",
	Long: `Glycresoft scores glycopeptide hypotheses against MS/MS spectra and
controls the false discovery rate with target-decoy competition.

Each spectrum is matched against candidates within the precursor tolerance,
scored on peptide backbone, oxonium and Y (stub) ions, and the best target
is reported with its q-value. Results are written to a SQLite database.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsFile, "config", "", "Settings file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(fragmentsCmd)
	rootCmd.AddCommand(configCmd)
}

// newLogger writes structured logs to stderr, leaving stdout for results.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// addSettingsFlags registers the flags that override settings keys. Each
// default mirrors config.Default so --help documents the real defaults.
func addSettingsFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.Float64("precursor-ppm", d.Precursor.PPM, "Precursor mass tolerance (ppm)")
	fs.Int("min-charge", d.Precursor.MinCharge, "Lowest precursor charge tried when a spectrum reports none")
	fs.Int("max-charge", d.Precursor.MaxCharge, "Highest precursor charge tried when a spectrum reports none")
	fs.Int("isotope-width", d.Precursor.IsotopeWidth, "Isotope offsets tried on each side of the precursor")
	fs.Float64("fragment-tolerance", d.Fragment.Tolerance, "Fragment match tolerance")
	fs.String("fragment-unit", d.Fragment.Unit, "Fragment tolerance unit: ppm or Da")
	fs.Int("max-fragment-charge", d.Fragment.MaxCharge, "Highest fragment charge generated")
	fs.Float64("q-threshold", d.FDR.QThreshold, "Accept identifications at or below this q-value")
	fs.String("fdr-mode", d.FDR.Mode, "Decoy pooling: competition or separate")
	fs.Uint64("decoy-seed", d.Decoy.Seed, "Seed for decoy shuffles")
	fs.Int("decoy-ratio", d.Decoy.Ratio, "Decoys generated per target")
	fs.Int("top-n", d.Peaks.TopN, "Keep only the N most intense peaks (0 = no limit)")
	fs.Int("workers", d.Workers, "Spectrum workers (0 = one per CPU)")
}

// loadSettings resolves the effective settings for a command.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	return config.Load(settingsFile, cmd.Flags())
}

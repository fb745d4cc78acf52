package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate settings and input files without searching",
	Long: `Load the effective settings and parse the spectra and candidate files,
reporting malformed lines and spectra that would be skipped.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&spectraFile, "spectra", "s", "", "MGF or MSP peak list")
	validateCmd.Flags().StringVarP(&spectraFormat, "from", "f", "", "Spectra format: mgf or msp (auto-detect if not specified)")
	validateCmd.Flags().StringVarP(&candidatesFile, "candidates", "c", "", "Candidate list")
	validateCmd.Flags().StringVar(&modsCSV, "mods", "", "Extra modifications CSV (mod,massshift)")
	addSettingsFlags(validateCmd.Flags())
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	fmt.Printf("Settings: ok (fdr mode %s, q <= %g)\n", cfg.FDR.Mode, cfg.FDR.QThreshold)

	if candidatesFile != "" {
		modDB, err := loadModDatabase(modsCSV)
		if err != nil {
			return err
		}
		pool, rejected, err := readCandidates(candidatesFile, modDB, logger)
		if err != nil {
			return err
		}
		fmt.Printf("Candidates: %d valid, %d rejected\n", len(pool), rejected.Total())
		for _, reason := range rejected.Reasons() {
			fmt.Printf("  %s: %d\n", reason, rejected[reason])
		}
	}

	if spectraFile != "" {
		spectra, err := readSpectra(spectraFile, spectraFormat)
		if err != nil {
			return err
		}
		var invalid []error
		for _, s := range spectra {
			if err := s.Validate(); err != nil {
				invalid = append(invalid, err)
				logger.Warn("invalid spectrum", "spectrum", s.Name(), "err", err)
			}
		}
		fmt.Printf("Spectra: %d read, %d invalid\n", len(spectra), len(invalid))
		if len(invalid) > 0 {
			return fmt.Errorf("%d invalid spectra: %w", len(invalid), errors.Join(invalid...))
		}
	}

	return nil
}

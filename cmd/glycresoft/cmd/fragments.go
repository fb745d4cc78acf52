package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/fragment"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/reader/candidates"
)

var fragmentsCmd = &cobra.Command{
	Use:   "fragments SEQUENCE [GLYCAN]",
	Short: "List the theoretical ions of one glycopeptide",
	Long: `Print every theoretical fragment the search matches for a glycopeptide.

Examples:
  glycresoft fragments 'LNESR' '{Hex:5; HexNAc:4}'
  glycresoft fragments 'NC(Carbamidomethyl)TK' '{Hex:3; HexNAc:4; Fuc:1}' --max-fragment-charge 1`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runFragments,
}

func init() {
	fragmentsCmd.Flags().StringVar(&modsCSV, "mods", "", "Extra modifications CSV (mod,massshift)")
	addSettingsFlags(fragmentsCmd.Flags())
}

func runFragments(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	modDB, err := loadModDatabase(modsCSV)
	if err != nil {
		return err
	}

	peptide, err := candidates.ParseSequence(args[0], modDB)
	if err != nil {
		return err
	}
	var glycan core.GlycanComposition
	if len(args) > 1 {
		if glycan, err = core.ParseGlycanComposition(args[1]); err != nil {
			return err
		}
	}
	c, err := core.NewCandidate(1, peptide, glycan)
	if err != nil {
		return err
	}

	ions, err := fragment.NewGenerator(cfg.FragmentOptions()).Generate(c)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", c.Peptide, c.Glycan)
	fmt.Printf("Neutral mass: %.6f\n\n", c.NeutralMass())

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tION\tCHARGE\tM/Z")
	for _, ion := range ions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.5f\n", ion.Kind(), ion, ion.Charge(), ion.MZ())
	}
	return tw.Flush()
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halvardf/asm16/pkg/asm/instructions"
)

var isaOutputFile string

// isaCmd mirrors the teacher's "tools docs" command: dump the mnemonic
// table documentation to stdout or to a file.
var isaCmd = &cobra.Command{
	Use:   "isa",
	Short: "Show the mnemonic table documentation",
	Long:  `Dumps the documentation of the 25-entry instruction mnemonic table.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		doc := instructions.Documentation()
		if isaOutputFile != "" {
			if err := os.WriteFile(isaOutputFile, []byte(doc), 0644); err != nil {
				fmt.Println("Error creating file:", err)
				os.Exit(1)
			}
			return
		}
		fmt.Println(doc)
	},
}

func init() {
	isaCmd.Flags().StringVarP(&isaOutputFile, "output", "o", "", "Output file. If not specified, dumped to stdout.")
}

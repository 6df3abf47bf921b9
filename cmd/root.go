package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/halvardf/asm16/pkg/asm"
)

var (
	cfgFile    string
	outputPath string
	format     string
	verbose    bool
	logFile    string
)

// RootCmd is the assembler itself: `assembler -o <output_file> <input_file>`.
var RootCmd = &cobra.Command{
	Use:   "assembler <input_file>",
	Short: "A single-pass assembler for a 16-bit educational ISA",
	Long: `assembler turns a single assembly source file into an object
listing: symbol table, section table, per-section relocations and bytes.`,
	Args: cobra.ExactArgs(1),
	RunE: runAssemble,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(viewCmd, isaCmd)
	cobra.OnInitialize(initConfig)

	RootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output listing path (required)")
	RootCmd.Flags().StringVar(&format, "format", "text", "Listing format: text, yaml, yaml-legacy")
	RootCmd.Flags().Bool("no-color", false, "Disable colored status output")
	RootCmd.Flags().Bool("color", false, "Force colored status output")
	RootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every pipeline phase")
	RootCmd.Flags().StringVar(&logFile, "log-file", "", "Also write verbose logs to this file")
	RootCmd.MarkFlagRequired("output")

	viper.BindPFlag("color", RootCmd.Flags().Lookup("color"))
	viper.BindPFlag("no-color", RootCmd.Flags().Lookup("no-color"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".asm16")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger() (*slog.Logger, func()) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	handlers := []slog.Handler{slog.NewTextHandler(os.Stderr, opts)}
	closer := func() {}

	if logFile != "" {
		f, err := os.Create(logFile)
		if err == nil {
			handlers = append(handlers, slog.NewJSONHandler(f, opts))
			closer = func() { f.Close() }
		}
	}

	return slog.New(slogmulti.Fanout(handlers...)), closer
}

func colorEnabled() bool {
	if viper.GetBool("no-color") {
		return false
	}
	if viper.GetBool("color") {
		return true
	}
	return !color.NoColor
}

func runAssemble(cmd *cobra.Command, args []string) error {
	logger, closeLog := newLogger()
	defer closeLog()

	inputPath := args[0]
	logger.Debug("opening source file", "path", inputPath)

	src, err := os.Open(inputPath)
	if err != nil {
		printStatus(fmt.Sprintf("Error: %v", err))
		return nil
	}
	defer src.Close()

	logger.Debug("assembling")
	e, err := asm.Assemble(src)
	if err != nil {
		logger.Debug("assembly failed", "error", err)
		printStatus(fmt.Sprintf("Error: %v", err))
		return nil
	}

	out, err := os.Create(outputPath)
	if err != nil {
		printStatus(fmt.Sprintf("Error: %v", err))
		return nil
	}
	defer out.Close()

	logger.Debug("rendering listing", "format", format)
	if err := writeListing(out, e, format); err != nil {
		printStatus(fmt.Sprintf("Error: %v", err))
		return nil
	}

	printStatus("Output file is generated.")
	return nil
}

func printStatus(msg string) {
	if !colorEnabled() {
		fmt.Println(msg)
		return
	}
	if len(msg) >= 5 && msg[:5] == "Error" {
		color.New(color.FgRed).Println(msg)
	} else {
		color.New(color.FgGreen).Println(msg)
	}
}

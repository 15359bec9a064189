package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"noterang/internal/config"
	"noterang/internal/history"
	"noterang/internal/logging"
	"noterang/internal/workflow"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "noterang",
		Short:         "Topic-to-slide-deck automation over a browser-driven notebook product",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().Bool("verbose", false, "enable debug logging")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logging.SetGlobalLevel(logging.DEBUG)
		}
	}

	root.AddCommand(
		newRunCommand(),
		newRegenerateCommand(),
		newListCommand(),
		newDeleteCommand(),
		newLoginCommand(),
		newConfigCommand(),
		newBatchCommand(),
		newConvertCommand(),
		newStylesCommand(),
		newGalleryCommand(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

// emitResult prints the machine-readable outcome line.
func emitResult(res workflow.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"success":false,"error":%q}`, err.Error()))
	}
	fmt.Printf("RESULT:%s\n", data)
}

func historyPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".noterang", "history.db")
}

// recordRun appends to the ledger, best effort.
func recordRun(cmd *cobra.Command, title, method string, res workflow.Result) {
	store, err := history.Open(historyPath())
	if err != nil {
		fmt.Fprintln(os.Stderr, gray("history: "+err.Error()))
		return
	}
	defer store.Close()
	if _, err := store.Record(cmd.Context(), title, method, res); err != nil {
		fmt.Fprintln(os.Stderr, gray("history: "+err.Error()))
	}
}

func printResult(res workflow.Result) {
	if res.OK {
		fmt.Println(green("✓ 완료"), gray(fmt.Sprintf("(%ds)", res.DurationSeconds)))
		if res.PDFPath != "" {
			fmt.Println("  PDF: ", res.PDFPath)
		}
		if res.PPTXPath != "" {
			fmt.Println("  PPTX:", res.PPTXPath)
		}
		if res.SlideCount > 0 {
			fmt.Printf("  슬라이드 %d장\n", res.SlideCount)
		}
	} else {
		fmt.Println(red("✗ 실패"), res.Error)
	}
}

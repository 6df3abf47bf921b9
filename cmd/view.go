package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
	yaml3 "gopkg.in/yaml.v3"

	"github.com/halvardf/asm16/pkg/asm"
)

// viewCmd opens an interactive browser over a listing produced with
// --format yaml.
var viewCmd = &cobra.Command{
	Use:   "view <listing-file>",
	Short: "Browse a listing file interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  runView,
}

func runView(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	var listing asm.Listing
	if err := yaml3.Unmarshal(data, &listing); err != nil {
		return fmt.Errorf("view requires a listing produced with --format yaml: %w", err)
	}

	symbols := tview.NewList().ShowSecondaryText(false)
	for _, s := range listing.Symbols {
		symbols.AddItem(s.Name, "", 0, nil)
	}

	detail := tview.NewTextView().SetDynamicColors(true).SetWordWrap(true)
	detail.SetBorder(true).SetTitle("Symbol")

	symbols.SetChangedFunc(func(index int, main, secondary string, shortcut rune) {
		if index < 0 || index >= len(listing.Symbols) {
			return
		}
		s := listing.Symbols[index]
		detail.SetText(fmt.Sprintf("[yellow]name[white]: %s\n[yellow]section[white]: %s\n[yellow]value[white]: 0x%x\n[yellow]scope[white]: %s\n[yellow]defined[white]: %v",
			s.Name, s.Section, s.Value, s.Scope, s.Defined))
	})
	symbols.SetBorder(true).SetTitle("Symbols")

	sections := tview.NewTextView().SetDynamicColors(true)
	sections.SetBorder(true).SetTitle("Sections")
	var sb strings.Builder
	for _, s := range listing.Sections {
		fmt.Fprintf(&sb, "0x%x  %-12s length=0x%x\n", s.Id, s.Name, s.Length)
	}
	sections.SetText(sb.String())

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(symbols, 0, 2, true).
		AddItem(sections, 0, 1, false)

	root := tview.NewFlex().
		AddItem(left, 0, 1, true).
		AddItem(detail, 0, 2, false)

	app := tview.NewApplication().SetRoot(root, true).SetFocus(symbols)
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return event
	})

	if symbols.GetItemCount() > 0 {
		symbols.SetCurrentItem(0)
	}

	return app.Run()
}

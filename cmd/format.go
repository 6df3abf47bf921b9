package cmd

import (
	"fmt"
	"io"

	yaml2 "gopkg.in/yaml.v2"
	yaml3 "gopkg.in/yaml.v3"

	"github.com/halvardf/asm16/pkg/asm"
)

// writeListing renders e's final tables to w in the requested format.
func writeListing(w io.Writer, e *asm.Encoder, format string) error {
	switch format {
	case "text":
		asm.RenderText(w, e)
		return nil
	case "yaml":
		return yaml3.NewEncoder(w).Encode(asm.BuildListing(e))
	case "yaml-legacy":
		data, err := yaml2.Marshal(asm.LegacySymbolValues(e))
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown listing format %q", format)
	}
}

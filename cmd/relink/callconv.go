package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-relink/callconv"
)

func newCallConvCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "callconv <disassembly>",
		Short: "Insert the cdecl modifier into trampolines of marked scopes",
		Long: `Insert the calling-convention modifier into a textual disassembly.

In every type or method scope carrying the marker attribute, the modifier
line is inserted before the first trampoline declaration. Tokens are taken
from the [callconv] section of the config file. The patched text is written
to stdout, or atomically to --output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.runCallConv(args[0], output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the patched disassembly to this file")
	return cmd
}

func (a *app) runCallConv(input, output string) error {
	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open disassembly: %w", err)
	}
	defer f.Close()

	p := callconv.New(a.cfg.CallConv.Dialect())
	if output == "" {
		n, err := p.PatchStream(f, a.stdout)
		if err != nil {
			return err
		}
		a.log.Info("patched disassembly", zap.String("input", input), zap.Int("inserted", n))
		return nil
	}

	var buf bytes.Buffer
	n, err := p.PatchStream(f, &buf)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(output, buf.Bytes()); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s %s %s\n",
		a.out.Success.Render("wrote"),
		output,
		a.out.Subtitle.Render(fmt.Sprintf("(%d modifier(s) inserted)", n)))
	return nil
}

package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-relink/metadata"
	"github.com/wippyai/wasm-relink/relink"
)

func (a *app) runRemap(path string, args []string, dryRun bool) error {
	mappings, err := relink.ParseMappings(args)
	if err != nil {
		return err
	}

	m, err := metadata.LoadFile(path)
	if err != nil {
		return err
	}
	a.log.Debug("loaded module",
		zap.String("path", path),
		zap.Int("methods", m.NumMethods()),
		zap.Int("references", m.References().Len()))

	report, err := relink.Remap(m, mappings)
	if err != nil {
		return err
	}
	a.printReport(report)

	if dryRun {
		fmt.Fprintln(a.stdout, a.out.Subtitle.Render("dry run, "+path+" not written"))
		return nil
	}
	if !m.Modified() {
		fmt.Fprintln(a.stdout, a.out.Subtitle.Render(path+" unchanged"))
		return nil
	}

	for _, ref := range m.UnusedReferences() {
		a.log.Info("dropping unused module reference", zap.String("module", ref.Name()))
	}
	if err := writeFileAtomic(path, m.Serialize()); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s %s\n", a.out.Success.Render("wrote"), path)
	return nil
}

// printReport prints each mapping followed by the methods it retargeted.
func (a *app) printReport(report *relink.Report) {
	for _, res := range report.Results {
		fmt.Fprintf(a.stdout, "%s %s %s\n",
			a.out.Module.Render(res.Mapping.Sentinel),
			a.out.Subtitle.Render("->"),
			a.out.Module.Render(res.Mapping.Target))
		if len(res.Retargeted) == 0 {
			fmt.Fprintln(a.stdout, a.out.Warning.Render("  no methods bound to "+res.Mapping.Sentinel))
			continue
		}
		for _, rt := range res.Retargeted {
			fmt.Fprintf(a.stdout, "  %s::%s %s\n",
				a.out.Type.Render(rt.Type),
				a.out.Func.Render(rt.Method),
				a.out.Subtitle.Render("("+rt.EntryPoint+")"))
		}
	}
	fmt.Fprintf(a.stdout, "%d method(s) retargeted\n", report.Total())
}

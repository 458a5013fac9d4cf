package relink

import (
	"strings"

	relinkerrors "github.com/wippyai/wasm-relink/errors"
	"github.com/wippyai/wasm-relink/metadata"
	"go.uber.org/zap"
)

// Mapping retargets every external linkage bound to Sentinel so it binds
// to Target instead.
type Mapping struct {
	Sentinel string
	Target   string
}

func (m Mapping) String() string {
	return m.Sentinel + "=" + m.Target
}

// ParseMapping parses "<sentinel>=<target>". The argument is split on the
// first '=' only, so targets may contain '='.
func ParseMapping(arg string) (Mapping, error) {
	sentinel, target, ok := strings.Cut(arg, "=")
	if !ok || sentinel == "" || target == "" {
		return Mapping{}, relinkerrors.MappingNotFound(arg)
	}
	return Mapping{Sentinel: sentinel, Target: target}, nil
}

// ParseMappings parses every argument, failing on the first bad one.
func ParseMappings(args []string) ([]Mapping, error) {
	out := make([]Mapping, 0, len(args))
	for _, arg := range args {
		m, err := ParseMapping(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Retarget records one method whose linkage was changed.
type Retarget struct {
	Type       string
	Method     string
	EntryPoint string
	From       string
	To         string
}

// Result lists the methods retargeted by one mapping.
type Result struct {
	Mapping    Mapping
	Retargeted []Retarget
}

// Report is the outcome of Remap, one Result per distinct mapping in the
// order given.
type Report struct {
	Results []Result
}

// Total returns the number of retargeted methods across all mappings.
func (r *Report) Total() int {
	var n int
	for _, res := range r.Results {
		n += len(res.Retargeted)
	}
	return n
}

// Remap retargets external linkage in m according to mappings.
//
// A method matches a mapping when its linkage names the mapping's sentinel
// at the time Remap is called, so chained mappings ("a=b", "b=c") never
// cascade and the order of mappings does not matter. Target references are
// interned before any method is touched. A mapping that matches nothing is
// not an error. Listing one sentinel with two different targets fails with
// InvalidMapping before m is modified.
func Remap(m *metadata.Module, mappings []Mapping) (*Report, error) {
	bySentinel := make(map[string]int, len(mappings))
	report := &Report{}
	for _, mp := range mappings {
		if mp.Sentinel == "" || mp.Target == "" {
			return nil, relinkerrors.New(relinkerrors.PhaseRemap, relinkerrors.KindInvalidMapping).
				Path(mp.String()).
				Detail("sentinel and target must be non-empty").
				Build()
		}
		if i, ok := bySentinel[mp.Sentinel]; ok {
			if prev := report.Results[i].Mapping; prev.Target != mp.Target {
				return nil, relinkerrors.New(relinkerrors.PhaseRemap, relinkerrors.KindInvalidMapping).
					Path(mp.String()).
					Detail("sentinel %q already mapped to %q", mp.Sentinel, prev.Target).
					Build()
			}
			continue
		}
		bySentinel[mp.Sentinel] = len(report.Results)
		report.Results = append(report.Results, Result{Mapping: mp})
	}

	refs := m.References()
	targets := make([]*metadata.ModuleRef, len(report.Results))
	for i, res := range report.Results {
		ref, created := refs.Intern(res.Mapping.Target)
		targets[i] = ref
		if created {
			Logger().Debug("registered module reference", zap.String("module", ref.Name()))
		}
	}

	for meth := range m.Methods() {
		if !meth.IsExternal() {
			continue
		}
		from := meth.Linkage.Module.Name()
		i, ok := bySentinel[from]
		if !ok || from == targets[i].Name() {
			continue
		}
		meth.Linkage.Module = targets[i]

		rt := Retarget{
			Type:       meth.DeclaringType.FullName(),
			Method:     meth.Name,
			EntryPoint: meth.Linkage.EntryPoint,
			From:       from,
			To:         targets[i].Name(),
		}
		report.Results[i].Retargeted = append(report.Results[i].Retargeted, rt)
		Logger().Debug("retargeted method",
			zap.String("type", rt.Type),
			zap.String("method", rt.Method),
			zap.String("entry_point", rt.EntryPoint),
			zap.String("from", rt.From),
			zap.String("to", rt.To))
	}

	for _, res := range report.Results {
		if len(res.Retargeted) == 0 {
			Logger().Debug("mapping matched no methods", zap.Stringer("mapping", res.Mapping))
		}
	}
	return report, nil
}

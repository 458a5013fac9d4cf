package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/wasm-relink/metadata"
)

// isTerminal reports whether both stdin and stdout are attached to a TTY.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func newInspectCmd(a *app) *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "inspect <module>",
		Short: "Print the types, methods and module references of a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interactive {
				if !isTerminal() {
					return &ExitError{Code: 1, Err: errors.New("interactive mode requires a terminal")}
				}
				return a.runInteractive(cmd.Context(), args[0])
			}
			return a.runInspect(args[0])
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse module references and retarget them interactively")
	return cmd
}

func (a *app) runInspect(path string) error {
	m, err := metadata.LoadFile(path)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, a.out.Title.Render(filepath.Base(path)))
	fmt.Fprintln(a.stdout, a.typeTree(m))
	fmt.Fprintln(a.stdout, a.referenceTree(m))
	if !m.SignaturesKnown() {
		fmt.Fprintln(a.stdout, a.out.Warning.Render("signatures unavailable: type section uses GC types"))
	}
	return nil
}

func (a *app) newTree(root string) *tree.Tree {
	return tree.Root(root).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(a.out.Enumerate)
}

// typeTree renders the type hierarchy with each type's methods listed
// before its nested types.
func (a *app) typeTree(m *metadata.Module) *tree.Tree {
	root := a.newTree(a.out.Subtitle.Render("types"))

	type item struct {
		typ    *metadata.Type
		parent *tree.Tree
	}
	types := m.Types()
	stack := make([]item, 0, len(types))
	for i := len(types) - 1; i >= 0; i-- {
		stack = append(stack, item{typ: types[i], parent: root})
	}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := a.newTree(a.out.Type.Render(it.typ.Name))
		for _, meth := range it.typ.Methods {
			node.Child(a.methodLabel(meth))
		}
		it.parent.Child(node)
		for i := len(it.typ.Nested) - 1; i >= 0; i-- {
			stack = append(stack, item{typ: it.typ.Nested[i], parent: node})
		}
	}
	return root
}

func (a *app) methodLabel(meth *metadata.Method) string {
	var b strings.Builder
	b.WriteString(a.out.Func.Render(meth.Name))
	if meth.Signature != nil {
		b.WriteByte(' ')
		b.WriteString(a.out.Subtitle.Render(meth.Signature.String()))
	}
	if meth.IsExternal() {
		b.WriteString(" @ ")
		b.WriteString(a.out.Module.Render(meth.Linkage.Module.Name()))
		b.WriteByte('.')
		b.WriteString(meth.Linkage.EntryPoint)
	}
	if len(meth.Exports) > 0 {
		b.WriteByte(' ')
		b.WriteString(a.out.Subtitle.Render("[export " + strings.Join(meth.Exports, ", ") + "]"))
	}
	return b.String()
}

// referenceTree lists every module reference with the number of imports
// bound to it.
func (a *app) referenceTree(m *metadata.Module) *tree.Tree {
	counts := make(map[string]int)
	for _, imp := range m.Imports() {
		counts[imp.Module]++
	}

	root := a.newTree(a.out.Subtitle.Render("references"))
	for _, ref := range m.References().All() {
		label := a.out.Module.Render(ref.Name()) + " " +
			a.out.Subtitle.Render(fmt.Sprintf("(%d imports)", counts[ref.Name()]))
		if a.cfg != nil && ref.Name() == a.cfg.Sentinel {
			label += " " + a.out.Warning.Render("sentinel")
		}
		if counts[ref.Name()] == 0 {
			label += " " + a.out.Warning.Render("unused")
		}
		root.Child(label)
	}
	return root
}

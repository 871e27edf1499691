package cli

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dellis1972/pcl-gen/internal/errors"
	"github.com/dellis1972/pcl-gen/internal/surface"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <library>",
		Short: "Show how many types per namespace would be generated",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runInspect,
	}
}

// namespaceCounts tallies one namespace of a surface.
type namespaceCounts struct {
	namespace                           string
	enums, interfaces, structs, classes int
}

// countByNamespace returns one row per namespace in first-seen order.
func countByNamespace(s *surface.Surface) []*namespaceCounts {
	var rows []*namespaceCounts
	index := map[string]*namespaceCounts{}
	row := func(namespace string) *namespaceCounts {
		if r, found := index[namespace]; found {
			return r
		}
		r := &namespaceCounts{namespace: namespace}
		index[namespace] = r
		rows = append(rows, r)
		return r
	}

	for _, e := range s.Enums {
		row(e.Namespace).enums++
	}
	for _, def := range s.Interfaces {
		row(def.Namespace).interfaces++
	}
	for _, def := range s.Structs {
		row(def.Namespace).structs++
	}
	for _, def := range s.Classes {
		row(def.Namespace).classes++
	}
	return rows
}

func (a *app) runInspect(cmd *cobra.Command, args []string) error {
	s, cat, err := a.extract(args[0])
	if err != nil {
		return err
	}

	data := pterm.TableData{{"Namespace", "Enums", "Interfaces", "Structs", "Classes"}}
	for _, r := range countByNamespace(s) {
		namespace := r.namespace
		if namespace == "" {
			namespace = "(global)"
		}
		data = append(data, []string{
			namespace,
			strconv.Itoa(r.enums),
			strconv.Itoa(r.interfaces),
			strconv.Itoa(r.structs),
			strconv.Itoa(r.classes),
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "rendering table")
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, table)
	fmt.Fprintf(out, "\n%d types, %d skipped captures\n", s.Len(), cat.Skipped)
	return nil
}

package tac

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Fprint writes a listing of the function body. Block labels start a line; other nodes are
// indented. Blocks with static initialization checks are annotated.
func Fprint(w io.Writer, f *Function) error {
	if _, err := fmt.Fprintf(w, "%s:\n", f.Name); err != nil {
		return err
	}
	for _, n := range f.Body {
		var err error
		switch n := n.(type) {
		case *Label:
			_, err = fmt.Fprintf(w, "%v%s\n", n, staticInitComment(f, n.Block))
		default:
			_, err = fmt.Fprintf(w, "\t%v\n", n)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func staticInitComment(f *Function, block int) string {
	if block >= len(f.Blocks) || f.Blocks[block].StaticInit.Cardinality() == 0 {
		return ""
	}
	var names []string
	for _, t := range f.Blocks[block].StaticInit.ToSlice() {
		names = append(names, t.FullName())
	}
	sort.Strings(names)
	return " ; cctor " + strings.Join(names, ", ")
}

// String returns a listing of the function body.
func (f *Function) String() string {
	var b strings.Builder
	if err := Fprint(&b, f); err != nil {
		panic(err)
	}
	return b.String()
}

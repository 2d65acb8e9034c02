package dump

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/jszwec/csvutil"
	"github.com/olekukonko/tablewriter"
	"github.com/pgavlin/cil2tac/compiler/lower"
)

func dumpStats(w io.Writer, result *lower.ModuleResult) error {
	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	encoder := csvutil.NewEncoder(csvWriter)
	for _, r := range result.Methods {
		if err := encoder.Encode(&r.Stats); err != nil {
			return err
		}
	}
	return nil
}

func dumpTable(w io.Writer, result *lower.ModuleResult) error {
	header, err := csvutil.Header(lower.Stats{}, "csv")
	if err != nil {
		return err
	}

	var total lower.Stats
	rows := make([][]string, 0, len(result.Methods))
	for _, r := range result.Methods {
		s := r.Stats
		rows = append(rows, row(s))

		total.Instructions += s.Instructions
		total.Records += s.Records
		total.Decompositions += s.Decompositions
		total.Nodes += s.Nodes
		total.Blocks += s.Blocks
		total.Vars += s.Vars
		total.Warnings += s.Warnings
	}
	total.Method = strconv.Itoa(len(result.Methods)) + " methods"

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetFooter(row(total))
	table.AppendBulk(rows)
	table.Render()
	return nil
}

func row(s lower.Stats) []string {
	return []string{
		s.Method,
		strconv.Itoa(s.Instructions),
		strconv.Itoa(s.Records),
		strconv.Itoa(s.Decompositions),
		strconv.Itoa(s.Nodes),
		strconv.Itoa(s.Blocks),
		strconv.Itoa(s.Vars),
		strconv.Itoa(s.Warnings),
	}
}

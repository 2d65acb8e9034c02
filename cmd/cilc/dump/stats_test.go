package dump

import (
	"strings"
	"testing"

	"github.com/pgavlin/cil2tac/compiler/lower"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResult() *lower.ModuleResult {
	return &lower.ModuleResult{Methods: []*lower.Result{
		{Stats: lower.Stats{Method: "N.C::A()", Instructions: 3, Records: 3, Nodes: 4, Blocks: 1, Vars: 2}},
		{Stats: lower.Stats{Method: "N.C::B()", Instructions: 5, Records: 8, Decompositions: 1, Nodes: 9, Blocks: 3, Vars: 6, Warnings: 1}},
	}}
}

func TestDumpStats(t *testing.T) {
	var b strings.Builder
	require.NoError(t, dumpStats(&b, testResult()))
	assert.Equal(t, strings.Join([]string{
		"method,instructions,records,decompositions,nodes,blocks,vars,warnings",
		"N.C::A(),3,3,0,4,1,2,0",
		"N.C::B(),5,8,1,9,3,6,1",
		"",
	}, "\n"), b.String())
}

func TestDumpTable(t *testing.T) {
	var b strings.Builder
	require.NoError(t, dumpTable(&b, testResult()))

	out := b.String()
	assert.Contains(t, out, "DECOMPOSITIONS")
	assert.Contains(t, out, "N.C::B()")
	assert.Contains(t, out, "2 METHODS")
}

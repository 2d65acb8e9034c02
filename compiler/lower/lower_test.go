package lower

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/compiler/intrinsic"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/pgavlin/cil2tac/compiler/worklist"
	"github.com/pgavlin/cil2tac/env/static"
	"github.com/pgavlin/cil2tac/load"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arith = `
target:
  pointerSize: 8
types:
- namespace: N
  name: Arith
  methods:
  - name: Add
    sig: int32(int32, int32)
    body: |
      ldarg.0
      ldarg.1
      add
      ret
  - name: AddOvf
    sig: int32(int32, int32)
    body: |
      ldarg.0
      ldarg.1
      add.ovf
      ret
  - name: Sum
    sig: int32(int32)
    locals: [int32, int32]
    body: |
      ldc.i4.0
      stloc.0
      ldc.i4.1
      stloc.1
      br.s test
      loop:
      ldloc.0
      ldloc.1
      add
      stloc.0
      ldloc.1
      ldc.i4.1
      add
      stloc.1
      test:
      ldloc.1
      ldarg.0
      ble.s loop
      ldloc.0
      ret
`

func loadModule(t *testing.T, src string) *static.Module {
	m, err := load.LoadModule(strings.NewReader(src))
	require.NoError(t, err)
	return m
}

func lookupMethod(t *testing.T, m *static.Module, name string) *cil.Method {
	meth, err := m.LookupMethod(name)
	require.NoError(t, err)
	return meth
}

func TestGolden(t *testing.T) {
	m := loadModule(t, arith)

	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	for _, name := range []string{"Add", "AddOvf", "Sum"} {
		t.Run(name, func(t *testing.T) {
			meth := lookupMethod(t, m, "N.Arith::"+name)
			body, ok := m.Body(meth)
			require.True(t, ok)

			r, err := Method(meth, body, m.Env(worklist.New()), nil)
			require.NoError(t, err)
			assert.Empty(t, r.Warnings)
			g.Assert(t, strings.ToLower(name), []byte(r.Func.String()))
		})
	}
}

func TestStats(t *testing.T) {
	m := loadModule(t, arith)
	meth := lookupMethod(t, m, "N.Arith::Sum")
	body, _ := m.Body(meth)

	r, err := Method(meth, body, m.Env(worklist.New()), nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{
		Method:       "N.Arith::Sum(System.Int32)",
		Instructions: 18,
		Records:      18,
		Nodes:        19,
		Blocks:       4,
		Vars:         8,
	}, r.Stats)
	assert.Equal(t, "N.Arith::Sum(System.Int32)", r.Func.Name)
	assert.True(t, r.Func.UsedArgs.Test(0))
	assert.True(t, r.Func.UsedLocals.Test(1))
}

const calls = `
target:
  pointerSize: 8
types:
- namespace: N
  name: Program
  methods:
  - name: Main
    sig: int32()
    body: |
      call N.Program::First()
      ret
  - name: First
    sig: int32()
    body: |
      call N.Program::Second()
      ldc.i4.1
      add
      ret
  - name: Second
    sig: int32()
    body: |
      ldstr "two"
      callvirt System.String::get_Length()
      ret
  - name: Unused
    sig: void()
    body: |
      ret
`

func TestModuleFollowsRequests(t *testing.T) {
	m := loadModule(t, calls)
	main := lookupMethod(t, m, "N.Program::Main")

	result, err := Module(m, []*cil.Method{main}, &Options{RequireVerified: true, Workers: 2})
	require.NoError(t, err)

	var names []string
	for _, r := range result.Methods {
		names = append(names, r.Func.Name)
	}
	assert.Equal(t, []string{
		"N.Program::First()",
		"N.Program::Main()",
		"N.Program::Second()",
	}, names)
	assert.Equal(t, []string{"two"}, result.Strings)
	assert.Equal(t, 0, result.Warnings())
}

func TestModuleWithoutRoots(t *testing.T) {
	m := loadModule(t, calls)

	result, err := Module(m, nil, nil)
	require.NoError(t, err)
	assert.Len(t, result.Methods, 4)
}

func lowerOne(t *testing.T, src, name string, options *Options) (*Result, error) {
	m := loadModule(t, src)
	meth := lookupMethod(t, m, name)
	body, ok := m.Body(meth)
	require.True(t, ok)
	return Method(meth, body, m.Env(worklist.New()), options)
}

const unverifiable = `
target:
  pointerSize: 8
types:
- namespace: N
  name: Bad
  methods:
  - name: Extra
    sig: int32()
    body: |
      ldc.i4.1
      ldc.i4.2
      ret
  - name: Underflow
    sig: int32()
    body: |
      add
      ret
  - name: Mixed
    sig: float64(int32, float64)
    body: |
      ldarg.0
      ldarg.1
      add
      ret
  - name: Compare
    sig: int32(int32, float64)
    body: |
      ldarg.0
      ldarg.1
      clt
      ret
  - name: Filter
    sig: void()
    body: |
      try:
      leave.s done
      handler:
      pop
      leave.s done
      done:
      ret
    regions:
    - {kind: filter, try: [try, handler], handler: [handler, done]}
`

func TestVerification(t *testing.T) {
	_, err := lowerOne(t, unverifiable, "N.Bad::Extra", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, method.ErrVerification))

	var merr *method.Error
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, "N.Bad::Extra()", merr.Method.FullName())

	r, err := lowerOne(t, unverifiable, "N.Bad::Extra", &Options{})
	require.NoError(t, err)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0].Msg, "extra stack entries")
	assert.Equal(t, 1, r.Stats.Warnings)

	_, err = lowerOne(t, unverifiable, "N.Bad::Underflow", &Options{})
	assert.True(t, errors.Is(err, method.ErrVerification), "%v", err)
}

func TestMixedCategories(t *testing.T) {
	for _, name := range []string{"N.Bad::Mixed", "N.Bad::Compare"} {
		for _, options := range []*Options{nil, {}} {
			_, err := lowerOne(t, unverifiable, name, options)
			require.Error(t, err, name)
			assert.True(t, errors.Is(err, method.ErrUnsupported), "%v: %v", name, err)
			assert.False(t, errors.Is(err, method.ErrVerification), "%v: %v", name, err)
			assert.Contains(t, err.Error(), "on operands of categories i4 and r8")
		}
	}
}

func TestUnsupported(t *testing.T) {
	_, err := lowerOne(t, unverifiable, "N.Bad::Filter", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, method.ErrUnsupported))
}

const native = `
target:
  pointerSize: 8
types:
- namespace: N
  name: Native
  methods:
  - {name: Ticks, sig: int64(), flags: [internalcall]}
  - name: Now
    sig: int64()
    body: |
      call N.Native::Ticks()
      ret
`

func TestStrictIntrinsics(t *testing.T) {
	r, err := lowerOne(t, native, "N.Native::Now", nil)
	require.NoError(t, err)
	assert.Contains(t, r.Func.String(), "@N.Native::Ticks()")

	_, err = lowerOne(t, native, "N.Native::Now", &Options{StrictIntrinsics: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, method.ErrUnsupported))
	assert.Contains(t, err.Error(), intrinsic.ErrNoIntrinsic.Error())
}

func TestModuleSkipsRuntimeMethods(t *testing.T) {
	m := loadModule(t, native)

	roots := []*cil.Method{lookupMethod(t, m, "N.Native::Now"), lookupMethod(t, m, "N.Native::Ticks")}
	result, err := Module(m, roots, nil)
	require.NoError(t, err)
	require.Len(t, result.Methods, 1)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "N.Native::Ticks()", result.Skipped[0].FullName())
}

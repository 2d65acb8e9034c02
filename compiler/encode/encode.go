// Package encode lowers canonical records to TAC, choosing operators from the static categories
// of their operands, and resolves calls to direct, vtable or interface-table dispatch.
package encode

import (
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/intrinsic"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/pgavlin/cil2tac/compiler/tac"
	"github.com/pgavlin/cil2tac/env"
	"github.com/willf/bitset"
)

// A join is the entry of a block. Blocks entered with a non-empty stack merge the incoming values
// in one Phi per stack slot.
type join struct {
	block   int
	entry   method.Stack
	phis    []*tac.Phi
	catch   *tac.Instr
	emitted bool
}

// Encoder lowers the records of one method body in program order.
type Encoder struct {
	ctx  *method.Context
	env  *env.Env
	gate *intrinsic.Gate
	f    *tac.Function
	body *method.Body

	targets    *bitset.BitSet
	targetsLen int
	blocks     map[int]int
	joins      map[int]*join

	// stack is the stack after the last encoded record.
	stack     method.Stack
	block     int
	reachable bool

	// fnptrs remembers the method and receiver adjustment behind each ldftn result for delegate
	// construction.
	fnptrs map[tac.Var]fnptrSource

	rec   *method.Record
	index int
	nodes []tac.Node
}

// New creates an encoder for the context's body. Nodes are appended to the context's function.
func New(ctx *method.Context, e *env.Env, gate *intrinsic.Gate) *Encoder {
	return &Encoder{
		ctx:       ctx,
		env:       e,
		gate:      gate,
		f:         ctx.Func,
		body:      ctx.Body,
		blocks:    map[int]int{},
		joins:     map[int]*join{},
		fnptrs:    map[tac.Var]fnptrSource{},
		reachable: true,
	}
}

// NewVar returns a fresh temporary.
func (e *Encoder) NewVar() tac.Logical {
	return e.f.NewVar()
}

// Emit appends nodes to the current record's lowering.
func (e *Encoder) Emit(nodes ...tac.Node) {
	e.nodes = append(e.nodes, nodes...)
}

// Env returns the encoder's collaborators.
func (e *Encoder) Env() *env.Env {
	return e.env
}

func (e *Encoder) isTarget(id int) bool {
	if e.targets == nil || e.targetsLen != len(e.body.Records) {
		e.targets, e.targetsLen = e.body.Targets(), len(e.body.Records)
	}
	return e.targets.Test(uint(id))
}

func (e *Encoder) blockOf(id int) int {
	id = e.body.Canonical(id)
	if b, ok := e.blocks[id]; ok {
		return b
	}
	b := e.f.NewBlock().ID
	e.blocks[id] = b
	return b
}

// newBlock starts a block that has no record of its own.
func (e *Encoder) newBlock() int {
	return e.f.NewBlock().ID
}

// startBlock emits the label of an internal block and makes it current.
func (e *Encoder) startBlock(b int) {
	e.Emit(&tac.Label{Block: b})
	e.block = b
}

func (e *Encoder) newJoin(id int, stack method.Stack) (*join, error) {
	j := &join{block: e.blockOf(id)}
	for _, s := range stack {
		size, err := e.valueSize(s.Type)
		if err != nil {
			return nil, err
		}
		phi := &tac.Phi{Result: e.NewVar(), Cat: s.Category(), Size: size}
		j.phis = append(j.phis, phi)
		j.entry = append(j.entry, method.StackEntry{Type: s.Type, Var: phi.Result})
	}
	e.joins[e.body.Canonical(id)] = j
	return j, nil
}

// addEdge records the values flowing into a join from the current block.
func (e *Encoder) addEdge(j *join, stack method.Stack) error {
	if len(stack) != len(j.entry) {
		return e.ctx.Errorf(method.ErrVerification, "stack depth %d does not match depth %d at join B%d", len(stack), len(j.entry), j.block)
	}
	for k, phi := range j.phis {
		if stack[k].Category() != phi.Cat {
			if err := e.ctx.Verify("stack slot %d has category %v, expected %v at join B%d", k, stack[k].Category(), phi.Cat, j.block); err != nil {
				return err
			}
		}
		phi.AddEdge(e.block, stack[k].Var)
	}
	return nil
}

// branchTo records an edge to the block that starts at the given record ID and returns the
// block's ID.
func (e *Encoder) branchTo(id int, stack method.Stack) (int, error) {
	id = e.body.Canonical(id)
	if id == -1 {
		return 0, e.ctx.Errorf(method.ErrVerification, "branch past the end of the method")
	}
	j, ok := e.joins[id]
	if !ok {
		var err error
		if j, err = e.newJoin(id, stack); err != nil {
			return 0, err
		}
	}
	if err := e.addEdge(j, stack); err != nil {
		return 0, err
	}
	return j.block, nil
}

// StackAt returns the stack on entry to the record at position i.
func (e *Encoder) StackAt(i int) (method.Stack, error) {
	rec := e.body.Records[i]
	if !e.isTarget(rec.ID) {
		return e.stack, nil
	}
	if j, ok := e.joins[rec.ID]; ok {
		return j.entry, nil
	}

	if region, ok := e.body.HandlerOf(rec.ID); ok {
		j := &join{block: e.blockOf(rec.ID)}
		switch region.Kind {
		case method.RegionCatch:
			t := e.NewVar()
			j.catch = &tac.Instr{Op: tac.OpCatch, Cat: cil.Object, Result: t}
			j.entry = method.Stack{{Type: region.CatchType, Var: t}}
		case method.RegionFilter:
			e.ctx.At(rec)
			return nil, e.ctx.Unsupported("filter handlers")
		}
		e.joins[rec.ID] = j
		return j.entry, nil
	}

	stack := e.stack
	if !e.reachable {
		stack = nil
	}
	j, err := e.newJoin(rec.ID, stack)
	if err != nil {
		return nil, err
	}
	return j.entry, nil
}

// Encode lowers the record at position i, whose Stack must hold the stack on entry, and appends
// its nodes to the function.
func (e *Encoder) Encode(i int) error {
	rec := e.body.Records[i]
	e.ctx.At(rec)
	e.rec, e.index, e.nodes = rec, i, nil

	if e.isTarget(rec.ID) {
		j, ok := e.joins[rec.ID]
		if !ok {
			if _, err := e.StackAt(i); err != nil {
				return err
			}
			j = e.joins[rec.ID]
		}
		if e.reachable && len(e.f.Body) != 0 {
			if err := e.addEdge(j, e.stack); err != nil {
				return err
			}
		}
		e.startBlock(j.block)
		for _, phi := range j.phis {
			e.Emit(phi)
		}
		if j.catch != nil {
			e.Emit(j.catch)
		}
		j.emitted = true
		e.reachable = true
	}

	info := rec.Info()
	pops, err := e.arity(rec)
	if err != nil {
		return err
	}
	if rec.Stack.Depth() < pops {
		return e.ctx.Errorf(method.ErrVerification, "stack underflow: %v needs %d operands, stack has %d", rec.Opcode, pops, rec.Stack.Depth())
	}

	pushed, err := e.lower(rec, rec.Stack.Top(pops))
	if err != nil {
		return err
	}

	switch {
	case info.Shuffle:
		if rec.Depth() >= rec.Stack.Depth() {
			return e.ctx.Errorf(method.ErrVerification, "%v: depth %d exceeds stack depth %d", rec.Opcode, rec.Depth(), rec.Stack.Depth())
		}
		if rec.Opcode == code.OpPseudoRotate {
			e.stack = rec.Stack.Rotate(rec.Depth())
		} else {
			e.stack = rec.Stack.MoveTo(rec.Depth())
		}
	default:
		rec.Pops, rec.Pushed = pops, pushed
		e.stack = rec.Stack.Pop(pops).Push(pushed...)
	}

	rec.Nodes = e.nodes
	e.f.Append(e.nodes...)
	if n := len(e.nodes); n != 0 {
		e.reachable = e.nodes[n-1].FallsThrough()
	}
	if !e.reachable {
		e.stack = nil
	}
	return nil
}

// Finish checks the state after the last record has been encoded.
func (e *Encoder) Finish() error {
	if e.reachable && len(e.body.Records) != 0 {
		return e.ctx.Errorf(method.ErrVerification, "control falls off the end of the method")
	}
	for id, j := range e.joins {
		if !j.emitted {
			return e.ctx.Errorf(method.ErrVerification, "branch to R%d, which is not in the method", id)
		}
	}
	return nil
}

// arity returns the number of stack entries the record consumes.
func (e *Encoder) arity(rec *method.Record) (int, error) {
	switch rec.Opcode {
	case code.OpCall, code.OpCallvirt, code.OpPseudoCallHelper:
		return rec.Method.Sig.ArgCount(), nil
	case code.OpNewobj:
		return rec.Method.Sig.ArgCount() - 1, nil
	case code.OpCalli:
		return rec.Sig.ArgCount() + 1, nil
	case code.OpRet:
		if e.ctx.Method.Sig.ReturnsValue() {
			return 1, nil
		}
		return 0, nil
	case code.OpLeave, code.OpLeaveS:
		return rec.Stack.Depth(), nil
	}
	if pop := rec.Info().Pop; pop != code.VarArity {
		return pop, nil
	}
	return 0, e.ctx.Unsupported("%v has no fixed arity", rec.Opcode)
}

// lower dispatches on the record's opcode. It returns the entries the record pushes.
func (e *Encoder) lower(rec *method.Record, args []method.StackEntry) ([]method.StackEntry, error) {
	switch op := rec.Opcode; op {
	case code.OpNop, code.OpBreak, code.OpPop, code.OpPseudoRotate, code.OpPseudoMoveTo:
		return nil, nil
	case code.OpDup:
		return []method.StackEntry{args[0], args[0]}, nil

	case code.OpLdarg0, code.OpLdarg1, code.OpLdarg2, code.OpLdarg3, code.OpLdargS, code.OpLdarg:
		return e.ldarg(rec.Argidx())
	case code.OpLdargaS, code.OpLdarga:
		return e.ldarga(rec.Argidx())
	case code.OpStargS, code.OpStarg:
		return nil, e.starg(rec.Argidx(), args[0])
	case code.OpLdloc0, code.OpLdloc1, code.OpLdloc2, code.OpLdloc3, code.OpLdlocS, code.OpLdloc:
		return e.ldloc(rec.Localidx())
	case code.OpLdlocaS, code.OpLdloca:
		return e.ldloca(rec.Localidx())
	case code.OpStloc0, code.OpStloc1, code.OpStloc2, code.OpStloc3, code.OpStlocS, code.OpStloc:
		return nil, e.stloc(rec.Localidx(), args[0])

	case code.OpLdnull:
		return e.push(cil.TypeOf(cil.Object), tac.Null()), nil
	case code.OpLdcI4M1, code.OpLdcI40, code.OpLdcI41, code.OpLdcI42, code.OpLdcI43, code.OpLdcI44,
		code.OpLdcI45, code.OpLdcI46, code.OpLdcI47, code.OpLdcI48, code.OpLdcI4S, code.OpLdcI4:
		return e.push(cil.TypeOf(cil.Int32), tac.I32(rec.ConstI4())), nil
	case code.OpLdcI8:
		return e.push(cil.TypeOf(cil.Int64), tac.I64(rec.I64())), nil
	case code.OpLdcR4:
		return e.push(cil.TypeOf(cil.Float32), tac.F32(rec.F32())), nil
	case code.OpLdcR8:
		return e.push(cil.TypeOf(cil.Float64), tac.F64(rec.F64())), nil
	case code.OpLdstr:
		return e.ldstr(rec.Literal)

	case code.OpAdd, code.OpSub, code.OpMul, code.OpDiv, code.OpDivUn, code.OpRem, code.OpRemUn,
		code.OpAnd, code.OpOr, code.OpXor, code.OpAddOvf, code.OpAddOvfUn, code.OpSubOvf, code.OpSubOvfUn,
		code.OpMulOvf, code.OpMulOvfUn:
		return e.binary(op, args[0], args[1])
	case code.OpShl, code.OpShr, code.OpShrUn:
		return e.shift(op, args[0], args[1])
	case code.OpNeg, code.OpNot:
		return e.unary(op, args[0])
	case code.OpCeq, code.OpCgt, code.OpCgtUn, code.OpClt, code.OpCltUn:
		return e.compare(op, args[0], args[1])
	case code.OpCkfinite:
		return e.ckfinite(args[0])

	case code.OpBr, code.OpBrS:
		return nil, e.br(rec.Label())
	case code.OpBrfalse, code.OpBrfalseS, code.OpBrtrue, code.OpBrtrueS:
		return nil, e.brcond(op, rec.Label(), args[0])
	case code.OpBeq, code.OpBeqS, code.OpBneUn, code.OpBneUnS, code.OpBge, code.OpBgeS, code.OpBgeUn,
		code.OpBgeUnS, code.OpBgt, code.OpBgtS, code.OpBgtUn, code.OpBgtUnS, code.OpBle, code.OpBleS,
		code.OpBleUn, code.OpBleUnS, code.OpBlt, code.OpBltS, code.OpBltUn, code.OpBltUnS:
		return nil, e.bcompare(op, rec.Label(), args[0], args[1])
	case code.OpSwitch:
		return nil, e.switchOn(rec.Labels, args[0])
	case code.OpLeave, code.OpLeaveS:
		return nil, e.leave(rec.Label())
	case code.OpEndfinally:
		e.Emit(&tac.Return{Op: tac.OpEndFinally})
		return nil, nil
	case code.OpRet:
		return nil, e.ret(args)
	case code.OpThrow:
		return nil, e.throw(args[0])
	case code.OpRethrow:
		_, err := e.helper(cil.HelperRethrow)
		return nil, err

	case code.OpLdindI1, code.OpLdindU1, code.OpLdindI2, code.OpLdindU2, code.OpLdindI4, code.OpLdindU4,
		code.OpLdindI8, code.OpLdindI, code.OpLdindR4, code.OpLdindR8, code.OpLdindRef:
		return e.ldind(op, args[0])
	case code.OpStindI1, code.OpStindI2, code.OpStindI4, code.OpStindI8, code.OpStindI, code.OpStindR4,
		code.OpStindR8, code.OpStindRef:
		return nil, e.stind(op, args[0], args[1])
	case code.OpLdfld:
		return e.ldfld(rec.Field, args[0])
	case code.OpLdflda:
		return e.ldflda(rec.Field, args[0])
	case code.OpStfld:
		return nil, e.stfld(rec.Field, args[0], args[1])
	case code.OpLdsfld:
		return e.ldsfld(rec.Field)
	case code.OpLdsflda:
		return e.ldsflda(rec.Field)
	case code.OpStsfld:
		return nil, e.stsfld(rec.Field, args[0])
	case code.OpLdobj:
		return e.ldobj(rec.Type, args[0])
	case code.OpStobj:
		return nil, e.stobj(rec.Type, args[0], args[1])
	case code.OpCpobj:
		return nil, e.cpobj(rec.Type, args[0], args[1])
	case code.OpInitobj:
		return nil, e.initobj(rec.Type, args[0])
	case code.OpCpblk:
		return nil, e.block3(cil.HelperMemmove, args)
	case code.OpInitblk:
		return nil, e.block3(cil.HelperMemset, args)
	case code.OpLocalloc:
		return e.localloc(args[0])

	case code.OpNewarr:
		return e.newarr(rec.Type, args[0])
	case code.OpLdlen:
		return e.ldlen(args[0])
	case code.OpLdelema:
		return e.ldelema(rec.Type, args[0], args[1])
	case code.OpLdelemI1, code.OpLdelemU1, code.OpLdelemI2, code.OpLdelemU2, code.OpLdelemI4,
		code.OpLdelemU4, code.OpLdelemI8, code.OpLdelemI, code.OpLdelemR4, code.OpLdelemR8, code.OpLdelemRef:
		return e.ldelem(op, args[0], args[1])
	case code.OpStelemI, code.OpStelemI1, code.OpStelemI2, code.OpStelemI4, code.OpStelemI8,
		code.OpStelemR4, code.OpStelemR8, code.OpStelemRef:
		return nil, e.stelem(op, args[0], args[1], args[2])

	case code.OpCall, code.OpCallvirt:
		return e.call(rec, args)
	case code.OpCalli:
		return e.calli(rec.Sig, args)
	case code.OpNewobj:
		return e.newobj(rec.Method, args)
	case code.OpLdftn:
		return e.ldftn(rec.Method)
	case code.OpLdvirtftn:
		return e.ldvirtftn(rec.Method, args[0])
	case code.OpUnbox:
		return e.unbox(rec.Type, args[0])

	case code.OpPseudoAlloc:
		return e.alloc(rec.Type)
	case code.OpPseudoTypeTest:
		return e.typeTest(rec.Type, args[0])
	case code.OpPseudoCastCheck:
		return e.castCheck(rec.Type, args[0], args[1])
	case code.OpPseudoRetype:
		return e.push(rec.Type, args[0].Var), nil
	case code.OpPseudoTypeInfo:
		return e.typeInfoSymbol(rec.Type)
	case code.OpPseudoMethodInfo:
		e.env.RequestMethod(rec.Method)
		return e.push(cil.TypeOf(cil.NativeInt), tac.Symbol{Name: e.env.Mangler.Method(rec.Method)}), nil
	case code.OpPseudoFieldInfo:
		return e.push(cil.TypeOf(cil.NativeInt), tac.Symbol{Name: e.env.FieldInfo(rec.Field)}), nil
	case code.OpPseudoMakeHandle:
		return e.makeHandle(rec.Type, args[0])
	case code.OpPseudoCallHelper:
		return e.callHelper(rec, args)

	case code.OpConvI1, code.OpConvI2, code.OpConvI4, code.OpConvI8, code.OpConvR4, code.OpConvR8,
		code.OpConvU4, code.OpConvU8, code.OpConvRUn, code.OpConvU2, code.OpConvU1, code.OpConvI, code.OpConvU,
		code.OpConvOvfI1Un, code.OpConvOvfI2Un, code.OpConvOvfI4Un, code.OpConvOvfI8Un, code.OpConvOvfU1Un,
		code.OpConvOvfU2Un, code.OpConvOvfU4Un, code.OpConvOvfU8Un, code.OpConvOvfIUn, code.OpConvOvfUUn,
		code.OpConvOvfI1, code.OpConvOvfU1, code.OpConvOvfI2, code.OpConvOvfU2, code.OpConvOvfI4,
		code.OpConvOvfU4, code.OpConvOvfI8, code.OpConvOvfU8, code.OpConvOvfI, code.OpConvOvfU:
		return e.convert(op, args[0])

	case code.OpBox, code.OpCastclass, code.OpIsinst, code.OpUnboxAny, code.OpLdtoken, code.OpLdelem,
		code.OpStelem, code.OpSizeof:
		return nil, e.ctx.Unsupported("%v must be decomposed before encoding", op)
	}
	return nil, e.ctx.Unsupported("no lowering for %v", rec.Opcode)
}

func (e *Encoder) push(t *cil.Type, v tac.Var) []method.StackEntry {
	return []method.StackEntry{{Type: t, Var: v}}
}

func (e *Encoder) ptr() int {
	return e.env.PointerSize()
}

// width returns the register width of a category.
func (e *Encoder) width(c cil.Category) int {
	switch c {
	case cil.Int32, cil.Float32:
		return 4
	case cil.Int64, cil.Float64:
		return 8
	}
	return e.ptr()
}

func (e *Encoder) layout(t *cil.Type) (*env.ObjectLayout, error) {
	l, err := e.env.ObjectLayout(t)
	if err != nil {
		return nil, e.ctx.Resolution(err)
	}
	return l, nil
}

func (e *Encoder) typeInfo(t *cil.Type) (*env.TypeInfoLayout, error) {
	l, err := e.env.TypeInfoLayout(t)
	if err != nil {
		return nil, e.ctx.Resolution(err)
	}
	return l, nil
}

// sizeOf returns the storage size of a value of type t.
func (e *Encoder) sizeOf(t *cil.Type) (int, error) {
	if t.IsEnum() && t.Elem != nil {
		return e.sizeOf(t.Elem)
	}
	if w := t.Element.Width(); w != 0 {
		return w, nil
	}
	switch t.Element {
	case cil.ElementFnPtr:
		return 2 * e.ptr(), nil
	case cil.ElementValueType, cil.ElementTypedByRef:
		l, err := e.layout(t)
		if err != nil {
			return 0, err
		}
		return l.Size, nil
	}
	return e.ptr(), nil
}

// valueSize returns the payload size of value-type operators on values of type t, or 0 for
// scalars.
func (e *Encoder) valueSize(t *cil.Type) (int, error) {
	if cil.CategoryOf(t) != cil.ValueType {
		return 0, nil
	}
	return e.sizeOf(t)
}

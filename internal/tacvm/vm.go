// Package tacvm evaluates lowered TAC so that tests can check what lowered code does rather than
// how it is spelled. Values live in a flat byte-addressed memory; every argument, local and
// temporary of a running function owns a slot of that memory. Type-info objects and interface
// tables are laid out the way the static module describes them, and the runtime helpers are
// implemented natively.
//
// The machine supports 64-bit targets only. Catch handlers are not supported: a managed exception
// ends evaluation with an *Exception error.
package tacvm

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/compiler/tac"
	"github.com/pgavlin/cil2tac/env/static"
	"golang.org/x/exp/slog"
)

const (
	// Accesses below nullPage fault as null references.
	nullPage = 4096
	// slotSize is the storage reserved for each argument, local and temporary.
	slotSize = 256
	// codeBase is the first code address. Code addresses do not refer to memory.
	codeBase = 1 << 48
	maxSteps = 1 << 22
)

// Native implements a function in Go. Scalar arguments are passed by value; value types larger
// than a word are passed by address.
type Native func(m *Machine, args []uint64) (uint64, error)

type program struct {
	f      *tac.Function
	labels map[int]int
}

func newProgram(f *tac.Function) *program {
	p := &program{f: f, labels: map[int]int{}}
	for i, n := range f.Body {
		if l, ok := n.(*tac.Label); ok {
			p.labels[l.Block] = i
		}
	}
	return p
}

// Machine evaluates the functions of one module. Machines are not safe for concurrent use.
type Machine struct {
	Logger *slog.Logger

	module *static.Module
	ptr    int

	programs map[string]*program
	natives  map[string]Native
	types    map[string]*cil.Type
	literals map[string]string

	mem         []byte
	symbols     map[string]uint64
	code        map[uint64]string
	typeInfos   map[uint64]*cil.Type
	initialized map[*cil.Type]bool
	steps       int
}

// New creates a machine for a module.
func New(module *static.Module) (*Machine, error) {
	if ptr := module.PointerSize(); ptr != 8 {
		return nil, errors.Newf("unsupported pointer size %d", ptr)
	}

	m := &Machine{
		Logger:      slog.Default(),
		module:      module,
		ptr:         module.PointerSize(),
		programs:    map[string]*program{},
		natives:     map[string]Native{},
		types:       map[string]*cil.Type{},
		literals:    map[string]string{},
		mem:         make([]byte, nullPage),
		symbols:     map[string]uint64{},
		code:        map[uint64]string{},
		typeInfos:   map[uint64]*cil.Type{},
		initialized: map[*cil.Type]bool{},
	}
	if err := m.registerNatives(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load adds lowered functions to the machine.
func (m *Machine) Load(fs ...*tac.Function) {
	for _, f := range fs {
		m.programs[f.Name] = newProgram(f)
	}
}

// AddTypes makes types that are not module definitions, such as arrays, known by name.
func (m *Machine) AddTypes(ts ...*cil.Type) {
	for _, t := range ts {
		m.types[t.FullName()] = t
	}
}

// AddStrings registers the contents of string literals.
func (m *Machine) AddStrings(ss ...string) {
	for _, s := range ss {
		m.literals[m.module.StringLiteral(s)] = s
	}
}

// Define implements the named function natively.
func (m *Machine) Define(name string, fn Native) {
	m.natives[name] = fn
}

// Call runs the named function with scalar arguments and returns its scalar result.
func (m *Machine) Call(name string, args ...uint64) (uint64, error) {
	return m.invoke(name, nil, args)
}

func (m *Machine) lookupType(name string) (*cil.Type, error) {
	if t, ok := m.types[name]; ok {
		return t, nil
	}
	for _, t := range m.module.Types() {
		if _, ok := m.types[t.FullName()]; !ok {
			m.types[t.FullName()] = t
		}
	}
	if t, ok := m.types[name]; ok {
		return t, nil
	}
	return nil, errors.Newf("no type named %q", name)
}

// Symbol returns the address of a label. Runtime data is created on first use; any other label
// names a function and receives a code address.
func (m *Machine) Symbol(name string) (uint64, error) {
	if addr, ok := m.symbols[name]; ok {
		return addr, nil
	}

	var addr uint64
	switch {
	case strings.HasSuffix(name, "$typeinfo"):
		t, err := m.lookupType(strings.TrimSuffix(name, "$typeinfo"))
		if err != nil {
			return 0, err
		}
		return m.TypeInfo(t)
	case strings.HasSuffix(name, "$statics"):
		t, err := m.lookupType(strings.TrimSuffix(name, "$statics"))
		if err != nil {
			return 0, err
		}
		l, err := m.module.ObjectLayout(t)
		if err != nil {
			return 0, err
		}
		addr = m.alloc(max(l.StaticSize, 1))
	case strings.HasSuffix(name, "$fieldinfo"):
		addr = m.alloc(m.ptr)
	case strings.HasPrefix(name, "$str"):
		s, ok := m.literals[name]
		if !ok {
			return 0, errors.Newf("unknown string literal %v", name)
		}
		str, err := m.NewString(s)
		if err != nil {
			return 0, err
		}
		addr = str
	default:
		addr = codeBase + uint64(len(m.code))*16
		m.code[addr] = name
	}
	m.symbols[name] = addr
	return addr, nil
}

// Statics returns the address of a type's static storage.
func (m *Machine) Statics(t *cil.Type) (uint64, error) {
	return m.Symbol(m.module.StaticStorage(t))
}

// TypeInfo returns the address of a type's type-info object, building it on first use.
func (m *Machine) TypeInfo(t *cil.Type) (uint64, error) {
	label := m.module.TypeInfo(t)
	if addr, ok := m.symbols[label]; ok {
		return addr, nil
	}

	l, err := m.module.TypeInfoLayout(t)
	if err != nil {
		return 0, err
	}
	addr := m.alloc(l.Size)
	m.symbols[label] = addr
	m.typeInfos[addr] = t

	base := t.Base
	if t.IsArray() {
		if base, err = m.module.WellKnown(cil.KnownArray); err != nil {
			return 0, err
		}
	}
	if base != nil {
		b, err := m.TypeInfo(base)
		if err != nil {
			return 0, err
		}
		if err := m.Write(addr+uint64(static.TypeInfoBase*m.ptr), m.ptr, b); err != nil {
			return 0, err
		}
	}
	if t.IsInterface() {
		return addr, nil
	}

	table, err := m.itable(t)
	if err != nil {
		return 0, err
	}
	if err := m.Write(addr+uint64(l.ITableOffset), m.ptr, table); err != nil {
		return 0, err
	}
	if ol, err := m.module.ObjectLayout(t); err == nil {
		if err := m.Write(addr+uint64(static.TypeInfoSize*m.ptr), m.ptr, uint64(ol.Size)); err != nil {
			return 0, err
		}
	}

	_, impls := m.module.VTable(t)
	for i, impl := range impls {
		if impl.IsAbstract() {
			continue
		}
		fn, err := m.Symbol(m.module.Method(impl))
		if err != nil {
			return 0, err
		}
		if err := m.Write(addr+uint64((static.TypeInfoSlots+i)*m.ptr), m.ptr, fn); err != nil {
			return 0, err
		}
	}
	return addr, nil
}

// itable builds the null-terminated interface table of t. Each record holds the interface's
// type-info address, a zero receiver adjustment and the implementations of the interface's
// methods.
func (m *Machine) itable(t *cil.Type) (uint64, error) {
	ifaces := static.Interfaces(t)
	table := m.alloc((len(ifaces) + 1) * m.ptr)
	slots, impls := m.module.VTable(t)

	for i, iface := range ifaces {
		ident, err := m.TypeInfo(iface)
		if err != nil {
			return 0, err
		}
		rec := m.alloc((2 + len(iface.Methods)) * m.ptr)
		if err := m.Write(rec, m.ptr, ident); err != nil {
			return 0, err
		}
		for j, im := range iface.Methods {
			impl := implementation(t, im)
			if impl == nil {
				continue
			}
			if off, ok := slots[impl.Root()]; ok && impl.IsVirtual() {
				impl = impls[off/m.ptr-static.TypeInfoSlots]
			}
			if impl.IsAbstract() {
				continue
			}
			fn, err := m.Symbol(m.module.Method(impl))
			if err != nil {
				return 0, err
			}
			if err := m.Write(rec+uint64((2+j)*m.ptr), m.ptr, fn); err != nil {
				return 0, err
			}
		}
		if err := m.Write(table+uint64(i*m.ptr), m.ptr, rec); err != nil {
			return 0, err
		}
	}
	return table, nil
}

func implementation(t *cil.Type, im *cil.Method) *cil.Method {
	for c := t; c != nil; c = c.Base {
		if impl := c.Implementation(im); impl != nil {
			return impl
		}
	}
	return nil
}

func (m *Machine) typeAt(ti uint64) (*cil.Type, error) {
	t, ok := m.typeInfos[ti]
	if !ok {
		return nil, errors.Newf("no type info at %#x", ti)
	}
	return t, nil
}

// TypeOf returns the type of an object.
func (m *Machine) TypeOf(obj uint64) (*cil.Type, error) {
	ti, err := m.Read(obj, m.ptr)
	if err != nil {
		return nil, err
	}
	return m.typeAt(ti)
}

type overflow struct {
	signed, unsigned bool
}

type frame struct {
	prog  *program
	slots map[tac.Var]uint64
	// overflow holds the overflow flags of evaluated operations that are linked to a check.
	overflow map[*tac.Instr]overflow
}

func (m *Machine) slot(fr *frame, v tac.Var) uint64 {
	if addr, ok := fr.slots[v]; ok {
		return addr
	}
	addr := m.alloc(slotSize)
	fr.slots[v] = addr
	return addr
}

func argSize(c *tac.Call, i int) int {
	if c == nil || c.Conv == nil || i >= len(c.Conv.Args) {
		return 0
	}
	return c.Conv.Args[i].Size
}

func (m *Machine) invoke(name string, c *tac.Call, args []uint64) (uint64, error) {
	m.Logger.Debug("call", "function", name)

	if p, ok := m.programs[name]; ok {
		fr := &frame{prog: p, slots: map[tac.Var]uint64{}, overflow: map[*tac.Instr]overflow{}}
		for i, a := range args {
			slot := m.slot(fr, tac.Arg{Index: i})
			var err error
			if size := argSize(c, i); size > m.ptr {
				err = m.copyValue(slot, a, size)
			} else {
				err = m.Write(slot, 8, a)
			}
			if err != nil {
				return 0, err
			}
		}
		r, end, err := m.run(fr, 0)
		if err == nil && end {
			err = errors.Newf("%v: endfinally outside a finally handler", name)
		}
		return r, err
	}
	if fn, ok := m.natives[name]; ok {
		return fn(m, args)
	}
	return 0, errors.Newf("no code for %v", name)
}

func (m *Machine) callTarget(fr *frame, target tac.Var) (string, error) {
	if s, ok := target.(tac.Symbol); ok {
		return s.Name, nil
	}
	addr, err := m.eval(fr, target)
	if err != nil {
		return "", err
	}
	if name, ok := m.code[addr]; ok {
		return name, nil
	}
	if addr == 0 {
		return "", throw(nullReference)
	}
	return "", errors.Newf("call through %#x, which is not a code address", addr)
}

func (m *Machine) call(fr *frame, c *tac.Call) error {
	name, err := m.callTarget(fr, c.Target)
	if err != nil {
		return err
	}

	args := make([]uint64, len(c.Args))
	for i, a := range c.Args {
		if argSize(c, i) > m.ptr {
			args[i], err = m.address(fr, a)
		} else {
			args[i], err = m.eval(fr, a)
		}
		if err != nil {
			return err
		}
	}

	r, err := m.invoke(name, c, args)
	if err != nil {
		return err
	}
	if c.NoReturn {
		return errors.Newf("%v returned", name)
	}
	if c.Result == nil {
		return nil
	}
	if c.Size != 0 {
		dst, err := m.address(fr, c.Result)
		if err != nil {
			return err
		}
		return m.copyValue(dst, r, c.Size)
	}
	return m.assign(fr, c.Result, norm(c.Cat, r))
}

// run evaluates a function body from pc until it returns. The second result is true if the
// evaluation ended at an endfinally.
func (m *Machine) run(fr *frame, pc int) (uint64, bool, error) {
	f := fr.prog.f
	block := -1
	for pc < len(f.Body) {
		if m.steps++; m.steps > maxSteps {
			return 0, false, errors.Newf("%v: step limit exceeded", f.Name)
		}

		var err error
		switch n := f.Body[pc].(type) {
		case *tac.Label:
			if pc, err = m.enter(fr, pc, block); err != nil {
				return 0, false, err
			}
			block = n.Block
			continue
		case *tac.Phi:
			return 0, false, errors.Newf("%v: %v is not at the entry of a block", f.Name, n)
		case *tac.Instr:
			err = m.instr(fr, n)
		case *tac.Call:
			err = m.call(fr, n)
		case *tac.Branch:
			if n.Op == tac.OpCallFinally {
				err = m.finally(fr, n.Target)
				break
			}
			var taken bool
			if taken, err = m.taken(fr, n); err == nil && taken {
				if pc, err = m.jump(fr, n.Target); err != nil {
					return 0, false, err
				}
				continue
			}
		case *tac.Switch:
			var v uint64
			if v, err = m.eval(fr, n.A); err == nil && v < uint64(len(n.Targets)) {
				if pc, err = m.jump(fr, n.Targets[v]); err != nil {
					return 0, false, err
				}
				continue
			}
		case *tac.Return:
			if n.Op == tac.OpEndFinally {
				return 0, true, nil
			}
			if n.Value == nil {
				return 0, false, nil
			}
			v, err := m.eval(fr, n.Value)
			if n.Size == 0 {
				v = norm(n.Cat, v)
			}
			return v, false, err
		default:
			err = errors.Newf("%v: unexpected node %v", f.Name, n)
		}
		if err != nil {
			return 0, false, err
		}
		pc++
	}
	return 0, false, errors.Newf("%v: control reached the end of the function", f.Name)
}

func (m *Machine) jump(fr *frame, block int) (int, error) {
	pc, ok := fr.prog.labels[block]
	if !ok {
		return 0, errors.Newf("%v: no label for B%d", fr.prog.f.Name, block)
	}
	return pc, nil
}

func (m *Machine) finally(fr *frame, block int) error {
	pc, err := m.jump(fr, block)
	if err != nil {
		return err
	}
	_, end, err := m.run(fr, pc)
	if err == nil && !end {
		err = errors.Newf("%v: finally handler B%d returned", fr.prog.f.Name, block)
	}
	return err
}

func edge(phi *tac.Phi, pred int) (tac.Var, bool) {
	for _, e := range phi.Edges {
		if e.Block == pred {
			return e.Var, true
		}
	}
	return nil, false
}

// enter evaluates the phis at the head of the block labelled at pc as one parallel assignment,
// runs any static initialization the block requires, and returns the position of the block's
// first ordinary node.
func (m *Machine) enter(fr *frame, pc, pred int) (int, error) {
	f := fr.prog.f
	label := f.Body[pc].(*tac.Label)

	type incoming struct {
		phi   *tac.Phi
		value uint64
		bytes []byte
	}
	var pending []incoming
	for pc++; pc < len(f.Body); pc++ {
		phi, ok := f.Body[pc].(*tac.Phi)
		if !ok {
			break
		}
		src, ok := edge(phi, pred)
		if !ok {
			return 0, errors.Newf("%v: B%d entered from B%d, which is not an edge of %v", f.Name, label.Block, pred, phi)
		}

		in := incoming{phi: phi}
		if phi.Size != 0 {
			addr, err := m.address(fr, src)
			if err != nil {
				return 0, err
			}
			b, err := m.span(addr, phi.Size)
			if err != nil {
				return 0, err
			}
			in.bytes = append([]byte(nil), b...)
		} else {
			v, err := m.eval(fr, src)
			if err != nil {
				return 0, err
			}
			in.value = v
		}
		pending = append(pending, in)
	}

	for _, in := range pending {
		addr := m.slot(fr, in.phi.Result)
		if in.bytes == nil {
			if err := m.Write(addr, 8, in.value); err != nil {
				return 0, err
			}
			continue
		}
		if len(in.bytes) > slotSize {
			return 0, errors.Newf("%v: value of %d bytes exceeds a slot", f.Name, len(in.bytes))
		}
		copy(m.mem[addr:], in.bytes)
	}

	if label.Block < len(f.Blocks) {
		for _, t := range f.Block(label.Block).StaticInit.ToSlice() {
			if err := m.initType(t); err != nil {
				return 0, err
			}
		}
	}
	return pc, nil
}

func (m *Machine) initType(t *cil.Type) error {
	if m.initialized[t] {
		return nil
	}
	m.initialized[t] = true
	cctor := t.StaticConstructor()
	if cctor == nil {
		return nil
	}
	_, err := m.invoke(m.module.Method(cctor), nil, nil)
	return err
}

// address returns the address of a storage operand.
func (m *Machine) address(fr *frame, v tac.Var) (uint64, error) {
	switch v := v.(type) {
	case tac.Arg, tac.Local, tac.Logical:
		return m.slot(fr, v), nil
	case tac.ContentsOf:
		base, err := m.eval(fr, v.Of)
		if err != nil {
			return 0, err
		}
		return base + uint64(int64(v.Offset)), nil
	}
	return 0, errors.Newf("%v has no storage", v)
}

func (m *Machine) eval(fr *frame, v tac.Var) (uint64, error) {
	switch v := v.(type) {
	case tac.Const:
		return v.Bits, nil
	case tac.Symbol:
		return m.Symbol(v.Name)
	case tac.AddressOf:
		var base uint64
		var err error
		if s, ok := v.Of.(tac.Symbol); ok {
			base, err = m.Symbol(s.Name)
		} else {
			base, err = m.address(fr, v.Of)
		}
		return base + uint64(int64(v.Offset)), err
	case tac.ContentsOf:
		addr, err := m.address(fr, v)
		if err != nil {
			return 0, err
		}
		return m.Read(addr, v.Width)
	}
	addr, err := m.address(fr, v)
	if err != nil {
		return 0, err
	}
	return m.Read(addr, 8)
}

// assign stores a scalar. Stores to memory narrower than a word truncate.
func (m *Machine) assign(fr *frame, dst tac.Var, v uint64) error {
	width := 8
	if c, ok := dst.(tac.ContentsOf); ok {
		width = c.Width
	}
	addr, err := m.address(fr, dst)
	if err != nil {
		return err
	}
	return m.Write(addr, width, v)
}

func (m *Machine) move(fr *frame, dst, src tac.Var, size int) error {
	from, err := m.address(fr, src)
	if err != nil {
		return err
	}
	to, err := m.address(fr, dst)
	if err != nil {
		return err
	}
	return m.copyValue(to, from, size)
}

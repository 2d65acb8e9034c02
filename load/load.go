// Package load reads module descriptions written in YAML. A module file lists type definitions
// with their fields and methods; method bodies are written in the assembly syntax of package asm.
//
//	target:
//	  pointerSize: 8
//	types:
//	- namespace: N
//	  name: Counter
//	  kind: class
//	  fields:
//	  - {name: count, type: int32}
//	  methods:
//	  - name: Next
//	    sig: instance int32()
//	    body: |
//	      ldarg.0
//	      dup
//	      ldfld N.Counter::count
//	      ldc.i4.1
//	      add
//	      stfld N.Counter::count
//	      ldarg.0
//	      ldfld N.Counter::count
//	      ret
package load

import (
	"bufio"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/env/static"
	"gopkg.in/yaml.v3"
)

// File is the top-level structure of a module file.
type File struct {
	Target static.Target `yaml:"target"`
	Types  []TypeDef     `yaml:"types"`
}

// TypeDef describes a type definition. Kind is one of class, struct, interface, enum or delegate.
// Type references use the names accepted by static.Module.LookupType.
type TypeDef struct {
	Namespace  string      `yaml:"namespace"`
	Name       string      `yaml:"name"`
	Kind       string      `yaml:"kind"`
	Base       string      `yaml:"base"`
	Flags      []string    `yaml:"flags"`
	Interfaces []string    `yaml:"interfaces"`
	Underlying string      `yaml:"underlying"`
	Fields     []FieldDef  `yaml:"fields"`
	Methods    []MethodDef `yaml:"methods"`
}

type FieldDef struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Static bool   `yaml:"static"`
}

// MethodDef describes a method. Sig has the form "[instance] ret(param, ...)"; methods without
// the instance keyword are static.
type MethodDef struct {
	Name      string      `yaml:"name"`
	Sig       string      `yaml:"sig"`
	Flags     []string    `yaml:"flags"`
	Overrides string      `yaml:"overrides"`
	Locals    []string    `yaml:"locals"`
	Body      string      `yaml:"body"`
	Regions   []RegionDef `yaml:"regions"`
}

// RegionDef describes a protected region. Try and Handler each name a start and an end label in
// the method body; ends are exclusive.
type RegionDef struct {
	Kind    string   `yaml:"kind"`
	Try     []string `yaml:"try"`
	Handler []string `yaml:"handler"`
	Catch   string   `yaml:"catch"`
}

// Parse decodes a module file. Unknown fields are errors.
func Parse(r io.Reader) (*File, error) {
	var f File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, errors.Wrap(err, "parsing module")
	}
	return &f, nil
}

// LoadModule reads a module file and builds the module it describes.
func LoadModule(r io.Reader) (*static.Module, error) {
	f, err := Parse(bufio.NewReader(r))
	if err != nil {
		return nil, err
	}
	return Build(f)
}

// LoadFile reads the module file at the given path.
func LoadFile(path string) (*static.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := LoadModule(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%v", path)
	}
	return m, nil
}

// Package objtool holds the build- and inspection-time helpers behind
// cmd/pluginctl: compiling plugin sources into the object files the
// object-file Shared-Library Primitive backend loads, and
// walking an object file's or linker file's import graph for
// diagnostics. Adapted from the teacher's tools.go, which these
// helpers are a direct descendant of.
package objtool

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ZenLiuCN/fn"
	"github.com/pkujhd/goloader"
	"github.com/pkujhd/goloader/obj"
)

// objfileInternalsPaths names the two go toolchain paths the object-
// file backend's CompileObject depends on: `go tool compile` resolves
// package info through cmd/objfile, which the toolchain ships
// unexported under cmd/internal instead. These are the only
// filesystem paths MirrorObjfileInternals/ForgetObjfileInternals ever
// touch; there is no general-purpose copy here, only this one
// classloader-specific SDK layout fixup.
func objfileInternalsPaths() (src, dst string) {
	return os.ExpandEnv("$GOROOT/src/cmd/internal"), os.ExpandEnv("$GOROOT/src/cmd/objfile")
}

// MirrorObjfileInternals makes GOROOT/src/cmd/objfile available by
// mirroring it from cmd/internal, if it isn't there already. Needed
// once per go toolchain install before CompileObject can produce
// object files for the object-file Shared-Library Primitive backend.
func MirrorObjfileInternals(debug bool) error {
	src, dst := objfileInternalsPaths()
	switch _, err := os.Stat(dst); {
	case err == nil:
		if debug {
			log.Printf("objtool: %s already present", dst)
		}
		return nil
	case !os.IsNotExist(err):
		return err
	}

	rootInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("objtool: go toolchain is missing %s: %w", src, err)
	}
	if debug {
		log.Printf("objtool: mirroring %s into %s", src, dst)
	}
	return filepath.WalkDir(src, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, rootInfo.Mode())
		}
		return mirrorObjfileSource(path, target)
	})
}

func mirrorObjfileSource(src, dst string) (err error) {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer fn.IgnoreClose(in)
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer fn.IgnoreClose(out)
	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode())
}

// ForgetObjfileInternals removes the mirror MirrorObjfileInternals
// created.
func ForgetObjfileInternals(debug bool) error {
	_, dst := objfileInternalsPaths()
	if _, err := os.Stat(dst); err != nil {
		if debug {
			log.Printf("objtool: %s absent, nothing to remove", dst)
		}
		return nil
	}
	if debug {
		log.Printf("objtool: removing %s", dst)
	}
	return os.RemoveAll(dst)
}

// CompileObject invokes `go tool compile` against sources, producing a
// relocatable object file suitable for the object-file backend. It
// reads the importcfg file WriteImportConfig wrote and removes it
// after a successful compile unless debug is set, matching the
// teacher's Compile.
func CompileObject(debug bool, args []string) (err error) {
	cmd := exec.Command("go", append([]string{"tool", "compile", "-importcfg", "importcfg"}, args...)...)
	if debug {
		log.Printf("objtool: execute %v", cmd.Args)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err = cmd.Run()
	if err == nil && !debug {
		err = os.Remove("importcfg")
	}
	return
}

// WriteImportConfig generates an importcfg file for the named sources
// in the current working directory, resolving each import's compiled
// package archive via `go list`.
func WriteImportConfig(debug bool, files []string) (err error) {
	if debug {
		log.Printf("objtool: sources %v", files)
	}
	cfg, err := os.OpenFile("importcfg", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.ModePerm)
	if err != nil {
		return err
	}
	defer fn.IgnoreClose(cfg)

	cmd := exec.Command("go", append([]string{"list", "-export", "-f", "{{.Imports}}"}, files...)...)
	if debug {
		log.Printf("objtool: execute %v", cmd.Args)
	}
	bout, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("objtool: list imports: %w\nstderr: %s", err, exitErr.Stderr)
		}
		return fmt.Errorf("objtool: list imports: %w", err)
	}
	out := strings.TrimSpace(string(bout))
	if out != "" && out[0] == '[' {
		out = out[1 : len(out)-1]
	}
	deps := strings.Split(out, " ")

	cmd = exec.Command("go", append([]string{"list", "-export", "-f",
		"{{if .Export}}packagefile {{.ImportPath}}={{.Export}}{{end}}", "std"}, deps...)...)
	if debug {
		log.Printf("objtool: execute %v", cmd.Args)
	}
	bout, err = cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("objtool: resolve packagefiles: %w\nstderr: %s", err, exitErr.Stderr)
		}
		return fmt.Errorf("objtool: resolve packagefiles: %w", err)
	}
	_, err = cfg.Write(bout)
	return
}

// Inspect lists the exported symbols of an object file, as seen by
// the object backend before it's ever linked.
func Inspect(file, pkg string) ([]string, error) {
	return goloader.Parse(file, pkg)
}

// Dependency is the set of packages one object or linker file imports,
// each with its resolved module version when determinable.
type Dependency struct {
	File    string
	PkgPath string
	Imports map[string]string
}

func (d *Dependency) String() string {
	s := strings.Builder{}
	for p, v := range d.Imports {
		if v != "" {
			fmt.Fprintf(&s, "\t%s@%s\n", p, v)
		} else {
			fmt.Fprintf(&s, "\t%s\n", p)
		}
	}
	return s.String()
}

// Dependencies is a stringer slice of Dependency, for multi-file CLI
// output.
type Dependencies []*Dependency

func (ds Dependencies) String() string {
	s := strings.Builder{}
	for _, d := range ds {
		s.WriteString(d.String())
	}
	return s.String()
}

// ObjectDependencies resolves every package an object file imports,
// along with versions where the import path embeds one.
func ObjectDependencies(file, pkgPath string) (*Dependency, error) {
	v := &obj.Pkg{Syms: make(map[string]*obj.ObjSymbol), File: file, PkgPath: pkgPath}
	if v.PkgPath == obj.EmptyString {
		v.PkgPath = "main"
	}
	if err := v.Symbols(); err != nil {
		return nil, err
	}
	d := parseDependency(v)
	d.File = file
	d.PkgPath = pkgPath
	return d, nil
}

// LinkerDependencies resolves the import graph of every package
// folded into a serialized linker file.
func LinkerDependencies(linker *goloader.Linker) Dependencies {
	var out Dependencies
	for _, pkg := range linker.Packages {
		d := parseDependency(pkg)
		d.File = pkg.File
		d.PkgPath = pkg.PkgPath
		out = append(out, d)
	}
	return out
}

func parseDependency(v *obj.Pkg) *Dependency {
	d := &Dependency{Imports: make(map[string]string)}
	for _, pkg := range v.ImportPkgs {
		d.Imports[pkg] = ""
	}
	var keys []string
	for pkg := range d.Imports {
		keys = append(keys, pkg)
	}
	for _, f := range v.CUFiles {
		f = strings.TrimPrefix(f, "gofile..")
		if strings.HasPrefix(f, "$GOROOT") {
			continue
		}
		if strings.IndexByte(f, '!') >= 0 {
			f = unescapePackageName(f)
		}
		for _, k := range keys {
			x := strings.Index(f, k)
			if x < 0 {
				continue
			}
			f = f[x:]
			if d.Imports[k] != "" {
				continue
			}
			y := strings.IndexByte(f, '@')
			if y < 0 {
				continue
			}
			ver := f[y+1:]
			if y = strings.IndexByte(ver, '/'); y >= 0 {
				ver = ver[:y]
			}
			d.Imports[k] = ver
		}
	}
	return d
}

// unescapePackageName reverses the Go toolchain's "!x" escape for
// uppercase letters in filesystem-derived package names.
func unescapePackageName(f string) string {
	v := strings.Builder{}
	shift := false
	for _, c := range []byte(f) {
		switch {
		case c == '!':
			shift = true
		case shift:
			shift = false
			v.WriteByte(c - 32)
		default:
			v.WriteByte(c)
		}
	}
	return v.String()
}

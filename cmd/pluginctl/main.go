// Command pluginctl builds and inspects the plugin artifacts the
// object-file Shared-Library Primitive backend loads. It consolidates
// the teacher's two near-duplicate CLI tools (compile/bin.go and
// compiler/bin.go, which differed only in whether they supported a
// module/archive pack mode the snapshot never actually defined) into
// one binary with clearly named subcommands.
package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/pkujhd/goloader"
	"github.com/urfave/cli/v2"

	"github.com/hexforge/classloader/internal/objtool"
)

func main() {
	app := &cli.App{
		Name:        "pluginctl",
		Usage:       "build and inspect classloader plugin artifacts",
		Description: "compiles plugin sources into object files for the object-file backend, and inspects object/linker files for their symbol and dependency graphs",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}},
		},
		Commands: []*cli.Command{
			{
				Name:      "compile",
				Usage:     "compile go sources (or '.' for the working directory) into a plugin object file",
				ArgsUsage: "<sources...>",
				Action:    runCompile,
			},
			{
				Name:   "prepare",
				Usage:  "copy the go sdk internals compile needs into GOROOT",
				Action: runPrepare,
			},
			{
				Name:   "clean",
				Usage:  "remove the go sdk internals copied by prepare",
				Action: runClean,
			},
			{
				Name:      "imports",
				Usage:     "list the package imports of a plugin object file",
				ArgsUsage: "<object files...>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pkg", Aliases: []string{"p"}, Usage: "package path, defaults to main"},
				},
				Action: runImports,
			},
			{
				Name:      "linker",
				Usage:     "list the package imports of a serialized linker file",
				ArgsUsage: "<linker files...>",
				Action:    runLinker,
			},
			{
				Name:      "symbols",
				Usage:     "list the exported symbols of a plugin object file",
				ArgsUsage: "<object file>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pkg", Aliases: []string{"p"}, Usage: "package path, defaults to main"},
				},
				Action: runSymbols,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("pluginctl: %v", err)
	}
}

func sourcesOrWorkingDir(args []string) ([]string, error) {
	if len(args) != 1 || args[0] != "." {
		return args, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(wd)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") {
			out = append(out, name)
		}
	}
	return out, nil
}

func runCompile(ctx *cli.Context) error {
	debug := ctx.Bool("debug")
	sources, err := sourcesOrWorkingDir(ctx.Args().Slice())
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("missing target sources list")
	}
	if _, err := exec.LookPath("go"); err != nil {
		return fmt.Errorf("missing go sdk: %w", err)
	}
	if err := objtool.WriteImportConfig(debug, sources); err != nil {
		return fmt.Errorf("generate importcfg: %w", err)
	}
	return objtool.CompileObject(debug, sources)
}

func runPrepare(ctx *cli.Context) error {
	return objtool.MirrorObjfileInternals(ctx.Bool("debug"))
}

func runClean(ctx *cli.Context) error {
	return objtool.ForgetObjfileInternals(ctx.Bool("debug"))
}

func runImports(ctx *cli.Context) error {
	pkg := ctx.String("pkg")
	for _, file := range ctx.Args().Slice() {
		dep, err := objtool.ObjectDependencies(file, pkg)
		if err != nil {
			return err
		}
		log.Printf("\n%s", dep.String())
	}
	return nil
}

func runLinker(ctx *cli.Context) error {
	for _, file := range ctx.Args().Slice() {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		linker, err := goloader.UnSerialize(f)
		_ = f.Close()
		if err != nil {
			return err
		}
		deps := objtool.LinkerDependencies(linker)
		log.Printf("\n%s", deps.String())
	}
	return nil
}

func runSymbols(ctx *cli.Context) error {
	file := ctx.Args().First()
	if file == "" {
		return fmt.Errorf("missing object file argument")
	}
	syms, err := objtool.Inspect(file, ctx.String("pkg"))
	if err != nil {
		return err
	}
	for _, s := range syms {
		fmt.Println(s)
	}
	return nil
}

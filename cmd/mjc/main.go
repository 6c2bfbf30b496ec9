// Command mjc compiles MiniJava source files to MIPS binaries.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/repr"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/ztrue/tracerr"
	"golang.org/x/term"
	"gopkg.in/yaml.v2"

	"mjc/pkg/asm"
	"mjc/pkg/compiler"
	"mjc/pkg/utils"
)

const manifestName = "mjc.yaml"

// moduleManifest is the optional per-project mjc.yaml: a default main file
// and output path, so `mjc build` works with no arguments.
type moduleManifest struct {
	Package string `yaml:"package"`
	Main    string `yaml:"main"`
	Output  string `yaml:"output"`
}

func main() {
	app := &cli.App{
		Name:  "mjc",
		Usage: "MiniJava compiler targeting MIPS",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable per-stage debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			initCommand(),
			buildCommand(),
			checkCommand(),
			asmCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		printError(err)
		os.Exit(1)
	}
}

// printError shows a colored trace on a terminal and a plain one-liner when
// output is piped.
func printError(err error) {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		tracerr.PrintSourceColor(tracerr.Wrap(err))
		return
	}
	fmt.Fprintf(os.Stderr, "mjc: %s\n", err)
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "write an mjc.yaml manifest for the current directory",
		ArgsUsage: "<package-name>",
		Action: func(c *cli.Context) error {
			name := c.Args().First()
			if name == "" {
				return fmt.Errorf("no package name provided")
			}
			manifest := moduleManifest{
				Package: name,
				Main:    name + ".java",
				Output:  name + ".bin",
			}
			out, err := yaml.Marshal(manifest)
			if err != nil {
				return err
			}
			return utils.WriteFile(manifestName, out)
		},
	}
}

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "compile a MiniJava file to a MIPS binary",
		ArgsUsage: "[source-file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "binary output path",
			},
			&cli.StringFlag{
				Name:  "asm-out",
				Usage: "also write the generated assembly text to this path",
			},
			&cli.BoolFlag{
				Name:  "dump-tokens",
				Usage: "print the token stream and stop before parsing",
			},
			&cli.BoolFlag{
				Name:  "dump-ast",
				Usage: "print the syntax tree after semantic analysis",
			},
			&cli.BoolFlag{
				Name:  "dump-asm",
				Usage: "print the generated assembly text",
			},
		},
		Action: func(c *cli.Context) error {
			sourcePath, manifest, err := resolveSource(c)
			if err != nil {
				return err
			}
			if full, _, err := utils.GetPathInfo(sourcePath); err == nil {
				log.Debugf("compiling %s", full)
			}
			source, err := os.ReadFile(sourcePath)
			if err != nil {
				return err
			}

			if c.Bool("dump-tokens") {
				tokens, err := compiler.Tokenize(string(source))
				if err != nil {
					return err
				}
				fmt.Print(compiler.DumpTokens(tokens))
				return nil
			}

			res, err := compiler.Compile(string(source))
			if err != nil {
				return err
			}
			if c.Bool("dump-ast") {
				repr.Println(res.Program)
			}
			if c.Bool("dump-asm") {
				fmt.Print(res.Assembly)
			}
			if path := c.String("asm-out"); path != "" {
				if err := utils.WriteFile(path, []byte(res.Assembly)); err != nil {
					return err
				}
			}

			outPath := c.String("output")
			if outPath == "" && manifest != nil {
				outPath = manifest.Output
			}
			if outPath == "" {
				outPath = strings.TrimSuffix(sourcePath, ".java") + ".bin"
			}
			if err := utils.WriteFile(outPath, res.Binary); err != nil {
				return err
			}
			log.Infof("wrote %s (%d words, %s)", outPath, len(res.Binary)/4, utils.Fingerprint(res.Binary))
			return nil
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "run the front end only: lex, parse, and semantic analysis",
		ArgsUsage: "[source-file]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dump-ast",
				Usage: "print the syntax tree after semantic analysis",
			},
			&cli.BoolFlag{
				Name:  "dump-symbols",
				Usage: "print the class symbol table",
			},
		},
		Action: func(c *cli.Context) error {
			sourcePath, _, err := resolveSource(c)
			if err != nil {
				return err
			}
			source, err := os.ReadFile(sourcePath)
			if err != nil {
				return err
			}
			res, err := compiler.Check(string(source))
			if err != nil {
				return err
			}
			if c.Bool("dump-ast") {
				repr.Println(res.Program)
			}
			if c.Bool("dump-symbols") {
				fmt.Print(res.Symbols)
			}
			return nil
		},
	}
}

func asmCommand() *cli.Command {
	return &cli.Command{
		Name:      "asm",
		Usage:     "assemble a MIPS assembly text file to a binary",
		ArgsUsage: "<asm-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "binary output path",
			},
			&cli.BoolFlag{
				Name:  "dump-labels",
				Usage: "print the resolved label table",
			},
		},
		Action: func(c *cli.Context) error {
			asmPath := c.Args().First()
			if asmPath == "" {
				return fmt.Errorf("no assembly file provided")
			}
			source, err := os.ReadFile(asmPath)
			if err != nil {
				return err
			}
			assembler := asm.NewAssembler()
			binary, _, err := assembler.Assemble(string(source))
			if err != nil {
				return err
			}
			if c.Bool("dump-labels") {
				fmt.Print(assembler.LabelTable())
			}
			outPath := c.String("output")
			if outPath == "" {
				outPath = strings.TrimSuffix(asmPath, ".s") + ".bin"
			}
			if err := utils.WriteFile(outPath, binary); err != nil {
				return err
			}
			log.Infof("wrote %s (%d words, %s)", outPath, len(binary)/4, utils.Fingerprint(binary))
			return nil
		},
	}
}

// resolveSource picks the source file: an explicit argument wins, otherwise
// the manifest in the working directory supplies it.
func resolveSource(c *cli.Context) (string, *moduleManifest, error) {
	manifest := readManifest()
	if path := c.Args().First(); path != "" {
		return path, manifest, nil
	}
	if manifest != nil && manifest.Main != "" {
		return manifest.Main, manifest, nil
	}
	return "", nil, fmt.Errorf("no source file given and no %s found", manifestName)
}

func readManifest() *moduleManifest {
	data, err := os.ReadFile(manifestName)
	if err != nil {
		return nil
	}
	var m moduleManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		log.Warnf("ignoring malformed %s: %s", manifestName, err)
		return nil
	}
	return &m
}

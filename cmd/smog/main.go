// Command smog is the launcher spec.md calls "out of scope" for the core
// engine itself (§1) but requires as its external front-end (§6): it
// parses command-line flags, resolves a classpath, builds a Universe,
// and either disassembles a class's compiled methods or runs a program
// by loading its entry class, instantiating it, and sending it #run:
// with the remaining command-line arguments as a String Array —
// grounded on som-interpreter-bc's main()/run()/initialize(args)
// convention (see DESIGN.md).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kristofer/smog/pkg/bytecode"
	"github.com/kristofer/smog/pkg/classloader"
	"github.com/kristofer/smog/pkg/interner"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/universe"
	"github.com/kristofer/smog/pkg/value"
	"github.com/kristofer/smog/pkg/vmbc"
)

// defaultHeapWords sizes a fresh Universe's heap when -heapsize isn't
// given: generous enough for the worked scenarios spec.md §8 describes
// (deep recursion, GC-surviving string retention) without requiring
// every invocation to size its own heap.
const defaultHeapWords = 1 << 20

var (
	classpathFlag   string
	disassembleFlag bool
	verboseFlag     bool
	heapSizeFlag    int
)

func main() {
	root := &cobra.Command{
		Use:           "smog [flags] <file.som> [args...]",
		Short:         "smog runs or disassembles a class compiled against the bytecode VM",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE:          run,
	}

	// -cp/-heapsize are multi-letter single-dash flags in spec.md §6;
	// pflag shorthands must be exactly one rune, so they're exposed as
	// long flags here, with -d/-v kept as genuine shorthands for
	// --disassemble/--verbose (DESIGN.md: cmd/smog, flag surface).
	root.Flags().StringVar(&classpathFlag, "cp", "", "classpath, colon-separated directories searched for <Name>.som")
	root.Flags().BoolVarP(&disassembleFlag, "disassemble", "d", false, "disassemble the given class instead of running it")
	root.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "raise GC/dispatch logging to debug level")
	root.Flags().IntVar(&heapSizeFlag, "heapsize", 0, "heap capacity in words (default: a generous fixed size)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "smog:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no program file given (usage: %s)", cmd.Use)
	}
	file := args[0]
	programArgs := args[1:]

	level := zerolog.InfoLevel
	if verboseFlag {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger().Level(level)

	classpath := append(classloader.ParseClasspath(classpathFlag), filepath.Dir(file))

	heapWords := defaultHeapWords
	if heapSizeFlag > 0 {
		heapWords = heapSizeFlag
	}

	u := universe.New(heapWords, classpath, os.Stdout, log)
	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))

	if disassembleFlag {
		return disassembleClass(u, stem, os.Stdout)
	}
	return runProgram(u, stem, programArgs)
}

// runProgram loads the class named by stem, instantiates it, and drives
// it the way som-interpreter-bc's Universe::initialize does: sending
// #run: with an Array of the trailing command-line arguments as Strings
// when the class defines that selector, falling back to a bare #run for
// programs (like spec.md §8's worked scenarios) that take none.
func runProgram(u *universe.Universe, stem string, programArgs []string) error {
	cls, err := u.LoadClass(stem)
	if err != nil {
		return err
	}

	vm := vmbc.New(u)
	recv := object.NewInstance(u.Heap, cls).AsValue()

	runWithArgsID := uint32(u.Interner.Intern("run:"))
	runID := uint32(u.Interner.Intern("run"))

	var err2 error
	switch {
	case hasSelector(cls, runWithArgsID):
		argArray := object.NewArray(u.Heap, len(programArgs))
		for i, a := range programArgs {
			argArray.SetAt(i, object.NewHeapString(u.Heap, a).AsValue())
		}
		_, err2 = vm.Invoke(recv, "run:", []value.Value{argArray.AsValue()})
	case hasSelector(cls, runID):
		_, err2 = vm.Invoke(recv, "run", nil)
	default:
		return fmt.Errorf("%s understands neither #run: nor #run", stem)
	}
	return err2
}

func hasSelector(cls object.Class, selID uint32) bool {
	_, ok := cls.LookupInstanceMethod(selID)
	return ok
}

// disassembleClass prints stem's instance- and class-side method table,
// one method per line of header followed by its disassembled body for
// MethodDefined methods — the spec.md §6 "-d"/"-disassemble" mode,
// grounded on som-interpreter-bc's dump_class_methods.
func disassembleClass(u *universe.Universe, stem string, out *os.File) error {
	cls, err := u.LoadClass(stem)
	if err != nil {
		return err
	}
	resolve := func(id uint32) string {
		name, ok := u.Interner.Lookup(interner.Id(id))
		if !ok {
			return fmt.Sprintf("#%d", id)
		}
		return name
	}

	className, _ := u.Interner.Lookup(interner.Id(cls.NameID()))

	for i := 0; i < cls.InstanceMethodCount(); i++ {
		selID, methodRef := cls.InstanceMethodAt(i)
		dumpMethod(u, out, className, resolve(selID), object.Method{H: u.Heap, Ref: methodRef}, resolve)
	}
	for i := 0; i < cls.ClassMethodCount(); i++ {
		selID, methodRef := cls.ClassMethodAt(i)
		dumpMethod(u, out, className+" class", resolve(selID), object.Method{H: u.Heap, Ref: methodRef}, resolve)
	}
	return nil
}

func dumpMethod(u *universe.Universe, out *os.File, holderName, selName string, m object.Method, resolve bytecode.SymbolResolver) {
	switch m.Kind() {
	case object.MethodDefined:
		code := u.Compiler.Code.Get(m.Code())
		fmt.Fprintf(out, "%s>>#%s (%d locals, %d literals)\n", holderName, selName, code.NumLocals, len(code.Literals))
		_ = code.Disassemble(out, resolve)
	case object.MethodPrimitive:
		fmt.Fprintf(out, "%s>>#%s (primitive)\n", holderName, selName)
	case object.MethodTrivialLiteral:
		fmt.Fprintf(out, "%s>>#%s (trivial literal)\n", holderName, selName)
	case object.MethodTrivialGlobal:
		fmt.Fprintf(out, "%s>>#%s (trivial global)\n", holderName, selName)
	case object.MethodTrivialGetter:
		fmt.Fprintf(out, "%s>>#%s (trivial getter)\n", holderName, selName)
	case object.MethodTrivialSetter:
		fmt.Fprintf(out, "%s>>#%s (trivial setter)\n", holderName, selName)
	default:
		fmt.Fprintf(out, "%s>>#%s (specialized)\n", holderName, selName)
	}
}

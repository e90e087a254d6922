// Package universe holds the process-wide state spec §9 requires be
// passed explicitly into every interpreter operation rather than live in
// package-level globals: the heap, the interner, the table of loaded
// classes, and the global namespace (`nil`, `true`, `false`, `system`,
// and every loaded class name). Exactly one Universe exists per running
// program; both pkg/vmbc and pkg/vmast are built against it.
package universe

import (
	"fmt"
	"io"

	"github.com/dolthub/swiss"
	"github.com/rs/zerolog"

	"github.com/kristofer/smog/pkg/ast"
	"github.com/kristofer/smog/pkg/classloader"
	"github.com/kristofer/smog/pkg/compiler"
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/interner"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/primitives"
	"github.com/kristofer/smog/pkg/value"
)

// classFields records the field-name lists object.Class's heap layout
// deliberately doesn't keep (it persists only a count): CompileClass
// needs the full inherited+own name list to resolve field accesses by
// name at compile time, so the Go side tracks it per loaded class for as
// long as the process runs.
type classFields struct {
	instance []string
	class    []string
}

// Universe is the root object every other package threads through its
// operations instead of reaching for a package-level global (spec §9).
type Universe struct {
	Heap       *gc.Heap
	Interner   *interner.Interner
	Primitives *primitives.Registry
	Compiler   *compiler.Compiler
	Log        zerolog.Logger
	Out        io.Writer

	globals     *swiss.Map[string, value.Value]
	coreClasses map[string]gc.Ref
	fields      map[string]classFields
	loader      *classloader.Loader
}

// New builds a Universe with a fresh heap of the given capacity, the
// standard primitive registry, and the core class hierarchy bootstrapped
// (spec §4.2/§4.7). classpath is the directory list searched for
// user-defined classes (spec §6's `-cp`); out receives transcript output.
func New(heapWords int, classpath []string, out io.Writer, log zerolog.Logger) *Universe {
	h := gc.NewHeap(heapWords, gc.DefaultPlanName, log)
	object.RegisterTypes(h)

	in := interner.New()
	u := &Universe{
		Heap:        h,
		Interner:    in,
		Primitives:  primitives.NewRegistry(),
		Log:         log,
		Out:         out,
		globals:     swiss.NewMap[string, value.Value](64),
		coreClasses: make(map[string]gc.Ref, 32),
		fields:      make(map[string]classFields, 32),
		loader:      classloader.New(classpath),
	}
	u.Compiler = compiler.New(h, in)
	h.RegisterRoot(u)

	primitives.RegisterObject(u.Primitives)
	primitives.RegisterClass(u.Primitives)
	primitives.RegisterNumeric(u.Primitives)
	primitives.RegisterArray(u.Primitives)
	primitives.RegisterString(u.Primitives)
	primitives.RegisterBlock(u.Primitives)
	primitives.RegisterSystem(u.Primitives)

	u.globals.Put("nil", value.Nil)
	u.globals.Put("true", value.True)
	u.globals.Put("false", value.False)
	u.globals.Put("system", value.System)

	u.bootstrap()
	return u
}

// EnumerateRoots implements gc.RootProvider: globals and the core class
// table are the two sources of heap pointers that live outside any Frame
// and must survive collection regardless of what's currently executing.
func (u *Universe) EnumerateRoots(visit func(gc.Ref) gc.Ref) {
	u.globals.Iter(func(name string, v value.Value) bool {
		if ref, ok := v.AsPointer(); ok {
			newRef := visit(toGCRef(ref))
			u.globals.Put(name, value.NewPointer(toValueRef(newRef)))
		}
		return false
	})
	for name, ref := range u.coreClasses {
		u.coreClasses[name] = visit(ref)
	}
}

func toGCRef(r value.Ref) gc.Ref     { return gc.Ref(r) }
func toValueRef(r gc.Ref) value.Ref { return value.Ref(r) }

// Global resolves a name against the global namespace: the language
// literals, then loaded classes, then plain globals assigned at runtime.
func (u *Universe) Global(name string) (value.Value, bool) {
	return u.globals.Get(name)
}

// SetGlobal assigns or overwrites a global binding.
func (u *Universe) SetGlobal(name string, v value.Value) {
	u.globals.Put(name, v)
}

// CoreClass returns one of the bootstrapped base classes by name
// ("Object", "Integer", "Array", ...), panicking if name isn't one of
// the classes New bootstraps — a programmer error, not a runtime one.
func (u *Universe) CoreClass(name string) object.Class {
	ref, ok := u.coreClasses[name]
	if !ok {
		panic("universe: no such core class " + name)
	}
	return object.Class{H: u.Heap, Ref: ref}
}

// ClassOf resolves v's runtime class the way Object>>class must: tagged
// scalars and built-in heap types map to a fixed core class; Instances
// carry their own class pointer directly (spec §4.2, §4.7 — the one
// piece of "what is my class" logic that must live above pkg/primitives
// because it needs the full CoreClasses table, not just the Instance
// case pkg/primitives can resolve on its own).
func (u *Universe) ClassOf(v value.Value) object.Class {
	switch {
	case v.IsNil():
		return u.CoreClass("Nil")
	case v.IsBoolean():
		b, _ := v.AsBoolean()
		if b {
			return u.CoreClass("True")
		}
		return u.CoreClass("False")
	case v.IsInteger():
		return u.CoreClass("Integer")
	case v.IsDouble():
		return u.CoreClass("Double")
	case v.IsChar():
		return u.CoreClass("Char")
	case v.IsSymbol():
		return u.CoreClass("Symbol")
	case v.IsSystem():
		return u.CoreClass("System")
	}
	ref, ok := v.AsPointer()
	if !ok {
		return u.CoreClass("Object")
	}
	gref := toGCRef(ref)
	switch u.Heap.HeaderType(gref) {
	case object.TypeInstance:
		return object.Instance{H: u.Heap, Ref: gref}.Class()
	case object.TypeString:
		return u.CoreClass("String")
	case object.TypeArray:
		return u.CoreClass("Array")
	case object.TypeBlock:
		return u.CoreClass("Block")
	case object.TypeBigInteger:
		return u.CoreClass("Integer")
	case object.TypeClass:
		return u.CoreClass("Class")
	case object.TypeMethod:
		return u.CoreClass("Method")
	default:
		return u.CoreClass("Object")
	}
}

// LoadClass resolves a user-defined class by name, parsing and compiling
// it (and, recursively, any unresolved superclass) on first use; later
// calls return the already-compiled class via the global namespace.
// Grounded on the teacher's Loader.Load, extended with the field-table
// bookkeeping CompileClass's superFields/superClassFields parameters
// need.
func (u *Universe) LoadClass(name string) (object.Class, error) {
	if v, ok := u.globals.Get(name); ok {
		if ref, ok := v.AsPointer(); ok && u.Heap.HeaderType(toGCRef(ref)) == object.TypeClass {
			return object.Class{H: u.Heap, Ref: toGCRef(ref)}, nil
		}
	}
	def, err := u.loader.Load(name)
	if err != nil {
		return object.Class{}, fmt.Errorf("universe: load %s: %w", name, err)
	}
	return u.defineClass(def)
}

func (u *Universe) defineClass(def *ast.ClassDef) (object.Class, error) {
	// An absent superclass means Object, per parser.parseClassDef's doc
	// comment — every user class has a superclass, even if unstated.
	superName := def.Superclass
	if superName == "" {
		superName = "Object"
	}
	sc, err := u.resolveSuperclass(superName)
	if err != nil {
		return object.Class{}, err
	}
	super := &sc
	sf := u.fields[superName]
	superFields, superClassFields := sf.instance, sf.class
	cls, err := u.Compiler.CompileClass(super, superFields, superClassFields, def)
	if err != nil {
		return object.Class{}, err
	}
	u.fields[def.Name] = classFields{
		instance: append(append([]string{}, superFields...), def.InstanceFields...),
		class:    append(append([]string{}, superClassFields...), def.ClassFields...),
	}
	u.globals.Put(def.Name, cls.AsValue())
	return cls, nil
}

func (u *Universe) resolveSuperclass(name string) (object.Class, error) {
	if ref, ok := u.coreClasses[name]; ok {
		return object.Class{H: u.Heap, Ref: ref}, nil
	}
	return u.LoadClass(name)
}

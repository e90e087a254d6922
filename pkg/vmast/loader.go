package vmast

import (
	"fmt"

	"github.com/kristofer/smog/pkg/ast"
	"github.com/kristofer/smog/pkg/classloader"
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/universe"
	"github.com/kristofer/smog/pkg/value"
)

// classFields mirrors pkg/universe's own private bookkeeping of the same
// name: object.Class's heap layout keeps only a field count, so the name
// list CompileClass needs to resolve field accesses by name has to live
// somewhere on the Go side for as long as the process runs. Since
// universe.Universe's own table is unexported (it's filled in by
// u.Compiler, the bytecode backend's compiler), this package keeps an
// independent one rather than reach into Universe's internals — the two
// backends pick one compiler for the whole program, never interleave
// class-by-class, so there is never a need to merge the two tables.
type classFields struct {
	instance []string
	class    []string
}

// Loader resolves and compiles classes for the AST backend, the
// counterpart to universe.Universe.LoadClass for programs that choose
// this backend instead of pkg/vmbc. It shares u's heap, interner, and
// global namespace (a class it defines becomes visible to any code
// sending to it by name, exactly as u.LoadClass's classes do) but
// compiles through its own Compiler rather than u.Compiler.
type Loader struct {
	U      *universe.Universe
	C      *Compiler
	loader *classloader.Loader
	fields map[string]classFields
}

// NewLoader builds a Loader searching classpath for "<Name>.som" files,
// compiling them with c against u.
func NewLoader(u *universe.Universe, c *Compiler, classpath []string) *Loader {
	return &Loader{
		U:      u,
		C:      c,
		loader: classloader.New(classpath),
		fields: make(map[string]classFields, 32),
	}
}

// LoadClass resolves name, compiling it (and any unresolved superclass)
// on first use; a name already bound in u's globals — whether a core
// class or one this Loader already compiled — is returned directly.
func (l *Loader) LoadClass(name string) (object.Class, error) {
	if v, ok := l.U.Global(name); ok {
		if cls, ok := asClass(l.U, v); ok {
			return cls, nil
		}
	}
	def, err := l.loader.Load(name)
	if err != nil {
		return object.Class{}, fmt.Errorf("vmast: load %s: %w", name, err)
	}
	return l.defineClass(def)
}

func (l *Loader) defineClass(def *ast.ClassDef) (object.Class, error) {
	superName := def.Superclass
	if superName == "" {
		superName = "Object"
	}
	super, err := l.resolveSuperclass(superName)
	if err != nil {
		return object.Class{}, err
	}
	sf := l.fields[superName]
	cls, err := l.C.CompileClass(&super, sf.instance, sf.class, def)
	if err != nil {
		return object.Class{}, err
	}
	l.fields[def.Name] = classFields{
		instance: append(append([]string{}, sf.instance...), def.InstanceFields...),
		class:    append(append([]string{}, sf.class...), def.ClassFields...),
	}
	l.U.SetGlobal(def.Name, cls.AsValue())
	return cls, nil
}

func (l *Loader) resolveSuperclass(name string) (object.Class, error) {
	if v, ok := l.U.Global(name); ok {
		if cls, ok := asClass(l.U, v); ok {
			return cls, nil
		}
	}
	return l.LoadClass(name)
}

// asClass reports whether v is a Class value, matching universe.go's own
// LoadClass check (a global can just as easily be bound to nil, an
// Integer, or an Instance as to a loaded Class).
func asClass(u *universe.Universe, v value.Value) (object.Class, bool) {
	ref, ok := v.AsPointer()
	if !ok {
		return object.Class{}, false
	}
	gref := gc.Ref(ref)
	if u.Heap.HeaderType(gref) != object.TypeClass {
		return object.Class{}, false
	}
	return object.Class{H: u.Heap, Ref: gref}, true
}

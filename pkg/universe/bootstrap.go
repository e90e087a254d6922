package universe

import (
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/object"
)

// coreClassDef describes one bootstrapped class: its superclass (by
// name, already bootstrapped) and the primitive selectors it answers,
// each bound by looking the primitive's registration name up in
// u.Primitives. Field counts are all zero — every core class is either
// represented directly by a tagged value.Value (Integer, Double, ...)
// or has its storage described by its own heap layout (HeapString,
// Array, Block, ...), never by Instance's generic field vector.
type coreClassDef struct {
	name           string
	super          string // "" only for Object
	instanceMethod map[string]string // selector -> primitive registration name
	classMethod    map[string]string
}

// bootstrap builds the base class hierarchy spec §4.2/§4.7 assumes is
// always present, wiring each class's primitive methods from the
// registry built in New. Grounded on the teacher's fixed set of builtin
// types (int64, float64, string, []interface{}, Block, bool) — this
// promotes each of those Go-native cases to a first-class Class object
// methods can be added to or overridden on (spec §4.2's class hierarchy
// requirement, which the teacher's type-switch dispatch has no
// counterpart for).
func (u *Universe) bootstrap() {
	defs := []coreClassDef{
		{name: "Object", instanceMethod: map[string]string{
			"==": "Object>>==", "=": "Object>>=", "~=": "Object>>~=",
			"isNil": "Object>>isNil", "notNil": "Object>>notNil",
			"class": "Object>>class", "hashcode": "Object>>hashcode",
			"printString":   "Object>>printString",
			"escapedBlock:": "Object>>escapedBlock:",
		}},
		{name: "Class", super: "Object", instanceMethod: map[string]string{
			"name": "Class>>name", "superclass": "Class>>superclass",
		}},
		{name: "Nil", super: "Object"},
		{name: "Boolean", super: "Object"},
		{name: "True", super: "Boolean"},
		{name: "False", super: "Boolean"},
		{name: "Char", super: "Object"},
		{name: "System", super: "Object", instanceMethod: map[string]string{
			"printString:":  "System>>printString:",
			"printNewline":  "System>>printNewline",
			"errorPrintln:": "System>>errorPrintln:",
			"global:":       "System>>global:",
			"global:put:":   "System>>global:put:",
			"fullGC":        "System>>fullGC",
			"exit:":         "System>>exit:",
		}},
		{name: "Number", super: "Object", instanceMethod: map[string]string{
			"+": "Number>>+", "-": "Number>>-", "*": "Number>>*", "/": "Number>>/",
			"<": "Number>><", ">": "Number>>>", "<=": "Number>><=", ">=": "Number>>>=",
			"=": "Number>>=",
		}},
		{name: "Integer", super: "Number", instanceMethod: map[string]string{
			"asDouble": "Integer>>asDouble", "sqrt": "Integer>>sqrt",
			"to:do:": "Integer>>to:do:", "to:by:do:": "Integer>>to:by:do:",
			"downTo:do:": "Integer>>downTo:do:",
		}},
		{name: "Double", super: "Number", instanceMethod: map[string]string{
			"asInteger": "Double>>asInteger",
		}},
		{name: "String", super: "Object", instanceMethod: map[string]string{
			"length": "String>>length", ",": "String>>,", "=": "String>>=",
			"asSymbol": "String>>asSymbol", "asUppercase": "String>>asUppercase",
			"printString": "String>>printString",
		}},
		{name: "Symbol", super: "String", instanceMethod: map[string]string{
			"asString": "Symbol>>asString",
		}},
		{name: "Array", super: "Object", instanceMethod: map[string]string{
			"length": "Array>>length", "at:": "Array>>at:", "at:put:": "Array>>at:put:",
			"do:": "Array>>do:",
		}, classMethod: map[string]string{
			"new:": "Array class>>new:",
		}},
		{name: "Block", super: "Object", instanceMethod: map[string]string{
			"value":              "Block>>value",
			"value:":             "Block>>value:",
			"value:value:":       "Block>>value:value:",
			"value:value:value:": "Block>>value:value:value:",
		}},
		{name: "Block1", super: "Block"},
		{name: "Block2", super: "Block", instanceMethod: map[string]string{
			"value:": "Block>>value:",
		}},
		{name: "Block3", super: "Block", instanceMethod: map[string]string{
			"value:value:": "Block>>value:value:",
		}},
		{name: "Method", super: "Object"},
		{name: "Primitive", super: "Method"},
	}

	for _, def := range defs {
		u.defineCoreClass(def)
	}
}

func (u *Universe) defineCoreClass(def coreClassDef) {
	instanceSelectors := make([]uint32, 0, len(def.instanceMethod))
	for selector := range def.instanceMethod {
		instanceSelectors = append(instanceSelectors, uint32(u.Interner.Intern(selector)))
	}
	classSelectors := make([]uint32, 0, len(def.classMethod))
	for selector := range def.classMethod {
		classSelectors = append(classSelectors, uint32(u.Interner.Intern(selector)))
	}

	superRef := gc.NilRef
	if def.super != "" {
		superRef = u.coreClasses[def.super]
	}
	nameID := uint32(u.Interner.Intern(def.name))
	cls := object.NewClass(u.Heap, nameID, superRef, 0, instanceSelectors, classSelectors)

	for selector, primName := range def.instanceMethod {
		id, ok := u.Primitives.Lookup(primName)
		if !ok {
			panic("universe: unregistered primitive " + primName)
		}
		selID := uint32(u.Interner.Intern(selector))
		method := object.NewMethod(u.Heap, object.MethodSpec{
			Kind:       object.MethodPrimitive,
			Holder:     cls.Ref,
			SelectorID: selID,
			ArgCount:   selectorArity(selector),
			Code:       id,
		})
		cls.SetInstanceMethod(selID, method.Ref)
	}
	for selector, primName := range def.classMethod {
		id, ok := u.Primitives.Lookup(primName)
		if !ok {
			panic("universe: unregistered primitive " + primName)
		}
		selID := uint32(u.Interner.Intern(selector))
		method := object.NewMethod(u.Heap, object.MethodSpec{
			Kind:       object.MethodPrimitive,
			Holder:     cls.Ref,
			SelectorID: selID,
			ArgCount:   selectorArity(selector),
			Code:       id,
		})
		cls.SetClassMethod(selID, method.Ref)
	}

	u.coreClasses[def.name] = cls.Ref
	u.globals.Put(def.name, cls.AsValue())
	// Every core class has zero fields; recorded so defineClass can
	// concatenate a user subclass's own fields onto an empty base list.
	u.fields[def.name] = classFields{}
}

// selectorArity infers a selector's argument count from its own shape:
// zero colons is unary, one colon and no operator characters is a
// keyword message with as many arguments as colons, anything else is
// binary (spec §2's message grammar — mirrors the teacher's
// compileMessageSend selector classification).
func selectorArity(selector string) int {
	n := 0
	for _, r := range selector {
		if r == ':' {
			n++
		}
	}
	if n > 0 {
		return n
	}
	if len(selector) > 0 && !isIdentStart(rune(selector[0])) {
		return 1
	}
	return 0
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

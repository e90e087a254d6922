// Package classloader resolves class names to ".som" source files across a
// classpath of directories, the way the reference interpreter's class
// loader resolves `Name` by searching each classpath entry for `Name.som`
// (spec.md §6). The teacher has no classloader at all (it only ever reads
// a single file given on the command line), so this package's behavior is
// grounded on som-interpreter-bc's `main()` instead: the classpath is the
// `-cp`/`-c` roots plus, when a file is given directly, that file's own
// directory appended last.
package classloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kristofer/smog/pkg/ast"
	"github.com/kristofer/smog/pkg/parser"
)

// Loader searches a classpath, in order, for "<Name>.som" files.
type Loader struct {
	Paths []string
}

// New creates a Loader over the given classpath directories.
func New(paths []string) *Loader {
	return &Loader{Paths: append([]string(nil), paths...)}
}

// ParseClasspath splits a "-cp" argument on the classpath separator ":".
func ParseClasspath(arg string) []string {
	if arg == "" {
		return nil
	}
	return strings.Split(arg, ":")
}

// WithFileDirectory returns a Loader whose classpath has dir(file)
// appended, so `smog path/to/Program.som` can reference sibling classes
// in the same directory without an explicit -cp.
func (l *Loader) WithFileDirectory(file string) *Loader {
	dir := filepath.Dir(file)
	return &Loader{Paths: append(append([]string(nil), l.Paths...), dir)}
}

// Resolve finds "<name>.som" on the classpath and returns its file path,
// searching paths in order and returning the first match.
func (l *Loader) Resolve(name string) (string, error) {
	filename := name + ".som"
	for _, dir := range l.Paths {
		candidate := filepath.Join(dir, filename)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("classloader: class %q not found on classpath %v", name, l.Paths)
}

// Load resolves "<name>.som" and parses it into its ClassDef. A source
// file may define more than one class (the parser itself has no such
// restriction); Load picks the one matching name, falling back to the
// sole class when the file defines exactly one.
func (l *Loader) Load(name string) (*ast.ClassDef, error) {
	path, err := l.Resolve(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classloader: reading %s: %w", path, err)
	}

	p := parser.New(string(data))
	classes, err := p.Parse()
	if err != nil {
		return nil, fmt.Errorf("classloader: parsing %s: %w", path, err)
	}

	for _, c := range classes {
		if c.Name == name {
			return c, nil
		}
	}
	if len(classes) == 1 {
		return classes[0], nil
	}
	return nil, fmt.Errorf("classloader: %s does not define class %q", path, name)
}

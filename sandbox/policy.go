package sandbox

import (
	"fmt"
	"go/parser"
	"go/token"
	"strings"
)

// AllowedPackages defines the standard library packages that user plugin code
// is permitted to import. The set is intentionally narrower than the one for
// trusted dynamic components: ui plugins compute over data handed to them by
// the host API and have no business doing I/O of their own.
var AllowedPackages = map[string]bool{
	"fmt":             true,
	"strings":         true,
	"strconv":         true,
	"encoding/json":   true,
	"encoding/base64": true,
	"time":            true,
	"math":            true,
	"math/rand":       true,
	"sort":            true,
	"errors":          true,
	"bytes":           true,
	"unicode":         true,
	"unicode/utf8":    true,
	"regexp":          true,
	"maps":            true,
	"slices":          true,
}

// BlockedPackages are explicitly forbidden regardless of the allowlist.
var BlockedPackages = map[string]bool{
	"os":            true,
	"os/exec":       true,
	"io":            true,
	"net":           true,
	"net/http":      true,
	"syscall":       true,
	"unsafe":        true,
	"plugin":        true,
	"reflect":       true,
	"runtime/debug": true,
}

// IsPackageAllowed checks whether an import path is permitted in plugin code.
func IsPackageAllowed(pkg string) bool {
	if BlockedPackages[pkg] {
		return false
	}
	return AllowedPackages[pkg]
}

// ValidateSource performs a syntax check on plugin source and verifies that
// only allowed packages are imported. It runs at install time so a plugin
// with a forbidden import never reaches the interpreter.
func ValidateSource(source string) error {
	fset := token.NewFileSet()
	// Full parse, not ImportsOnly: a body syntax error must fail installation
	// rather than surface later inside the interpreter.
	f, err := parser.ParseFile(fset, "plugin.go", source, 0)
	if err != nil {
		return fmt.Errorf("sandbox: syntax error: %w", err)
	}

	for _, imp := range f.Imports {
		// imp.Path.Value includes surrounding quotes
		pkg := strings.Trim(imp.Path.Value, `"`)
		if !IsPackageAllowed(pkg) {
			return fmt.Errorf("sandbox: import %q is not allowed in plugin code", pkg)
		}
	}
	return nil
}

package interp

import (
	"strings"

	"github.com/closecrowd/apyshell/internal/object"
)

// unsafeAttrs are denied on every type regardless of the capability tables.
var unsafeAttrs = map[string]bool{
	"func_globals": true,
	"func_code":    true,
	"func_closure": true,
	"im_class":     true,
	"im_func":      true,
	"im_self":      true,
	"gi_code":      true,
	"gi_frame":     true,
	"f_locals":     true,
	"f_globals":    true,
	"f_builtins":   true,
}

// attrDenied reports whether an attribute name is blocked outright: any
// dunder-shaped name plus the explicit unsafe list.
func attrDenied(name string) bool {
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return true
	}
	return unsafeAttrs[name]
}

// Capability tables: the attribute names scripts may read, per exposed type.
// Anything absent is default-deny ("not found" rather than "denied").

var strAttrs = map[string]bool{
	"upper": true, "lower": true, "capitalize": true, "title": true,
	"strip": true, "lstrip": true, "rstrip": true,
	"split": true, "rsplit": true, "splitlines": true, "join": true,
	"replace": true, "find": true, "rfind": true, "count": true,
	"startswith": true, "endswith": true,
	"isdigit": true, "isalpha": true, "isalnum": true, "isspace": true,
	"isupper": true, "islower": true,
	"ljust": true, "rjust": true, "center": true, "zfill": true,
}

var listAttrs = map[string]bool{
	"append": true, "extend": true, "insert": true, "remove": true,
	"pop": true, "clear": true, "index": true, "count": true,
	"sort": true, "reverse": true, "copy": true,
}

var dictAttrs = map[string]bool{
	"get": true, "keys": true, "values": true, "items": true,
	"pop": true, "clear": true, "update": true, "setdefault": true,
	"copy": true,
}

// attrAllowed consults the capability table for the value's type.
func attrAllowed(obj object.Object, name string) bool {
	switch obj.(type) {
	case *object.Str:
		return strAttrs[name]
	case *object.List:
		return listAttrs[name]
	case *object.Dict:
		return dictAttrs[name]
	case *object.Module:
		return true // module attrs resolve against the namespace itself
	}
	return false
}

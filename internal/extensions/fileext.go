package extensions

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/closecrowd/apyshell/internal/object"
)

func init() {
	Register("fileext", func() Extension { return &fileExt{} })
}

// fileExt gives scripts line-oriented access to text files under a single
// host-chosen root directory. Scripts name files bare; the extension
// resolves them against file_root and refuses anything that escapes it.
type fileExt struct {
	root string
	ext  string
}

func (f *fileExt) Name() string { return "fileext" }

func (f *fileExt) Shutdown() {}

func (f *fileExt) Commands(api API, options map[string]string) (map[string]object.BuiltinFunc, error) {
	f.root = optStr(options, "file_root", ".")
	f.ext = optStr(options, "file_ext", ".txt")
	return map[string]object.BuiltinFunc{
		"readLines_":   f.readLines,
		"writeLines_":  f.writeLines,
		"appendLines_": f.appendLines,
		"listFiles_":   f.listFiles,
	}, nil
}

// resolve maps a script-supplied name to a path under the root, rejecting
// separators and parent references outright.
func (f *fileExt) resolve(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if !strings.HasSuffix(name, f.ext) {
		name += f.ext
	}
	return filepath.Join(f.root, name), nil
}

func (f *fileExt) readLines(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	name, err := oneStringArg("readLines_", args)
	if err != nil {
		return nil, err
	}
	path, err := f.resolve(name)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(path)
	if err != nil {
		return object.None, nil
	}
	defer fh.Close()
	out := &object.List{}
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		out.Elements = append(out.Elements, &object.Str{Value: sc.Text()})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("readLines_: %w", err)
	}
	return out, nil
}

func (f *fileExt) writeLines(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	return f.putLines("writeLines_", args, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

func (f *fileExt) appendLines(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	return f.putLines("appendLines_", args, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
}

func (f *fileExt) putLines(cmd string, args []object.Object, flags int) (object.Object, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%s() takes exactly 2 arguments (%d given)", cmd, len(args))
	}
	name, ok := args[0].(*object.Str)
	if !ok {
		return nil, fmt.Errorf("%s() first argument must be str", cmd)
	}
	path, err := f.resolve(name.Value)
	if err != nil {
		return nil, err
	}
	var lines []string
	switch v := args[1].(type) {
	case *object.Str:
		lines = []string{v.Value}
	case *object.List:
		for _, el := range v.Elements {
			s, ok := el.(*object.Str)
			if !ok {
				return nil, fmt.Errorf("%s() list items must be str", cmd)
			}
			lines = append(lines, s.Value)
		}
	default:
		return nil, fmt.Errorf("%s() second argument must be str or list of str", cmd)
	}
	fh, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return object.False, nil
	}
	defer fh.Close()
	w := bufio.NewWriter(fh)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			return object.False, nil
		}
	}
	if err := w.Flush(); err != nil {
		return object.False, nil
	}
	return object.True, nil
}

func (f *fileExt) listFiles(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return object.None, nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), f.ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), f.ext))
	}
	sort.Strings(names)
	out := &object.List{}
	for _, n := range names {
		out.Elements = append(out.Elements, &object.Str{Value: n})
	}
	return out, nil
}

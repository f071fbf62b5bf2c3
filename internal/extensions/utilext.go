package extensions

import (
	"fmt"
	"os"
	"time"

	"github.com/closecrowd/apyshell/internal/object"
)

func init() {
	Register("utilext", func() Extension { return &utilExt{} })
}

// utilExt is a grab bag of host information commands. getenv_ is off by
// default; hosts opt in with the allow_getenv option.
type utilExt struct {
	allowEnv bool
}

func (u *utilExt) Name() string { return "utilext" }

func (u *utilExt) Shutdown() {}

func (u *utilExt) Commands(api API, options map[string]string) (map[string]object.BuiltinFunc, error) {
	u.allowEnv = optBool(options, "allow_getenv")
	return map[string]object.BuiltinFunc{
		"getenv_":   u.getenv,
		"hostname_": u.hostname,
		"datetime_": u.datetime,
		"timems_":   u.timems,
	}, nil
}

func (u *utilExt) getenv(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	if !u.allowEnv {
		return nil, fmt.Errorf("getenv_(): environment access is disabled")
	}
	name, err := oneStringArg("getenv_", args)
	if err != nil {
		return nil, err
	}
	v, ok := os.LookupEnv(name)
	if !ok {
		return object.None, nil
	}
	return &object.Str{Value: v}, nil
}

func (u *utilExt) hostname(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	h, err := os.Hostname()
	if err != nil {
		return object.None, nil
	}
	return &object.Str{Value: h}, nil
}

// datetime returns the local time, formatted by an optional layout in
// time.Time reference notation.
func (u *utilExt) datetime(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	layout := "2006-01-02 15:04:05"
	if len(args) == 1 {
		s, ok := args[0].(*object.Str)
		if !ok {
			return nil, fmt.Errorf("datetime_() layout must be str")
		}
		layout = s.Value
	} else if len(args) > 1 {
		return nil, fmt.Errorf("datetime_() takes at most one argument (%d given)", len(args))
	}
	return &object.Str{Value: time.Now().Format(layout)}, nil
}

func (u *utilExt) timems(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	return &object.Int{Value: time.Now().UnixMilli()}, nil
}

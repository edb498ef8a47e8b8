package expr

import (
	"bytes"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-yaml"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/ext"
)

type lib struct{}

func (lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		ext.Strings(),
		ext.Lists(),

		cel.Constant("fs.CREATE", types.IntType, types.Int(fsnotify.Create)),
		cel.Constant("fs.REMOVE", types.IntType, types.Int(fsnotify.Remove)),
		cel.Constant("fs.WRITE", types.IntType, types.Int(fsnotify.Write)),
		cel.Constant("fs.RENAME", types.IntType, types.Int(fsnotify.Rename)),
		cel.Constant("fs.CHMOD", types.IntType, types.Int(fsnotify.Chmod)),

		// Example: op.has(fs.WRITE, fs.CREATE).
		cel.Macros(
			cel.ReceiverVarArgMacro("has", hasVarArgMacro),
		),
		cel.Function("@has",
			cel.Overload("@has_int_int", []*cel.Type{cel.IntType, cel.IntType}, cel.BoolType,
				cel.BinaryBinding(func(event, flag ref.Val) ref.Val {
					return opHas(event, flag)
				}),
			),
			cel.Overload("@has_int_list_int", []*cel.Type{cel.IntType, cel.ListType(cel.IntType)}, cel.BoolType,
				cel.BinaryBinding(func(event, flags ref.Val) ref.Val {
					list, ok := flags.(traits.Lister)
					if !ok {
						return types.NewErr("has: invalid flags list")
					}

					size, ok := list.Size().(types.Int)
					if !ok {
						return types.NewErr("has: invalid flags list size")
					}

					var mask types.Int
					for i := range size {
						flag, ok := list.Get(i).(types.Int)
						if !ok {
							return types.NewErr("has: invalid flag value in list")
						}

						mask |= flag
					}

					return opHas(event, mask)
				}),
			),
		),

		// Example: files.filter(f, pathBase(f) != "02-transport.yaml").
		pathFunction("pathBase", filepath.Base),
		// Example: files.filter(f, pathDir(f) == dir).
		pathFunction("pathDir", filepath.Dir),
		// Example: files.filter(f, pathExt(f) in [".yaml", ".yml"]).
		pathFunction("pathExt", filepath.Ext),

		// `yamlPath` reads a YAML file and returns the value at a YAML path,
		// or null when the file or path cannot be read.
		// Example: files.filter(f, yamlPath(f, "$.kind") == "IngressRoute").
		cel.Function("yamlPath",
			cel.Overload("yaml_path", []*cel.Type{cel.StringType, cel.StringType}, cel.DynType,
				cel.BinaryBinding(func(file, path ref.Val) ref.Val {
					fileStr, ok := file.Value().(string)
					if !ok {
						return types.NewErr("yamlPath: invalid file path")
					}

					pathStr, ok := path.Value().(string)
					if !ok {
						return types.NewErr("yamlPath: invalid yaml path")
					}

					return readYAMLPath(fileStr, pathStr)
				}),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

func pathFunction(name string, fn func(string) string) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(name+"_string", []*cel.Type{cel.StringType}, cel.StringType,
			cel.UnaryBinding(func(path ref.Val) ref.Val {
				s, ok := path.Value().(string)
				if !ok {
					return types.NewErr("%s: invalid string value", name)
				}

				return types.String(fn(s))
			}),
		),
	)
}

//nolint:ireturn // Following CEL's function signature.
func opHas(event, flag ref.Val) ref.Val {
	eventInt, ok := event.(types.Int)
	if !ok || eventInt < 0 || eventInt > math.MaxUint32 {
		return types.NewErr("has: event value out of range")
	}

	flagInt, ok := flag.(types.Int)
	if !ok || flagInt < 0 || flagInt > math.MaxUint32 {
		return types.NewErr("has: flag value out of range")
	}

	//nolint:gosec // G115: bounds checked above.
	return types.Bool(fsnotify.Op(eventInt)&fsnotify.Op(flagInt) != 0)
}

//nolint:ireturn // Following CEL's function signature.
func readYAMLPath(file, pathExpr string) ref.Val {
	logger := slog.With(
		slog.String("file", file),
		slog.String("yamlPath", pathExpr),
	)

	content, err := os.ReadFile(file) //nolint:gosec // G304: Paths come from the selected directory.
	if err != nil {
		logger.Debug("read yaml file", slog.Any("error", err))

		return types.NullValue
	}

	path, err := yaml.PathString(pathExpr)
	if err != nil {
		logger.Debug("parse yaml path", slog.Any("error", err))

		return types.NullValue
	}

	var value any

	err = path.Read(bytes.NewReader(content), &value)
	if err != nil {
		logger.Debug("read yaml path", slog.Any("error", err))

		return types.NullValue
	}

	return ConvertToCELValue(value)
}

//nolint:ireturn // Following CEL's function signature.
func hasVarArgMacro(meh cel.MacroExprFactory, target ast.Expr, args []ast.Expr) (ast.Expr, *cel.Error) {
	switch len(args) {
	case 0:
		return nil, meh.NewError(target.ID(), "has() requires at least one argument")
	case 1:
		return meh.NewCall("@has", target, args[0]), nil
	default:
		return meh.NewCall("@has", target, meh.NewList(args...)), nil
	}
}

// ConvertToCELValue converts a decoded YAML value to a CEL value. Values CEL
// cannot represent become null.
//
//nolint:ireturn // Following CEL's function signature.
func ConvertToCELValue(value any) ref.Val {
	if value == nil {
		return types.NullValue
	}

	v := types.DefaultTypeAdapter.NativeToValue(value)
	if types.IsError(v) || types.IsUnknown(v) {
		return types.NullValue
	}

	return v
}

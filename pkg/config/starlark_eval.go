package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/openfroyo/detyped/pkg/protocol"
)

// DefaultScriptTimeout bounds script execution when no timeout is given.
const DefaultScriptTimeout = 30 * time.Second

// ScriptEvaluator runs Starlark invocation scripts. A script calls
//
//	invoke(address, operation, **params)
//
// once per invocation; Evaluate returns the invocations in call order
// without applying them.
type ScriptEvaluator struct {
	timeout  time.Duration
	maxSteps uint64
	logger   zerolog.Logger
}

// NewScriptEvaluator creates a new script evaluator.
func NewScriptEvaluator(timeout time.Duration, logger zerolog.Logger) *ScriptEvaluator {
	if timeout == 0 {
		timeout = DefaultScriptTimeout
	}
	return &ScriptEvaluator{
		timeout: timeout,
		logger:  logger.With().Str("component", "script").Logger(),
	}
}

// WithMaxSteps bounds the number of Starlark computation steps.
func (se *ScriptEvaluator) WithMaxSteps(steps uint64) *ScriptEvaluator {
	se.maxSteps = steps
	return se
}

// EvaluateFile reads and evaluates a script file.
func (se *ScriptEvaluator) EvaluateFile(ctx context.Context, path string, input map[string]interface{}) ([]protocol.InvocationRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}
	return se.evaluate(ctx, filepath.Base(path), string(data), input)
}

// Evaluate executes a script with the given input bound as predeclared
// globals.
func (se *ScriptEvaluator) Evaluate(ctx context.Context, script string, input map[string]interface{}) ([]protocol.InvocationRequest, error) {
	return se.evaluate(ctx, "invocations.star", script, input)
}

func (se *ScriptEvaluator) evaluate(ctx context.Context, filename, script string, input map[string]interface{}) ([]protocol.InvocationRequest, error) {
	startTime := time.Now()

	evalCtx, cancel := context.WithTimeout(ctx, se.timeout)
	defer cancel()

	var requests []protocol.InvocationRequest
	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			se.logger.Info().Str("script", filename).Msg(msg)
		},
	}
	if se.maxSteps > 0 {
		thread.SetMaxExecutionSteps(se.maxSteps)
	}

	go func() {
		<-evalCtx.Done()
		thread.Cancel(evalCtx.Err().Error())
	}()

	predeclared := starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"invoke": starlark.NewBuiltin("invoke", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			req, err := invocationFromCall(b, args, kwargs)
			if err != nil {
				return nil, err
			}
			requests = append(requests, req)
			return starlark.String(req.ID), nil
		}),
	}

	names := make([]string, 0, len(input))
	for key := range input {
		names = append(names, key)
	}
	sort.Strings(names)
	for _, key := range names {
		if _, reserved := predeclared[key]; reserved {
			return nil, fmt.Errorf("input %s shadows a builtin", key)
		}
		val, err := toStarlarkValue(input[key])
		if err != nil {
			return nil, fmt.Errorf("failed to convert input %s: %w", key, err)
		}
		predeclared[key] = val
	}

	if _, err := starlark.ExecFile(thread, filename, script, predeclared); err != nil {
		if ctxErr := evalCtx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("script %s cancelled after %v: %w", filename, time.Since(startTime).Round(time.Millisecond), ctxErr)
		}
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, fmt.Errorf("script %s failed: %s", filename, evalErr.Backtrace())
		}
		return nil, fmt.Errorf("script %s failed: %w", filename, err)
	}

	se.logger.Debug().
		Str("script", filename).
		Int("invocations", len(requests)).
		Dur("duration", time.Since(startTime)).
		Msg("script evaluated")
	return requests, nil
}

func invocationFromCall(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (protocol.InvocationRequest, error) {
	var address, operation string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, nil, 2, &address, &operation); err != nil {
		return protocol.InvocationRequest{}, err
	}

	req := protocol.InvocationRequest{
		ID:        uuid.NewString(),
		Address:   address,
		Operation: operation,
	}
	if len(kwargs) > 0 {
		req.Params = make(map[string]json.RawMessage, len(kwargs))
	}
	for _, kv := range kwargs {
		name := string(kv[0].(starlark.String))
		goVal, err := fromStarlarkValue(kv[1])
		if err != nil {
			return protocol.InvocationRequest{}, fmt.Errorf("%s: parameter %s: %w", b.Name(), name, err)
		}
		raw, err := json.Marshal(goVal)
		if err != nil {
			return protocol.InvocationRequest{}, fmt.Errorf("%s: parameter %s: %w", b.Name(), name, err)
		}
		req.Params[name] = raw
	}
	return req, nil
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for _, k := range sortedKeys(val) {
			starlarkVal, err := toStarlarkValue(val[k])
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a JSON-ready Go value.
// Integers beyond int64 become json.Number.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		if i, ok := val.Int64(); ok {
			return i, nil
		}
		return json.Number(val.String()), nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		return fromSequence(val)
	case starlark.Tuple:
		return fromSequence(val)
	case *starlark.Dict:
		dict := make(map[string]interface{}, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				return nil, err
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}

func fromSequence(seq starlark.Indexable) ([]interface{}, error) {
	list := make([]interface{}, seq.Len())
	for i := 0; i < seq.Len(); i++ {
		item, err := fromStarlarkValue(seq.Index(i))
		if err != nil {
			return nil, err
		}
		list[i] = item
	}
	return list, nil
}

package sandbox

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Shopify/go-lua"
	"github.com/go-playground/validator/v10"

	"cohortaudit/internal/logging"
	"cohortaudit/internal/services"
)

//go:embed prelude.lua
var prelude string

const (
	hookInterval   = 1000
	maxStdoutBytes = 64 << 10
	chunkName      = "script"
)

// ErrMissingResult is reported when a script finishes without setting result.
var ErrMissingResult = errors.New("your Lua code must assign the final output to a global named `result`")

// removedGlobals are base functions that reach the filesystem, compile
// arbitrary chunks, or control the collector.
var removedGlobals = []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require", "module"}

// Request is one evaluation.
type Request struct {
	Code         string           `json:"code" validate:"required"`
	Appointments []map[string]any `json:"appointments"`
	Clients      []map[string]any `json:"clients"`
	Clinicians   []map[string]any `json:"clinicians"`
	Constraints  map[string]any   `json:"constraints"`
}

// Response reports the script outcome. Script failures are reported here
// rather than as Go errors.
type Response struct {
	OK     bool   `json:"ok"`
	Value  any    `json:"value,omitempty"`
	Stdout string `json:"stdout"`
	Error  string `json:"error,omitempty"`
}

// Runner evaluates requests. The zero value is usable.
type Runner struct {
	Logger *slog.Logger
}

var requestValidate = validator.New(validator.WithRequiredStructEnabled())

// Run evaluates req.Code in a fresh interpreter.
func (r Runner) Run(ctx context.Context, req Request) (Response, error) {
	logger := r.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithContext(services.WithStage(ctx, "sandbox"), logger)
	if err := requestValidate.Struct(req); err != nil {
		return Response{}, services.Wrap(services.ErrInvalidParameter, "sandbox", "code", "must not be empty", nil)
	}

	started := time.Now()
	l := lua.NewState()
	stdout := &capped{limit: maxStdoutBytes}
	if err := prepare(l, stdout); err != nil {
		return Response{}, services.Wrap(nil, "sandbox", "prepare", "", err)
	}
	setGlobal(l, "appointments", rowsValue(req.Appointments))
	setGlobal(l, "clients", rowsValue(req.Clients))
	setGlobal(l, "clinicians", rowsValue(req.Clinicians))
	setGlobal(l, "CONSTRAINTS", mapValue(req.Constraints))
	lua.SetDebugHook(l, func(state *lua.State, _ lua.Debug) {
		if err := ctx.Err(); err != nil {
			lua.Errorf(state, "script cancelled: %s", err.Error())
		}
	}, lua.MaskCount, hookInterval)

	var resp Response
	if err := execute(l, req.Code); err != nil {
		resp.Error = err.Error()
		resp.Stdout = stdout.String()
		logger.Info("sandbox script failed",
			logging.String("reason", resp.Error),
			logging.Duration("duration", time.Since(started)),
		)
		return resp, nil
	}
	resp.Stdout = stdout.String()

	l.Global("result")
	defer l.Pop(1)
	if l.IsNil(-1) {
		resp.Error = ErrMissingResult.Error()
		return resp, nil
	}
	value, err := luaToGo(l, -1, 0)
	if err != nil {
		resp.Error = err.Error()
		return resp, nil
	}
	resp.OK = true
	resp.Value = value
	logger.Debug("sandbox script evaluated",
		logging.Int("stdout_bytes", len(resp.Stdout)),
		logging.Duration("duration", time.Since(started)),
	)
	return resp, nil
}

func prepare(l *lua.State, stdout *capped) error {
	lua.Require(l, "_G", lua.BaseOpen, true)
	lua.Require(l, "string", lua.StringOpen, true)
	lua.Require(l, "table", lua.TableOpen, true)
	lua.Require(l, "math", lua.MathOpen, true)
	l.Pop(4)
	for _, name := range removedGlobals {
		l.PushNil()
		l.SetGlobal(name)
	}
	l.Register("print", func(state *lua.State) int {
		n := state.Top()
		parts := make([]string, 0, n)
		state.Global("tostring")
		for i := 1; i <= n; i++ {
			state.PushValue(-1)
			state.PushValue(i)
			state.Call(1, 1)
			s, ok := state.ToString(-1)
			if !ok {
				lua.Errorf(state, "'tostring' must return a string to 'print'")
			}
			parts = append(parts, s)
			state.Pop(1)
		}
		state.Pop(1)
		stdout.WriteString(strings.Join(parts, "\t") + "\n")
		return 0
	})
	return execute(l, prelude)
}

func execute(l *lua.State, code string) error {
	if err := lua.LoadBuffer(l, code, chunkName, "t"); err != nil {
		return err
	}
	return l.ProtectedCall(0, 0, 0)
}

func setGlobal(l *lua.State, name string, value any) {
	pushValue(l, value, 0)
	l.SetGlobal(name)
}

func rowsValue(rows []map[string]any) any {
	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = mapValue(row)
	}
	return out
}

func mapValue(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// capped collects printed output up to limit bytes.
type capped struct {
	limit     int
	buf       strings.Builder
	truncated bool
}

func (c *capped) WriteString(s string) {
	if c.truncated {
		return
	}
	if room := c.limit - c.buf.Len(); len(s) > room {
		c.buf.WriteString(s[:room])
		c.truncated = true
		return
	}
	c.buf.WriteString(s)
}

func (c *capped) String() string {
	if c.truncated {
		return c.buf.String() + fmt.Sprintf("\n[output truncated at %d bytes]\n", c.limit)
	}
	return c.buf.String()
}

// internal/browser/jsexec/runtime.go
package jsexec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/scalpel-domcore/internal/browser/dom"
	"github.com/xkilldash9x/scalpel-domcore/internal/browser/jsbind"
)

// DefaultTimeout is the fallback execution timeout if the context has no deadline.
const DefaultTimeout = 30 * time.Second

var (
	// ErrClosed is returned by ExecuteScript after Close.
	ErrClosed = errors.New("jsexec: runtime closed")
	// ErrPromisePending is returned when a script's promise has not settled by the
	// time the job queue drains. There is no event loop to wait on.
	ErrPromisePending = errors.New("jsexec: promise did not settle")
)

// Options configure a Runtime.
type Options struct {
	// Timeout applies to executions whose context carries no deadline.
	Timeout time.Duration
	Realm   jsbind.Options
}

// Runtime is one script realm bound to one document: a goja VM, the element
// bindings, a document global and a console.
type Runtime struct {
	vm      *goja.Runtime
	realm   *jsbind.Realm
	logger  *zap.Logger
	timeout time.Duration

	execMutex sync.Mutex // serializes script execution; one logical script thread per realm
	closed    bool
}

// NewRuntime creates a runtime for doc. querier answers width reads and may be nil.
func NewRuntime(logger *zap.Logger, registry *jsbind.Registry, doc *dom.Document, querier jsbind.LayoutQuerier, opts Options) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("jsexec")
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	vm := goja.New()
	realm, err := jsbind.NewRealm(vm, registry, doc, querier, log, opts.Realm)
	if err != nil {
		return nil, fmt.Errorf("failed to create realm: %w", err)
	}

	r := &Runtime{
		vm:      vm,
		realm:   realm,
		logger:  log,
		timeout: opts.Timeout,
	}

	document, err := realm.NewDocumentObject()
	if err != nil {
		return nil, fmt.Errorf("failed to build document object: %w", err)
	}
	if err := vm.Set("document", document); err != nil {
		return nil, fmt.Errorf("failed to set 'document' global: %w", err)
	}
	if err := r.initConsole(); err != nil {
		return nil, err
	}
	return r, nil
}

// Realm returns the bindings realm of this runtime.
func (r *Runtime) Realm() *jsbind.Realm {
	return r.realm
}

// ExecuteScript runs a JavaScript snippet within the persistent VM environment.
// It handles context based cancellation, timeouts, and settled Promises.
// Args can be passed if the script is structured as a function wrapper.
func (r *Runtime) ExecuteScript(ctx context.Context, script string, args []interface{}) (interface{}, error) {
	// Only one script runs at a time; accessor bodies rely on this.
	r.execMutex.Lock()
	defer r.execMutex.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	stop := r.interruptOnDone(ctx)
	defer stop()
	defer r.realm.BindContext(ctx)()

	var result goja.Value
	var err error

	if r.isFunctionWrapper(script) {
		result, err = r.executeFunctionWrapper(script, args)
	} else {
		if len(args) > 0 {
			r.logger.Debug("Arguments provided to ExecuteScript in snippet mode are ignored.")
		}
		result, err = r.vm.RunString(script)
	}

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			// Report canceled vs. deadline exceeded from the context itself.
			return nil, fmt.Errorf("javascript execution interrupted by context: %w", ctx.Err())
		}
		var jsErr *goja.Exception
		if errors.As(err, &jsErr) {
			return nil, fmt.Errorf("javascript exception: %s", jsErr.String())
		}
		return nil, fmt.Errorf("javascript error: %w", err)
	}

	if result == nil {
		return nil, nil
	}
	if promise, ok := result.Export().(*goja.Promise); ok {
		return settledResult(promise)
	}
	return result.Export(), nil
}

// interruptOnDone interrupts the VM when ctx is done. The returned function
// stops the watcher and clears any interrupt it raised, so the next run starts
// clean.
func (r *Runtime) interruptOnDone(ctx context.Context) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() {
		close(done)
		wg.Wait()
		r.vm.ClearInterrupt()
	}
}

// isFunctionWrapper uses heuristics to detect common function wrappers.
func (r *Runtime) isFunctionWrapper(script string) bool {
	s := strings.TrimSpace(script)
	if len(s) < 5 {
		return false
	}

	return strings.HasPrefix(s, "(function") || strings.HasPrefix(s, "(async function") ||
		strings.HasPrefix(s, "function") || strings.HasPrefix(s, "async function") ||
		strings.HasPrefix(s, "(()=>") || strings.HasPrefix(s, "(async (")
}

// executeFunctionWrapper evaluates the script and calls the result with args.
func (r *Runtime) executeFunctionWrapper(script string, args []interface{}) (goja.Value, error) {
	// A bare function declaration is a statement; parenthesize it so it evaluates
	// to the function.
	src := strings.TrimSpace(script)
	if !strings.HasPrefix(src, "(") {
		src = "(" + src + ")"
	}
	prog, err := goja.Compile("", src, false)
	if err != nil {
		return nil, fmt.Errorf("failed to compile function wrapper script: %w", err)
	}

	val, err := r.vm.RunProgram(prog)
	if err != nil {
		return nil, err
	}

	fn, ok := goja.AssertFunction(val)
	if !ok {
		return nil, fmt.Errorf("script did not evaluate to a callable function wrapper")
	}

	gojaArgs := make([]goja.Value, len(args))
	for i, arg := range args {
		gojaArgs[i] = r.vm.ToValue(arg)
	}

	return fn(r.vm.GlobalObject(), gojaArgs...)
}

// settledResult unwraps a promise that settled while the job queue drained.
func settledResult(promise *goja.Promise) (interface{}, error) {
	switch promise.State() {
	case goja.PromiseStateFulfilled:
		return promise.Result().Export(), nil
	case goja.PromiseStateRejected:
		return nil, fmt.Errorf("javascript promise rejected: %s", promise.Result().String())
	default:
		return nil, ErrPromisePending
	}
}

// initConsole implements a basic console object backed by the runtime logger.
func (r *Runtime) initConsole() error {
	console := r.vm.NewObject()
	logFunc := func(level zapcore.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = r.stringify(arg)
			}
			r.logger.Log(level, "[JS Console]", zap.String("message", strings.Join(args, " ")))
			return goja.Undefined()
		}
	}

	for name, level := range map[string]zapcore.Level{
		"log":   zap.InfoLevel,
		"info":  zap.InfoLevel,
		"warn":  zap.WarnLevel,
		"error": zap.ErrorLevel,
		"debug": zap.DebugLevel,
	} {
		if err := console.Set(name, logFunc(level)); err != nil {
			return fmt.Errorf("failed to define console.%s: %w", name, err)
		}
	}
	if err := r.vm.Set("console", console); err != nil {
		return fmt.Errorf("failed to set 'console' global: %w", err)
	}
	return nil
}

// stringify renders plain objects and arrays as JSON and everything else with
// ToString. Bound elements render as their tag.
func (r *Runtime) stringify(v goja.Value) string {
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.String()
	}
	if _, err := r.realm.Unwrap(obj); err == nil {
		return fmt.Sprintf("<%s>", strings.ToLower(obj.Get("tagName").String()))
	}
	if _, isFn := goja.AssertFunction(obj); !isFn {
		if b, err := obj.MarshalJSON(); err == nil {
			return string(b)
		}
	}
	return v.String()
}

// Close tears the realm down. Objects already handed to script are still
// reclaimed by the collector.
func (r *Runtime) Close() error {
	r.execMutex.Lock()
	defer r.execMutex.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	return r.realm.Close()
}

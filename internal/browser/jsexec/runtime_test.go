package jsexec_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/scalpel-domcore/internal/browser/dom"
	"github.com/xkilldash9x/scalpel-domcore/internal/browser/jsbind"
	"github.com/xkilldash9x/scalpel-domcore/internal/browser/jsexec"
	"github.com/xkilldash9x/scalpel-domcore/internal/browser/layout"
)

const pageHTML = `<html><head><title>T</title></head><body>` +
	`<div id="intro">Hello</div><img id="logo" width="120" height="40">` +
	`</body></html>`

// newTestRuntime is a helper to set up a runtime over pageHTML without layout.
func newTestRuntime(t *testing.T) *jsexec.Runtime {
	t.Helper()
	return newRuntimeWith(t, zaptest.NewLogger(t), nil, jsexec.Options{})
}

func newRuntimeWith(t *testing.T, logger *zap.Logger, querier jsbind.LayoutQuerier, opts jsexec.Options) *jsexec.Runtime {
	t.Helper()
	doc, err := dom.ParseString(pageHTML)
	require.NoError(t, err)
	reg, err := jsbind.DefaultRegistry(nil)
	require.NoError(t, err)

	rt, err := jsexec.NewRuntime(logger, reg, doc, querier, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestExecuteScript_Basic(t *testing.T) {
	runtime := newTestRuntime(t)
	ctx := context.Background()

	script := `(5 + 5) * 2`
	result, err := runtime.ExecuteScript(ctx, script, nil)

	require.NoError(t, err)
	assert.Equal(t, int64(20), result)
}

func TestExecuteScript_WithArgs(t *testing.T) {
	runtime := newTestRuntime(t)
	ctx := context.Background()

	script := `(function(prefix, message) { return prefix + message; })`
	args := []interface{}{"Log: ", "Hello World"}

	result, err := runtime.ExecuteScript(ctx, script, args)
	require.NoError(t, err)
	assert.Equal(t, "Log: Hello World", result)

	// Bare declarations are accepted too.
	result, err = runtime.ExecuteScript(ctx, `function(id) { return document.getElementById(id).tagName; }`, []interface{}{"intro"})
	require.NoError(t, err)
	assert.Equal(t, "DIV", result)
}

func TestExecuteScript_ReturnObject(t *testing.T) {
	runtime := newTestRuntime(t)
	ctx := context.Background()
	script := `({status: "success", code: 200})`

	result, err := runtime.ExecuteScript(ctx, script, nil)
	require.NoError(t, err)

	resMap, ok := result.(map[string]interface{})
	require.True(t, ok, "Result should be a map")
	assert.Equal(t, "success", resMap["status"])
	assert.Equal(t, int64(200), resMap["code"])
}

func TestExecuteScript_Exception(t *testing.T) {
	runtime := newTestRuntime(t)
	ctx := context.Background()
	script := `throw new Error("Intentional Error");`

	_, err := runtime.ExecuteScript(ctx, script, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "javascript exception:")
	assert.Contains(t, err.Error(), "Intentional Error")
}

func TestExecuteScript_Timeout(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	runtime := newTestRuntime(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	script := `while(true) {}`

	startTime := time.Now()
	_, err := runtime.ExecuteScript(ctx, script, nil)
	duration := time.Since(startTime)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "javascript execution interrupted by context")
	assert.Less(t, duration, time.Second)

	// The interrupt must not leak into the next execution.
	result, err := runtime.ExecuteScript(context.Background(), `1 + 1`, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result)
}

func TestExecuteScript_DefaultTimeout(t *testing.T) {
	runtime := newRuntimeWith(t, zap.NewNop(), nil, jsexec.Options{Timeout: 30 * time.Millisecond})

	_, err := runtime.ExecuteScript(context.Background(), `while(true) {}`, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecuteScript_Cancellation(t *testing.T) {
	runtime := newTestRuntime(t)
	ctx, cancel := context.WithCancel(context.Background())

	script := `while(true) {}`

	errChan := make(chan error)
	go func() {
		_, err := runtime.ExecuteScript(ctx, script, nil)
		errChan <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Contains(t, err.Error(), "javascript execution interrupted by context")
	case <-time.After(1 * time.Second):
		t.Fatal("Execution did not stop after cancellation")
	}
}

func TestExecuteScript_Promises(t *testing.T) {
	runtime := newTestRuntime(t)
	ctx := context.Background()

	result, err := runtime.ExecuteScript(ctx, `Promise.resolve(20).then(v => v + 1)`, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(21), result)

	result, err = runtime.ExecuteScript(ctx, `(async function(id) { return document.getElementById(id).tagName; })`, []interface{}{"logo"})
	require.NoError(t, err)
	assert.Equal(t, "IMG", result)

	_, err = runtime.ExecuteScript(ctx, `Promise.reject(new Error('async failure'))`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "promise rejected")
	assert.Contains(t, err.Error(), "async failure")

	_, err = runtime.ExecuteScript(ctx, `new Promise(() => {})`, nil)
	assert.ErrorIs(t, err, jsexec.ErrPromisePending)
}

func TestExecuteScript_Console(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	runtime := newRuntimeWith(t, zap.New(core), nil, jsexec.Options{})

	_, err := runtime.ExecuteScript(context.Background(),
		`console.warn("width", {a: 1}, document.getElementById("logo"))`, nil)
	require.NoError(t, err)

	entries := logs.FilterMessage("[JS Console]").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, `width {"a":1} <img>`, entries[0].ContextMap()["message"])
}

func TestExecuteScript_Closed(t *testing.T) {
	runtime := newTestRuntime(t)
	require.NoError(t, runtime.Close())

	_, err := runtime.ExecuteScript(context.Background(), `1`, nil)
	assert.ErrorIs(t, err, jsexec.ErrClosed)
	assert.ErrorIs(t, runtime.Close(), jsexec.ErrClosed)
}

// Width reads round-trip through a running layout task; writes reflow.
func TestExecuteScript_WidthThroughLayoutTask(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	doc, err := dom.ParseString(pageHTML)
	require.NoError(t, err)
	reg, err := jsbind.DefaultRegistry(nil)
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	task := layout.NewTask(doc, layout.NewEngine(800, 600), logger, 4)
	ctx, cancel := context.WithCancel(context.Background())
	taskErr := make(chan error, 1)
	go func() { taskErr <- task.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-taskErr)
	}()

	rt, err := jsexec.NewRuntime(logger, reg, doc, task, jsexec.Options{})
	require.NoError(t, err)
	defer rt.Close()

	result, err := rt.ExecuteScript(context.Background(), `
		const logo = document.getElementById("logo");
		const before = logo.width;
		logo.width = 250;
		const hidden = document.createElement("img");
		[before, logo.width, logo.getAttribute("width"), hidden.width]
	`, nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(120), int64(250), "250", int64(0)}, result)
}

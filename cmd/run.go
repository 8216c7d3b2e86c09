// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/scalpel-domcore/internal/browser/dom"
	"github.com/xkilldash9x/scalpel-domcore/internal/browser/jsbind"
	"github.com/xkilldash9x/scalpel-domcore/internal/browser/jsexec"
	"github.com/xkilldash9x/scalpel-domcore/internal/browser/layout"
	"github.com/xkilldash9x/scalpel-domcore/internal/config"
	"github.com/xkilldash9x/scalpel-domcore/internal/observability"
)

const emptyDocument = `<html><head></head><body></body></html>`

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// runReport is the --json output of the run command.
type runReport struct {
	Result interface{}  `json:"result"`
	Stats  jsbind.Stats `json:"stats"`
}

type runOptions struct {
	htmlPath   string
	scriptPath string
	eval       string
	asJSON     bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run [args...]",
		Short: "Execute a script against an HTML document",
		Long: `Parses the HTML document, starts its layout task and runs the script in a fresh realm.
When the script is a function expression, positional arguments are passed to it as strings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.scriptPath == "") == (opts.eval == "") {
				return fmt.Errorf("exactly one of --script or --eval is required")
			}
			return runScript(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), configFromContext(cmd.Context()), opts, args)
		},
	}

	runCmd.Flags().StringVar(&opts.htmlPath, "html", "", "HTML document to load, '-' for stdin (default: an empty document)")
	runCmd.Flags().StringVarP(&opts.scriptPath, "script", "s", "", "script file to execute, '-' for stdin")
	runCmd.Flags().StringVarP(&opts.eval, "eval", "e", "", "inline script to execute")
	runCmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the result and binding stats as JSON")
	runCmd.Flags().Duration("timeout", 0, "script timeout (overrides script.timeout)")
	runCmd.Flags().Duration("query-timeout", 0, "layout query timeout (overrides bindings.layout_query_timeout)")
	runCmd.Flags().String("width-overflow", "", "out-of-range width writes: saturate or reject")
	return runCmd
}

// runScript wires a document, its layout task and a script runtime together
// and runs one script. The layout task stops once the script returns.
func runScript(ctx context.Context, stdin io.Reader, out io.Writer, cfg config.Interface, opts runOptions, args []string) error {
	logger := observability.GetLogger().Named("run")

	if opts.htmlPath == "-" && opts.scriptPath == "-" {
		return fmt.Errorf("--html and --script cannot both read stdin")
	}
	doc, err := loadDocument(stdin, opts.htmlPath)
	if err != nil {
		return err
	}
	script := opts.eval
	if script == "" {
		script, err = readSource(stdin, opts.scriptPath)
		if err != nil {
			return fmt.Errorf("failed to read script: %w", err)
		}
	}

	registry, err := jsbind.DefaultRegistry(nil)
	if err != nil {
		return fmt.Errorf("failed to build prototype registry: %w", err)
	}
	realmOpts, err := cfg.Bindings().RealmOptions()
	if err != nil {
		return err
	}

	layoutCfg := cfg.Layout()
	engine := layout.NewEngine(layoutCfg.ViewportWidth, layoutCfg.ViewportHeight)
	engine.DefaultImageWidth = layoutCfg.DefaultImageWidth
	engine.DefaultImageHeight = layoutCfg.DefaultImageHeight
	task := layout.NewTask(doc, engine, logger, layoutCfg.QueueSize)

	rt, err := jsexec.NewRuntime(logger, registry, doc, task, jsexec.Options{
		Timeout: cfg.Script().Timeout,
		Realm:   realmOpts,
	})
	if err != nil {
		return fmt.Errorf("failed to create script runtime: %w", err)
	}
	defer rt.Close()

	scriptArgs := make([]interface{}, len(args))
	for i, a := range args {
		scriptArgs[i] = a
	}

	g, gctx := errgroup.WithContext(ctx)
	taskCtx, stopTask := context.WithCancel(gctx)
	defer stopTask()

	g.Go(func() error {
		return task.Run(taskCtx)
	})

	var result interface{}
	g.Go(func() error {
		defer stopTask()
		var execErr error
		result, execErr = rt.ExecuteScript(gctx, script, scriptArgs)
		return execErr
	})

	if err := g.Wait(); err != nil {
		logger.Error("Script execution failed", zap.Error(err))
		return err
	}

	stats := rt.Realm().Stats()
	logger.Debug("Script finished",
		zap.Int64("bound_objects", stats.Created),
		zap.Int64("finalized_objects", stats.Finalized),
	)
	return writeResult(out, result, stats, opts.asJSON)
}

func writeResult(out io.Writer, result interface{}, stats jsbind.Stats, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(runReport{Result: result, Stats: stats}); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return nil
	}
	switch v := result.(type) {
	case nil:
		return nil
	case string:
		_, err := fmt.Fprintln(out, v)
		return err
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	default:
		_, err := fmt.Fprintln(out, v)
		return err
	}
}

func loadDocument(stdin io.Reader, path string) (*dom.Document, error) {
	if path == "" {
		return dom.ParseString(emptyDocument)
	}
	markup, err := readSource(stdin, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	doc, err := dom.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return doc, nil
}

func readSource(stdin io.Reader, path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

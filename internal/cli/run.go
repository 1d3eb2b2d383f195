package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/revere-dev/webrequest/http"
	"github.com/revere-dev/webrequest/internal/config"
	"github.com/revere-dev/webrequest/internal/output"
	"github.com/revere-dev/webrequest/internal/stats"
	"github.com/revere-dev/webrequest/pkg/jsonschema"
)

// runOptions are the flags of the run command.
type runOptions struct {
	environment string
	requests    []string
	vars        []string
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run the requests of a collection file concurrently",
		Long: `Run loads a YAML or JSON collection, executes the selected requests
concurrently and prints every result followed by a summary. All requests
run when --request is not given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollection(cmd, global, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.environment, "env", "e", "", "Environment to use")
	flags.StringArrayVarP(&opts.requests, "request", "r", nil, "Request to run (can be used multiple times)")
	flags.StringArrayVar(&opts.vars, "var", nil, "Variable override: name=value (can be used multiple times)")

	return cmd
}

// pending is a scheduled execution.
type pending struct {
	result *output.Result
	conn   *http.Connection
	future *http.Future
	checks checks
	start  time.Time
}

func runCollection(cmd *cobra.Command, global *globalOptions, opts *runOptions, path string) error {
	formatter, logger, err := global.setup(cmd)
	if err != nil {
		return err
	}

	coll, err := config.LoadCollection(path)
	if err != nil {
		return err
	}
	if errs := config.ValidateCollection(coll); len(errs) > 0 {
		return fmt.Errorf("invalid collection %s: %d errors, first: %s", path, len(errs), errs[0].Error())
	}
	if opts.environment != "" {
		if err := config.ValidateEnvironment(coll, opts.environment); err != nil {
			return err
		}
	}

	names := opts.requests
	if len(names) == 0 {
		names = coll.RequestNames()
	}
	for _, name := range names {
		if err := config.ValidateRequest(coll, name); err != nil {
			return err
		}
	}

	overrides, err := parseAssignments("var", opts.vars)
	if err != nil {
		return err
	}

	client := http.NewClient(http.WithLogger(logger))
	defer func() {
		if err := client.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("client shutdown")
		}
	}()

	recorder := stats.NewRecorder()
	results := make([]*output.Result, len(names))
	var scheduled []*pending
	for i, name := range names {
		p, result := schedule(client, coll, name, opts.environment, overrides)
		results[i] = result
		if p == nil {
			recorder.Record(0, 0, false)
			continue
		}
		scheduled = append(scheduled, p)
	}

	var wg conc.WaitGroup
	for _, p := range scheduled {
		wg.Go(func() {
			resp, err := p.future.Wait()
			elapsed := time.Since(p.start)
			finish(p.result, p.conn, resp, err, elapsed, p.checks)
			recorder.Record(elapsed, p.result.StatusCode(), p.result.Passed())
			logger.Debug().Str("id", p.result.ID).Str("request", p.result.Name).Dur("elapsed", elapsed).Bool("passed", p.result.Passed()).Msg("request finished")
		})
	}
	wg.Wait()

	fmt.Fprint(cmd.OutOrStdout(), formatter.FormatRun(results, recorder.Summary()))
	for _, result := range results {
		if !result.Passed() {
			return errFailed
		}
	}
	return nil
}

// schedule builds the named request and submits it. A request that cannot
// be built yields a failed result and no pending execution.
func schedule(client *http.Client, coll *config.Collection, name, env string, overrides map[string]string) (*pending, *output.Result) {
	failed := func(err error) (*pending, *output.Result) {
		req := coll.Requests[name]
		return nil, &output.Result{ID: uuid.NewString(), Name: name, Method: req.Method, URL: req.URL, Err: err}
	}

	b, err := coll.Builder(name, env, overrides)
	if err != nil {
		return failed(err)
	}

	c := checks{extract: coll.Requests[name].Extract}
	if schemaPath := coll.SchemaPath(name); schemaPath != "" {
		if c.schema, err = jsonschema.CompileFile(schemaPath); err != nil {
			return failed(err)
		}
	}

	conn, err := client.Build(b)
	if err != nil {
		return failed(err)
	}

	p := &pending{
		result: newResult(name, conn.Request()),
		conn:   conn,
		checks: c,
		start:  time.Now(),
	}
	p.future = client.ExecuteAsync(conn)
	p.result.ID = p.future.ID()
	return p, p.result
}

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/revere-dev/webrequest/http"
	"github.com/revere-dev/webrequest/pkg/jsonschema"
)

var verbs = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

// requestOptions are the flags of the single request commands.
type requestOptions struct {
	headers        []string
	data           string
	connectTimeout int
	readTimeout    int
	extract        []string
	schema         string
}

func newVerbCmd(method string, global *globalOptions) *cobra.Command {
	opts := &requestOptions{}
	name := strings.ToLower(method)

	cmd := &cobra.Command{
		Use:   name + " URL",
		Short: fmt.Sprintf("Make a %s request to the specified URL", method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, global, opts, method, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, "HTTP headers to include (can be used multiple times)")
	flags.StringVarP(&opts.data, "data", "d", "", "Request body; @file reads it from a file")
	flags.IntVar(&opts.connectTimeout, "connect-timeout", http.DefaultConnectTimeoutMillis, "Connect timeout in milliseconds (0 disables)")
	flags.IntVar(&opts.readTimeout, "read-timeout", http.DefaultReadTimeoutMillis, "Read timeout in milliseconds (0 disables)")
	flags.StringArrayVar(&opts.extract, "extract", nil, "Extract a value from the response body: name=$.path (can be used multiple times)")
	flags.StringVar(&opts.schema, "schema", "", "JSON Schema file the response body must satisfy")

	return cmd
}

func runRequest(cmd *cobra.Command, global *globalOptions, opts *requestOptions, method, rawURL string) error {
	formatter, logger, err := global.setup(cmd)
	if err != nil {
		return err
	}

	c := checks{}
	if c.extract, err = parseAssignments("extract", opts.extract); err != nil {
		return err
	}
	if opts.schema != "" {
		if c.schema, err = jsonschema.CompileFile(opts.schema); err != nil {
			return err
		}
	}

	b := http.NewRequestBuilder().
		URL(rawURL).
		Method(method).
		ConnectTimeout(opts.connectTimeout).
		ReadTimeout(opts.readTimeout)
	for _, raw := range opts.headers {
		key, value, err := parseHeader(raw)
		if err != nil {
			return err
		}
		b.Header(key, value)
	}
	if opts.data != "" {
		body, err := readData(opts.data)
		if err != nil {
			return err
		}
		b.Body(body)
	}

	client := http.NewClient(http.WithLogger(logger))
	defer func() {
		if err := client.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("client shutdown")
		}
	}()

	conn, err := client.Build(b)
	if err != nil {
		return err
	}

	result := newResult("", conn.Request())
	logger.Debug().Str("id", result.ID).Str("method", result.Method).Str("url", result.URL).Msg("sending request")

	start := time.Now()
	resp, err := client.Execute(conn)
	finish(result, conn, resp, err, time.Since(start), c)

	fmt.Fprint(cmd.OutOrStdout(), formatter.FormatResult(result))
	if !result.Passed() {
		return errFailed
	}
	return nil
}

// readData returns the body text, reading it from a file for "@path".
func readData(data string) (string, error) {
	path, ok := strings.CutPrefix(data, "@")
	if !ok {
		return data, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("error reading body file: %w", err)
	}
	return string(content), nil
}

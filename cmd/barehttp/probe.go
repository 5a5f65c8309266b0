package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/barehttp/barehttp/internal/errors"
	"github.com/barehttp/barehttp/pkg/protocol"
)

type probeOptions struct {
	method  string
	target  string
	headers []string
	body    string
	timeout time.Duration
	raw     bool
}

func probeCmd() *cobra.Command {
	var opts probeOptions

	cmd := &cobra.Command{
		Use:   "probe <address> [target]",
		Short: "Send one request and print the response",
		Long: `Open a TCP connection to address, write a single HTTP/1.1 request
and print the response the server sends before closing.

Examples:
  barehttp probe 127.0.0.1:8080
  barehttp probe 127.0.0.1:8080 /object/42/edit
  barehttp probe 127.0.0.1:8080 /ping -X POST -d 'hi there'
  barehttp probe 127.0.0.1:8080 /ping_raw -H 'X-Trace: 1' --raw`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return errors.New("E162").WithDetailf("probe takes an address and an optional target, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.target = "/"
			if len(args) == 2 {
				opts.target = args[1]
			}
			res, err := probe(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), res, opts.raw)
		},
	}

	cmd.Flags().StringVarP(&opts.method, "method", "X", "GET", "Request method")
	cmd.Flags().StringArrayVarP(&opts.headers, "header", "H", nil, `Request header as "Name: value" (repeatable)`)
	cmd.Flags().StringVarP(&opts.body, "data", "d", "", "Request body")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "Dial and response timeout")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Print the response in wire format")

	return cmd
}

// probe sends one request to addr and reads the response.
func probe(ctx context.Context, addr string, opts probeOptions) (*protocol.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	headers := map[string]string{"Host": addr}
	for _, h := range opts.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, errors.New("E162").WithDetailf("header %q is not of the form \"Name: value\"", h)
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	var body []byte
	if opts.body != "" {
		body = []byte(opts.body)
	}
	method := opts.method
	if method == "" {
		method = "GET"
	}
	target := opts.target
	if target == "" {
		target = "/"
	}

	dialer := net.Dialer{Timeout: opts.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.New("E160").WithDetailf("Could not connect to %s.", addr).Wrap(err)
	}
	defer conn.Close()
	if opts.timeout > 0 {
		conn.SetDeadline(time.Now().Add(opts.timeout))
	}

	if err := protocol.WriteRequest(conn, strings.ToUpper(method), target, headers, body); err != nil {
		return nil, errors.New("E160").WithDetail("Writing the request failed.").Wrap(err)
	}
	res, err := protocol.ReadResponse(bufio.NewReader(conn))
	if err != nil {
		return nil, errors.New("E161").Wrap(err)
	}
	return res, nil
}

func printResponse(w io.Writer, res *protocol.Response, raw bool) error {
	if raw {
		_, err := res.WriteTo(w)
		return err
	}
	success(w, "%d %s", res.Status, res.Message)
	names := make([]string, 0, len(res.Headers))
	for name := range res.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		info(w, "%s: %s", name, res.Headers[name])
	}
	if len(res.Body) > 0 {
		fmt.Fprintln(w)
		w.Write(res.Body)
		fmt.Fprintln(w)
	}
	return nil
}

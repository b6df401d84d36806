// SPDX-License-Identifier: GPL-3.0-or-later

package adminsocket

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ceph/cephmetrics/logger"
	"github.com/ceph/cephmetrics/pkg/socket"

	"github.com/tidwall/gjson"
)

// describeRequest is sent once per connection before any other command.
var describeRequest = []byte(`{"prefix": "get_command_descriptions"}`)

const FormatJSON = "json"

// Caller is the part of Client the collectors depend on.
type Caller interface {
	Call(ctx context.Context, path, format string, tokens ...string) (gjson.Result, error)
}

type Config struct {
	ConnectTimeout time.Duration
	InitialTimeout time.Duration
	ChunkTimeout   time.Duration
	MaxChunk       int
}

func New(cfg Config) *Client {
	return &Client{
		Config: cfg,
		newConn: func(path string) socket.Client {
			return socket.New(socket.Config{
				Address:        path,
				ConnectTimeout: cfg.ConnectTimeout,
				InitialTimeout: cfg.InitialTimeout,
				ChunkTimeout:   cfg.ChunkTimeout,
				MaxChunk:       cfg.MaxChunk,
			})
		},
	}
}

// Client issues schema-validated commands against daemon admin sockets.
// Every Call uses its own connection, so a Client may be shared between goroutines.
type Client struct {
	*logger.Logger
	Config

	newConn func(path string) socket.Client
}

// Describe fetches and parses the command schema of the connected daemon.
func (c *Client) Describe(ctx context.Context, conn socket.Client) (*Schema, error) {
	bs, err := conn.Exchange(ctx, describeRequest)
	if err != nil {
		return nil, err
	}

	return ParseSchema(bs)
}

// Execute validates tokens against schema, sends the command and returns
// the decoded response. Nothing is written to conn if validation fails.
func (c *Client) Execute(ctx context.Context, conn socket.Client, schema *Schema, format string, tokens ...string) (gjson.Result, error) {
	cmd, err := schema.Match(tokens...)
	if err != nil {
		return gjson.Result{}, err
	}

	req, err := cmd.Marshal(format)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("marshal '%s': %v", cmd.Prefix, err)
	}

	bs, err := conn.Exchange(ctx, req)
	if err != nil {
		return gjson.Result{}, err
	}

	return decodeResponse(bs, format)
}

// Call runs connect, describe, execute and disconnect against the socket at path.
//
// Ceph daemons answer a single request per connection, so the schema and
// the command each use their own connection; both are closed on every path.
//
// A missing socket path is an expected condition (daemon stopped or not yet
// started): Call returns an empty result and socket.ErrConnectionUnavailable
// without dialing.
func (c *Client) Call(ctx context.Context, path, format string, tokens ...string) (gjson.Result, error) {
	if !socket.Exists(path) {
		return gjson.Result{}, fmt.Errorf("%w: '%s' does not exist", socket.ErrConnectionUnavailable, path)
	}

	command := strings.Join(tokens, " ")
	start := time.Now()
	defer func() {
		c.Debugf("admin socket call '%s' on '%s' took %.3fs", command, path, time.Since(start).Seconds())
	}()

	var schema *Schema
	err := c.withConn(ctx, path, func(conn socket.Client) (err error) {
		schema, err = c.Describe(ctx, conn)
		return err
	})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("get command descriptions: %w", err)
	}

	if _, err := schema.Match(tokens...); err != nil {
		return gjson.Result{}, err
	}

	var resp gjson.Result
	err = c.withConn(ctx, path, func(conn socket.Client) (err error) {
		resp, err = c.Execute(ctx, conn, schema, format, tokens...)
		return err
	})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("execute '%s': %w", command, err)
	}

	return resp, nil
}

func (c *Client) withConn(ctx context.Context, path string, fn func(conn socket.Client) error) error {
	conn := c.newConn(path)

	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = conn.Disconnect() }()

	return fn(conn)
}

func decodeResponse(bs []byte, format string) (gjson.Result, error) {
	if format != FormatJSON {
		return gjson.Result{Type: gjson.String, Str: string(bs), Raw: string(bs)}, nil
	}
	if !gjson.ValidBytes(bs) {
		return gjson.Result{}, fmt.Errorf("%w: response is not valid json", socket.ErrProtocol)
	}
	return gjson.ParseBytes(bs), nil
}

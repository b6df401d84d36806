// SPDX-License-Identifier: GPL-3.0-or-later

package socket

import (
	"errors"
	"time"
)

var (
	// ErrConnectionUnavailable means the socket path does not exist:
	// the daemon is not running or has not created its socket yet.
	ErrConnectionUnavailable = errors.New("socket connection unavailable")
	// ErrConnection means the peer exists but refused or failed the connection.
	ErrConnection = errors.New("socket connection failed")
	ErrTimeout    = errors.New("socket operation timed out")
	ErrProtocol   = errors.New("socket protocol error")
)

const (
	defaultConnectTimeout = time.Second
	defaultInitialTimeout = time.Second * 5
	defaultChunkTimeout   = time.Second
	defaultMaxChunk       = 4096
)

// Config holds the unix socket path and the time budgets of a single
// request/response exchange.
//
// InitialTimeout bounds the wait for the 4 byte length prefix,
// ChunkTimeout bounds the wait for each subsequent read of at most MaxChunk bytes.
type Config struct {
	Address        string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	InitialTimeout time.Duration
	ChunkTimeout   time.Duration
	MaxChunk       int
}

func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return defaultConnectTimeout
	}
	return c.ConnectTimeout
}

func (c Config) writeTimeout() time.Duration {
	if c.WriteTimeout <= 0 {
		return c.connectTimeout()
	}
	return c.WriteTimeout
}

func (c Config) initialTimeout() time.Duration {
	if c.InitialTimeout <= 0 {
		return defaultInitialTimeout
	}
	return c.InitialTimeout
}

func (c Config) chunkTimeout() time.Duration {
	if c.ChunkTimeout <= 0 {
		return defaultChunkTimeout
	}
	return c.ChunkTimeout
}

func (c Config) maxChunk() int {
	if c.MaxChunk <= 0 {
		return defaultMaxChunk
	}
	return c.MaxChunk
}

package ingestor

import (
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"github.com/ChristianF88/radixcl/keys"
	"github.com/ChristianF88/radixcl/pools"
	lj "github.com/elastic/go-lumber/lj"
	srv2 "github.com/elastic/go-lumber/server/v2"
)

var (
	errMissingKeys = errors.New("missing message or keys field")
	errKeyRange    = errors.New("key out of uint32 range")
)

// BatchStats counts what one ReadBatch drained.
type BatchStats struct {
	Batches int
	Events  int
	Invalid int
}

// --- TCP key ingestor using go-lumber v2 ---

type KeyIngestor struct {
	listener    net.Listener
	readTimeout time.Duration // for server
	events      chan *lj.Batch
	server      *srv2.Server
	pools       *pools.KeyPools
	// maxKeys stops a ReadBatch once reached; zero means no limit.
	maxKeys int
}

func NewKeyIngestor(addr string, readTimeout time.Duration, maxKeys int) (*KeyIngestor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &KeyIngestor{
		listener:    ln,
		readTimeout: readTimeout,
		events:      make(chan *lj.Batch, 1000),
		pools:       pools.Pools,
		maxKeys:     maxKeys,
	}, nil
}

// Addr is the address the ingestor listens on.
func (ing *KeyIngestor) Addr() net.Addr {
	return ing.listener.Addr()
}

// Accept starts the lumberjack v2 Server.
func (ing *KeyIngestor) Accept() error {
	srv, err := srv2.NewWithListener(
		ing.listener,
		srv2.Timeout(ing.readTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create lumberjack server: %w", err)
	}
	ing.server = srv

	// Pull batches off ReceiveChan and ack them.
	go func() {
		for batch := range ing.server.ReceiveChan() {
			ing.events <- batch
			batch.ACK()
		}
		close(ing.events)
	}()

	return nil
}

// parseEvent appends the keys of one event to out. The "message" field holds
// whitespace-separated keys; a "keys" array of numbers is accepted as well.
func parseEvent(evt map[string]interface{}, out []uint32) ([]uint32, error) {
	if list, ok := evt["keys"].([]interface{}); ok {
		start := len(out)
		for _, v := range list {
			k, err := keyValue(v)
			if err != nil {
				return out[:start], err
			}
			out = append(out, k)
		}
		return out, nil
	}

	msg, ok := evt["message"].(string)
	if !ok {
		return out, errMissingKeys
	}
	start := len(out)
	for _, field := range strings.Fields(msg) {
		k, err := keys.ParseKey(field)
		if err != nil {
			return out[:start], err
		}
		out = append(out, k)
	}
	return out, nil
}

// keyValue converts a decoded JSON value to a key.
func keyValue(v interface{}) (uint32, error) {
	switch n := v.(type) {
	case float64:
		if n < 0 || n > math.MaxUint32 || n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %v", errKeyRange, n)
		}
		return uint32(n), nil
	case int:
		if n < 0 || int64(n) > math.MaxUint32 {
			return 0, fmt.Errorf("%w: %d", errKeyRange, n)
		}
		return uint32(n), nil
	case int64:
		if n < 0 || n > math.MaxUint32 {
			return 0, fmt.Errorf("%w: %d", errKeyRange, n)
		}
		return uint32(n), nil
	case uint32:
		return n, nil
	case string:
		return keys.ParseKey(n)
	}
	return 0, fmt.Errorf("unsupported key type %T", v)
}

// ReadBatch drains queued batches without blocking. The returned slice comes
// from the key pool; hand it back with Release once sorted.
func (ing *KeyIngestor) ReadBatch() ([]uint32, BatchStats, error) {
	var stats BatchStats
	out := ing.getSlice()

	for ing.maxKeys <= 0 || len(out) < ing.maxKeys {
		select {
		case batch, ok := <-ing.events:
			if !ok {
				return out, stats, nil
			}
			stats.Batches++
			for _, evt := range batch.Events {
				stats.Events++
				m, ok := evt.(map[string]interface{})
				if !ok {
					stats.Invalid++
					continue
				}
				var err error
				if out, err = parseEvent(m, out); err != nil {
					stats.Invalid++
				}
			}
		default:
			// Channel is empty, return what we have
			return out, stats, nil
		}
	}
	return out, stats, nil
}

// Release returns a slice obtained from ReadBatch to the pool.
func (ing *KeyIngestor) Release(batch []uint32) {
	if ing.pools != nil {
		ing.pools.ReturnKeySlice(batch)
	}
}

func (ing *KeyIngestor) getSlice() []uint32 {
	if ing.pools == nil {
		return nil
	}
	return ing.pools.GetKeySlice()
}

func (ing *KeyIngestor) IsClosed() bool {
	if ing.server == nil {
		return true
	}
	select {
	case batch, ok := <-ing.events:
		if !ok {
			return true
		}
		// Put the batch back to avoid losing data
		ing.events <- batch
		return false
	default:
		return false
	}
}

// Close shuts down the server, which owns the listener once Accept ran.
func (ing *KeyIngestor) Close() error {
	if ing.server != nil {
		return ing.server.Close()
	}
	return ing.listener.Close()
}

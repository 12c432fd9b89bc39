package driver

import (
	"context"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/onyx-network/onyx/pkg/util"
)

// portTablePattern matches the per-interface keyspace notifications the
// NotificationBridge consumes. APP_DB keys use the colon separator.
const portTablePattern = "__keyspace@0__:PORT_TABLE:Ethernet*"

// readySentinelKey is written by the forwarding plane once all ports are
// initialized after a restart.
const readySentinelKey = "PORT_TABLE:PortInitDone"

// ApplDBClient wraps a Redis client for APP_DB access (DB 0), where the
// forwarding plane publishes per-interface runtime state.
type ApplDBClient struct {
	client *redis.Client
	ctx    context.Context
}

// NewApplDBClient creates a new APP_DB client.
func NewApplDBClient(addr string) *ApplDBClient {
	return &ApplDBClient{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   0, // APP_DB
		}),
		ctx: context.Background(),
	}
}

// Connect tests the connection.
func (c *ApplDBClient) Connect() error {
	return c.client.Ping(c.ctx).Err()
}

// Close closes the connection.
func (c *ApplDBClient) Close() error {
	return c.client.Close()
}

// PortEntry reads the PORT_TABLE hash of an interface. Returns (nil, nil)
// if the interface has no entry yet.
func (c *ApplDBClient) PortEntry(name string) (map[string]string, error) {
	vals, err := c.client.HGetAll(c.ctx, "PORT_TABLE:"+name).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return vals, nil
}

// OperStatus returns the raw oper_status field of an interface, "" if the
// forwarding plane has not reported it.
func (c *ApplDBClient) OperStatus(name string) (string, error) {
	v, err := c.client.HGet(c.ctx, "PORT_TABLE:"+name, "oper_status").Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

// PortNames lists the interfaces the forwarding plane has published
// entries for. The readiness sentinel is not an interface.
func (c *ApplDBClient) PortNames() ([]string, error) {
	var names []string
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(c.ctx, cursor, "PORT_TABLE:*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			name := strings.TrimPrefix(key, "PORT_TABLE:")
			if name == "PortInitDone" {
				continue
			}
			names = append(names, name)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(names)
	return names, nil
}

// PortInitDone reports whether the forwarding plane has finished port
// initialization since its last restart.
func (c *ApplDBClient) PortInitDone() (bool, error) {
	n, err := c.client.Exists(c.ctx, readySentinelKey).Result()
	return n > 0, err
}

// ClearPortInitDone removes the readiness sentinel. A restart must clear it
// first so the ready wait observes the new process, not a stale flag.
func (c *ApplDBClient) ClearPortInitDone() error {
	return c.client.Del(c.ctx, readySentinelKey).Err()
}

// Subscribe starts a keyspace-notification subscription for per-interface
// PORT_TABLE changes and returns a channel of interface names. The channel
// closes when ctx is done or the subscription drops.
func (c *ApplDBClient) Subscribe(ctx context.Context) (<-chan string, error) {
	psub := c.client.PSubscribe(ctx, portTablePattern)
	// Force the subscription onto the wire before the caller relies on it.
	if _, err := psub.Receive(ctx); err != nil {
		psub.Close()
		return nil, err
	}

	out := make(chan string, 64)
	go func() {
		defer close(out)
		defer psub.Close()
		ch := psub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Pattern == "" {
					continue
				}
				// Channel name: __keyspace@0__:PORT_TABLE:<ifname>
				idx := strings.LastIndex(msg.Channel, ":")
				if idx < 0 {
					continue
				}
				name := msg.Channel[idx+1:]
				select {
				case out <- name:
				default:
					util.Warnf("dropping port state signal for %s: subscriber backlog full", name)
				}
			}
		}
	}()
	return out, nil
}

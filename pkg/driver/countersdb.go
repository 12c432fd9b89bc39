package driver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/onyx-network/onyx/pkg/util"
)

// CountersDBClient wraps a Redis client for COUNTERS_DB access (DB 2).
// Hardware counters live in COUNTERS:<oid> hashes; the name map translates
// interface names to object ids.
type CountersDBClient struct {
	client *redis.Client
	ctx    context.Context
}

// NewCountersDBClient creates a new COUNTERS_DB client.
func NewCountersDBClient(addr string) *CountersDBClient {
	return &CountersDBClient{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   2, // COUNTERS_DB
		}),
		ctx: context.Background(),
	}
}

// Connect tests the connection.
func (c *CountersDBClient) Connect() error {
	return c.client.Ping(c.ctx).Err()
}

// Close closes the connection.
func (c *CountersDBClient) Close() error {
	return c.client.Close()
}

// PortNameMap returns the interface-name to counter-oid mapping.
func (c *CountersDBClient) PortNameMap() (map[string]string, error) {
	return c.client.HGetAll(c.ctx, "COUNTERS_PORT_NAME_MAP").Result()
}

// PortCounters reads the cumulative hardware counters of an interface.
// Non-numeric fields are skipped.
func (c *CountersDBClient) PortCounters(name string) (map[string]uint64, error) {
	oid, err := c.client.HGet(c.ctx, "COUNTERS_PORT_NAME_MAP", name).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: interface %s has no counter oid", util.ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}

	vals, err := c.client.HGetAll(c.ctx, "COUNTERS:"+oid).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]uint64, len(vals))
	for k, v := range vals {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}

package driver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"
)

// ConfigDBClient wraps a Redis client for CONFIG_DB access (DB 4).
// Table entries are hashes keyed "TABLE|key".
type ConfigDBClient struct {
	client *redis.Client
	ctx    context.Context
}

// NewConfigDBClient creates a new CONFIG_DB client.
func NewConfigDBClient(addr string) *ConfigDBClient {
	return &ConfigDBClient{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   4, // CONFIG_DB
		}),
		ctx: context.Background(),
	}
}

// Connect tests the connection.
func (c *ConfigDBClient) Connect() error {
	return c.client.Ping(c.ctx).Err()
}

// Close closes the connection.
func (c *ConfigDBClient) Close() error {
	return c.client.Close()
}

// SetEntry writes a table entry. If fields is empty, a "NULL":"NULL"
// sentinel is written so the Redis key is actually created (the state
// store's convention for field-less entries).
func (c *ConfigDBClient) SetEntry(table, key string, fields map[string]string) error {
	redisKey := fmt.Sprintf("%s|%s", table, key)
	if len(fields) == 0 {
		return c.client.HSet(c.ctx, redisKey, "NULL", "NULL").Err()
	}
	for k, v := range fields {
		if err := c.client.HSet(c.ctx, redisKey, k, v).Err(); err != nil {
			return err
		}
	}
	return nil
}

// GetEntry reads a table entry. Returns (nil, nil) if it does not exist.
func (c *ConfigDBClient) GetEntry(table, key string) (map[string]string, error) {
	redisKey := fmt.Sprintf("%s|%s", table, key)
	vals, err := c.client.HGetAll(c.ctx, redisKey).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return vals, nil
}

// DeleteEntry removes a table entry.
func (c *ConfigDBClient) DeleteEntry(table, key string) error {
	redisKey := fmt.Sprintf("%s|%s", table, key)
	return c.client.Del(c.ctx, redisKey).Err()
}

// TableKeys returns all Redis keys matching the given table prefix.
func (c *ConfigDBClient) TableKeys(table string) ([]string, error) {
	pattern := fmt.Sprintf("%s|*", table)
	return scanKeys(c.ctx, c.client, pattern, 100)
}

// SetPortField writes one field of a PORT entry.
func (c *ConfigDBClient) SetPortField(name, field, value string) error {
	return c.client.HSet(c.ctx, "PORT|"+name, field, value).Err()
}

// GetPortField reads one field of a PORT entry, "" if unset.
func (c *ConfigDBClient) GetPortField(name, field string) (string, error) {
	v, err := c.client.HGet(c.ctx, "PORT|"+name, field).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

// DeletePortField removes one field of a PORT entry.
func (c *ConfigDBClient) DeletePortField(name, field string) error {
	return c.client.HDel(c.ctx, "PORT|"+name, field).Err()
}

// VLANMembership is one VLAN_MEMBER binding of an interface.
type VLANMembership struct {
	VID         int
	TaggingMode string // tagged, untagged
}

// VLANMemberships returns the VLAN_MEMBER bindings of an interface.
// Key format: VLAN_MEMBER|Vlan<id>|<ifname>.
func (c *ConfigDBClient) VLANMemberships(name string) ([]VLANMembership, error) {
	keys, err := scanKeys(c.ctx, c.client, "VLAN_MEMBER|*|"+name, 100)
	if err != nil {
		return nil, err
	}

	var out []VLANMembership
	for _, key := range keys {
		parts := strings.Split(key, "|")
		if len(parts) != 3 {
			continue
		}
		vid, err := strconv.Atoi(strings.TrimPrefix(parts[1], "Vlan"))
		if err != nil {
			continue
		}
		vals, err := c.client.HGetAll(c.ctx, key).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, VLANMembership{VID: vid, TaggingMode: vals["tagging_mode"]})
	}
	return out, nil
}

// SetVLANMember binds an interface to a VLAN with the given tagging mode.
func (c *ConfigDBClient) SetVLANMember(vid int, name, taggingMode string) error {
	key := fmt.Sprintf("VLAN_MEMBER|Vlan%d|%s", vid, name)
	return c.client.HSet(c.ctx, key, "tagging_mode", taggingMode).Err()
}

// RemoveVLANMember removes a VLAN binding of an interface.
func (c *ConfigDBClient) RemoveVLANMember(vid int, name string) error {
	key := fmt.Sprintf("VLAN_MEMBER|Vlan%d|%s", vid, name)
	return c.client.Del(c.ctx, key).Err()
}

// EnsureVLAN creates the VLAN table entry if it does not exist.
func (c *ConfigDBClient) EnsureVLAN(vid int) error {
	key := fmt.Sprintf("VLAN|Vlan%d", vid)
	n, err := c.client.Exists(c.ctx, key).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return c.client.HSet(c.ctx, key, "vlanid", strconv.Itoa(vid)).Err()
}

// scanKeys iterates keys matching pattern with cursor-based SCAN
// (non-blocking, unlike KEYS).
func scanKeys(ctx context.Context, client *redis.Client, pattern string, count int64) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := client.Scan(ctx, cursor, pattern, count).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

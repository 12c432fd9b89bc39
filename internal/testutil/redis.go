//go:build integration

package testutil

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
)

// The state store uses two key layouts: CONFIG_DB separates table and key
// with "|", APP_DB and COUNTERS_DB with ":".

// SeedHash writes one hash into a database under an already-joined key.
func SeedHash(t *testing.T, db int, key string, fields map[string]string) {
	t.Helper()
	client := RedisClient(t, db)

	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	if len(args) == 0 {
		args = append(args, "NULL", "NULL")
	}
	if err := client.HSet(context.Background(), key, args...).Err(); err != nil {
		t.Fatalf("seeding %s in DB %d: %v", key, db, err)
	}
}

// SeedPortTable seeds an APP_DB PORT_TABLE entry for one interface.
func SeedPortTable(t *testing.T, name string, fields map[string]string) {
	t.Helper()
	SeedHash(t, ApplDB, "PORT_TABLE:"+name, fields)
}

// SeedPortInitDone writes the forwarding-plane readiness sentinel.
func SeedPortInitDone(t *testing.T) {
	t.Helper()
	SeedHash(t, ApplDB, "PORT_TABLE:PortInitDone", map[string]string{"lanes": "0"})
}

// SeedCounters seeds the counter oid map and the counter hash for one
// interface.
func SeedCounters(t *testing.T, name, oid string, counters map[string]string) {
	t.Helper()
	client := RedisClient(t, CountersDB)
	ctx := context.Background()

	if err := client.HSet(ctx, "COUNTERS_PORT_NAME_MAP", name, oid).Err(); err != nil {
		t.Fatalf("seeding counter name map for %s: %v", name, err)
	}
	SeedHash(t, CountersDB, "COUNTERS:"+oid, counters)
}

// SeedConfigEntry seeds a CONFIG_DB table entry.
func SeedConfigEntry(t *testing.T, table, key string, fields map[string]string) {
	t.Helper()
	SeedHash(t, ConfigDB, table+"|"+key, fields)
}

// ReadHash reads a hash from a database, failing the test on error.
func ReadHash(t *testing.T, db int, key string) map[string]string {
	t.Helper()
	client := RedisClient(t, db)
	vals, err := client.HGetAll(context.Background(), key).Result()
	if err != nil {
		t.Fatalf("reading %s from DB %d: %v", key, db, err)
	}
	return vals
}

// EnableKeyspaceEvents turns on the keyspace notifications the notification
// bridge subscribes to.
func EnableKeyspaceEvents(t *testing.T) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: RedisAddr()})
	defer client.Close()
	if err := client.ConfigSet(context.Background(), "notify-keyspace-events", "KEA").Err(); err != nil {
		t.Fatalf("enabling keyspace events: %v", err)
	}
}

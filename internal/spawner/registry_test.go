package spawner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/toolgate/internal/catalog"
	"github.com/khanglvm/toolgate/internal/config"
	"github.com/khanglvm/toolgate/internal/log"
)

func TestRegistryListsAndSkipsBrokenServers(t *testing.T) {
	pool := NewPool(3, log.Nop)
	defer pool.Close()

	good := helperServer("")
	good.Category = "text"
	reg := NewRegistry(pool, map[string]*config.ServerConfig{
		"helper": good,
		"broken": helperServer("crash"),
	}, log.Nop)

	descs, err := reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 4)
	assert.Equal(t, "helper.reverse_text", descs[0].Name)
	assert.Equal(t, "text", descs[0].Category)
	assert.Equal(t, "Reverse a string of text", descs[0].Description)
	assert.Equal(t, []string{"text"}, descs[0].Parameters.Required())
	for _, d := range descs {
		assert.NoError(t, d.Validate())
	}

	failures := reg.Failures()
	assert.Contains(t, failures, "broken")
	assert.NotContains(t, failures, "helper")
}

func TestRegistryHandles(t *testing.T) {
	pool := NewPool(3, log.Nop)
	defer pool.Close()
	reg := NewRegistry(pool, map[string]*config.ServerConfig{"helper": helperServer("")}, log.Nop)

	// Resolve lists lazily.
	d, h, ok := reg.Resolve("helper.reverse_text")
	require.True(t, ok)
	assert.Equal(t, "helper", d.Category)
	assert.True(t, catalog.IsCancellable(h))

	v, err := h.Invoke(context.Background(), map[string]any{"text": "gate"})
	require.NoError(t, err)
	assert.Equal(t, "etag", v)

	_, h, ok = reg.Resolve("helper.explode")
	require.True(t, ok)
	_, err = h.Invoke(context.Background(), nil)
	var de *catalog.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "helper.explode: boom", err.Error())

	_, h, ok = reg.Resolve("helper.stats")
	require.True(t, ok)
	v, err = h.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": 3.0}, v)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, h, _ = reg.Resolve("helper.stall")
	_, err = h.Invoke(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, _, ok = reg.Resolve("helper.missing")
	assert.False(t, ok)
	_, _, ok = reg.Resolve("add")
	assert.False(t, ok)
}

func TestRegistryResolveIsBounded(t *testing.T) {
	pool := NewPool(3, log.Nop)
	defer pool.Close()
	reg := NewRegistry(pool, map[string]*config.ServerConfig{
		"helper": helperServer(""),
		"slow":   helperServer("hanglist"),
	}, log.Nop, WithListTimeout(200*time.Millisecond))

	// Only the named server is listed, so the hanging one is never touched.
	_, _, ok := reg.Resolve("helper.reverse_text")
	require.True(t, ok)
	assert.Equal(t, 1, pool.Size())

	start := time.Now()
	_, _, ok = reg.Resolve("slow.reverse_text")
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Contains(t, reg.Failures(), "slow")

	_, _, ok = reg.Resolve("unknown.reverse_text")
	assert.False(t, ok)
}

func TestSchemaFromJSON(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "object",
		"properties": {
			"zeta":  {"type": "boolean"},
			"query": {"type": "string", "description": "search text", "maxLength": 100},
			"limit": {"type": ["integer", "null"], "minimum": 1, "maximum": 50, "default": 10},
			"mode":  {"type": "string", "enum": ["fast", "full"]},
			"tags":  {"type": "array", "items": {"type": "string"}, "minItems": 1},
			"blob":  {}
		},
		"required": ["query", "limit", "ghost"]
	}`)

	schema := SchemaFromJSON(raw)
	assert.Equal(t, []string{"query", "limit", "blob", "mode", "tags", "zeta"}, schema.Names())
	assert.Equal(t, []string{"query", "limit"}, schema.Required())

	q, _ := schema.Lookup("query")
	assert.Equal(t, catalog.TypeString, q.Type)
	assert.Equal(t, "search text", q.Description)
	require.NotNil(t, q.Constraints.MaxLength)
	assert.Equal(t, 100, *q.Constraints.MaxLength)

	l, _ := schema.Lookup("limit")
	assert.Equal(t, catalog.TypeInteger, l.Type)
	assert.Equal(t, 1.0, *l.Constraints.Minimum)
	assert.Equal(t, 10.0, l.Default)

	m, _ := schema.Lookup("mode")
	assert.Equal(t, []string{"fast", "full"}, m.Constraints.Enum)

	tags, _ := schema.Lookup("tags")
	assert.Equal(t, catalog.TypeString, tags.Constraints.Items)
	assert.Equal(t, 1, *tags.Constraints.MinLength)

	b, _ := schema.Lookup("blob")
	assert.Equal(t, catalog.TypeAny, b.Type)

	assert.Nil(t, SchemaFromJSON(nil))
	assert.Nil(t, SchemaFromJSON(json.RawMessage(`not json`)))
}

package spawner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/khanglvm/toolgate/internal/catalog"
	"github.com/khanglvm/toolgate/internal/config"
	"github.com/khanglvm/toolgate/internal/log"
)

// Separator joins a server name and a tool name into an operation name.
const Separator = "."

// DefaultListTimeout bounds the listing Resolve runs for a server it has not
// seen yet.
const DefaultListTimeout = 30 * time.Second

// OperationName returns the operation name of tool on server.
func OperationName(server, tool string) string {
	return server + Separator + tool
}

type remoteTool struct {
	server string
	tool   string
	desc   catalog.Descriptor
}

// Registry exposes the tools of configured child servers as a catalog.Registry.
// A server that fails to list is logged and left out.
type Registry struct {
	pool        *Pool
	servers     map[string]*config.ServerConfig
	log         log.Logger
	listTimeout time.Duration

	mu       sync.RWMutex
	tools    map[string]remoteTool
	failures map[string]error
	fetched  map[string]bool
	listed   bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithListTimeout sets how long Resolve waits for an unlisted server.
func WithListTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.listTimeout = d
		}
	}
}

// NewRegistry returns a registry over servers backed by pool.
func NewRegistry(pool *Pool, servers map[string]*config.ServerConfig, logger log.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		pool:        pool,
		servers:     servers,
		log:         log.OrDefault(logger),
		listTimeout: DefaultListTimeout,
		tools:       make(map[string]remoteTool),
		failures:    make(map[string]error),
		fetched:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List queries every server in name order and returns their tools.
func (r *Registry) List(ctx context.Context) ([]catalog.Descriptor, error) {
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make(map[string]remoteTool)
	failures := make(map[string]error)
	var descs []catalog.Descriptor

	for _, server := range names {
		cfg := r.servers[server]
		list, err := r.pool.GetTools(ctx, server, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.Warnf("skipping server %s: %v", server, err)
			failures[server] = err
			continue
		}
		for _, t := range list {
			d := descriptor(server, cfg, t)
			tools[d.Name] = remoteTool{server: server, tool: t.Name, desc: d}
			descs = append(descs, d)
		}
	}

	r.mu.Lock()
	r.tools = tools
	r.failures = failures
	r.listed = true
	r.mu.Unlock()
	return descs, nil
}

// Failures returns the servers that failed on the last List or Resolve.
func (r *Registry) Failures() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]error, len(r.failures))
	for k, v := range r.failures {
		out[k] = v
	}
	return out
}

// Resolve returns a remote operation. If List has not run, only the server
// named by the operation is listed, within the list timeout. A failed
// listing is retried on the next call.
func (r *Registry) Resolve(name string) (catalog.Descriptor, catalog.Handle, bool) {
	server := r.serverOf(name)
	if server == "" {
		return catalog.Descriptor{}, nil, false
	}

	r.mu.RLock()
	rt, ok := r.tools[name]
	known := r.listed || r.fetched[server]
	r.mu.RUnlock()

	if !ok && !known {
		ctx, cancel := context.WithTimeout(context.Background(), r.listTimeout)
		r.fetch(ctx, server)
		cancel()

		r.mu.RLock()
		rt, ok = r.tools[name]
		r.mu.RUnlock()
	}
	if !ok {
		return catalog.Descriptor{}, nil, false
	}
	return rt.desc, r.handle(name, rt), true
}

// serverOf returns the configured server whose prefix names the operation,
// preferring the longest match.
func (r *Registry) serverOf(name string) string {
	var best string
	for server := range r.servers {
		if strings.HasPrefix(name, server+Separator) && len(server) > len(best) {
			best = server
		}
	}
	return best
}

// fetch lists a single server and merges its tools.
func (r *Registry) fetch(ctx context.Context, server string) {
	cfg := r.servers[server]
	list, err := r.pool.GetTools(ctx, server, cfg)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failures[server] = err
		r.log.Warnf("failed to list server %s: %v", server, err)
		return
	}
	delete(r.failures, server)
	r.fetched[server] = true
	for _, t := range list {
		d := descriptor(server, cfg, t)
		r.tools[d.Name] = remoteTool{server: server, tool: t.Name, desc: d}
	}
}

func (r *Registry) handle(name string, rt remoteTool) catalog.Handle {
	cfg := r.servers[rt.server]
	return catalog.Cooperative(func(ctx context.Context, params map[string]any) (any, error) {
		res, err := r.pool.CallTool(ctx, rt.server, cfg, rt.tool, params)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if res.IsError {
			msg := res.Text()
			if msg == "" {
				msg = "tool reported an error"
			}
			return nil, catalog.NewDomainError(name, "%s", msg)
		}
		return resultValue(res), nil
	})
}

// resultValue prefers structured content, then a JSON text payload, then
// the raw text.
func resultValue(res *CallResult) any {
	if res.StructuredContent != nil {
		return res.StructuredContent
	}
	text := res.Text()
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v
	}
	return text
}

func descriptor(server string, cfg *config.ServerConfig, t Tool) catalog.Descriptor {
	category := server
	if cfg != nil && cfg.Category != "" {
		category = cfg.Category
	}
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		desc = fmt.Sprintf("Tool %s provided by server %s", t.Name, server)
	}
	return catalog.Descriptor{
		Name:        OperationName(server, t.Name),
		Category:    category,
		Description: desc,
		Parameters:  SchemaFromJSON(t.InputSchema),
		Keywords:    []string{server, strings.ReplaceAll(t.Name, "_", " ")},
	}
}

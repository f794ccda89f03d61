package relaymux

import (
	"net/http"
	"time"

	"github.com/relaymux/relaymux/backends"
	"github.com/relaymux/relaymux/internal/dispatch"
	"github.com/relaymux/relaymux/internal/logging"
	"github.com/relaymux/relaymux/internal/state"
)

// Gateway ties the immutable backend catalog, the durable cooldown state, and
// the failover dispatch engine together. One Gateway serves all concurrent
// requests; the catalog is read-only and every state mutation is serialized
// through the state manager.
type Gateway struct {
	catalog *backends.Catalog
	states  *state.Manager
	engine  *dispatch.Engine
	now     func() time.Time
}

// New creates a Gateway over the given catalog and state store.
func New(catalog *backends.Catalog, store state.Store) *Gateway {
	states := state.NewManager(store)
	return &Gateway{
		catalog: catalog,
		states:  states,
		engine:  dispatch.NewEngine(states, catalog.DefaultModel()),
		now:     time.Now,
	}
}

// WithClient replaces the upstream HTTP client.
func (g *Gateway) WithClient(c *http.Client) *Gateway {
	g.engine.WithClient(c)
	return g
}

// WithClock replaces the time source, for tests.
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	g.engine.WithClock(now)
	return g
}

// Catalog returns the gateway's backend catalog.
func (g *Gateway) Catalog() *backends.Catalog { return g.catalog }

// States returns the state manager, for inspection tooling.
func (g *Gateway) States() *state.Manager { return g.states }

// ServeChat handles POST /v1/chat/completions.
func (g *Gateway) ServeChat(w http.ResponseWriter, r *http.Request) {
	g.dispatch(w, r, dispatch.EndpointChat)
}

// ServeEmbeddings handles POST /v1/embeddings.
func (g *Gateway) ServeEmbeddings(w http.ResponseWriter, r *http.Request) {
	g.dispatch(w, r, dispatch.EndpointEmbeddings)
}

// dispatch selects the currently eligible backends and runs the failover
// loop. Candidate selection runs inside the state manager's exclusive update
// so that lazily expired cooldowns are flushed exactly once, without racing
// concurrent rate-limit writes.
func (g *Gateway) dispatch(w http.ResponseWriter, r *http.Request, ep dispatch.Endpoint) {
	now := g.now()
	var cands []backends.Backend
	_, err := g.states.Update(r.Context(), func(s state.State) bool {
		var changed bool
		cands, changed = dispatch.SelectCandidates(g.catalog.Backends(), s, now)
		return changed
	})
	if err != nil {
		// A failed expiry flush is recoverable: dispatch continues with the
		// candidates computed from the snapshot.
		logging.FromContext(r.Context()).Error("flushing expired cooldowns failed", "error", err.Error())
	}
	g.engine.Dispatch(w, r, cands, ep)
}

package catalog

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/veldt/entryflow/internal/hub"
	"github.com/veldt/entryflow/internal/logging"
)

const (
	// DefaultTTL is how long cached handler lists and string tables stay
	// fresh. Integration metadata only changes when the hub is upgraded.
	DefaultTTL = 5 * time.Minute

	// DefaultCleanupInterval is how often expired entries are evicted.
	DefaultCleanupInterval = 10 * time.Minute

	handlersKey      = "flow_handlers"
	stringsKeyPrefix = "strings/"
)

// API is the slice of the hub connection the catalog needs. *hub.Conn
// satisfies it.
type API interface {
	ListFlowHandlers(ctx context.Context) ([]string, error)
	GetStrings(ctx context.Context, handler string) (map[string]string, error)
}

// Catalog serves integration metadata (which handlers can start a flow, and
// their localized UI strings) with a TTL cache in front of the hub. The
// cache is injected so callers control its lifetime and tests can share or
// isolate it.
type Catalog struct {
	api   API
	cache *gocache.Cache
}

// NewCache returns a cache sized for catalog use.
func NewCache() *gocache.Cache {
	return gocache.New(DefaultTTL, DefaultCleanupInterval)
}

// New builds a catalog over the given API and cache.
func New(api API, cache *gocache.Cache) *Catalog {
	return &Catalog{api: api, cache: cache}
}

// Handlers returns the integration domains that can start a config flow,
// cached across calls.
func (c *Catalog) Handlers(ctx context.Context) ([]string, error) {
	if cached, ok := c.cache.Get(handlersKey); ok {
		return cached.([]string), nil
	}

	handlers, err := c.api.ListFlowHandlers(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(handlersKey, handlers, gocache.DefaultExpiration)
	return handlers, nil
}

// Localizer returns the string table for one handler and flow domain.
// A fetch failure is not fatal to the dialog: the returned localizer falls
// back to raw resource keys and the failure is logged at debug level.
func (c *Catalog) Localizer(ctx context.Context, handler string, domain hub.FlowDomain) *Localizer {
	key := stringsKeyPrefix + handler
	if cached, ok := c.cache.Get(key); ok {
		return newLocalizer(cached.(map[string]string), domain)
	}

	strings, err := c.api.GetStrings(ctx, handler)
	if err != nil {
		logging.Debug("Failed to fetch strings, using raw keys",
			zap.String("handler", handler),
			zap.Error(err),
		)
		return newLocalizer(nil, domain)
	}
	c.cache.Set(key, strings, gocache.DefaultExpiration)
	return newLocalizer(strings, domain)
}

package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/livemap/internal/adapters/postgres"
	"github.com/samirrijal/livemap/internal/adapters/valkey"
	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Map        *usecases.MapService
	Refreshers map[domain.LayerKind]*usecases.Refresher
	Trips      *usecases.TripService
	Vehicles   *usecases.VehicleFeedService
	Hub        *Hub
	// StaticDir holds the exported <ROUTE_TYPE>/*.json collections.
	StaticDir string
	// AssetsDir is served under /static (icons, page scripts).
	AssetsDir string
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     *valkey.Cache
}

func (d *Dependencies) refresher(layer domain.LayerKind) (*usecases.Refresher, bool) {
	r, ok := d.Refreshers[layer]
	return r, ok && r != nil
}

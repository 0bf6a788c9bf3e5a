package http

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/livemap/internal/adapters/render"
	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/usecases"
)

// ValueHandler returns the route type selector as plain text.
func ValueHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(deps.Map.RouteType())
	}
}

// MapConfigHandler returns the map configuration.
func MapConfigHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Map.Config())
	}
}

// StaticCollectionHandler serves an exported stop, shape or parking
// collection of the configured route type.
func StaticCollectionHandler(deps *Dependencies) fiber.Handler {
	files := map[string]bool{}
	for _, layer := range domain.Layers {
		if f := usecases.StaticFile(layer); f != "" {
			files[f] = true
		}
	}

	return func(c *fiber.Ctx) error {
		routeType := strings.ToUpper(c.Params("routeType"))
		file := c.Params("file")
		if routeType != deps.Map.RouteType() || !files[file] {
			return errNotFound(c, "no collection "+routeType+"/"+file)
		}

		path := filepath.Join(deps.StaticDir, routeType, file)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return errNotFound(c, "collection "+file+" has not been exported")
			}
			return errInternal(c, err.Error())
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendFile(path)
	}
}

// VehiclesHandler returns the vehicles currently on the map as GeoJSON,
// each feature carrying its rendered popupContent, icon and name.
func VehiclesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, ok := deps.refresher(domain.LayerVehicles)
		if !ok {
			return errNotFound(c, "vehicles layer is not configured")
		}
		c.Set("Cache-Control", "no-cache")
		return c.JSON(markerCollection(r.Snapshot()))
	}
}

func markerCollection(markers []domain.Marker) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range markers {
		if m.Geometry == nil {
			continue
		}
		f := geojson.NewFeature(m.Geometry)
		f.ID = m.ID
		f.Properties["popupContent"] = m.Popup
		f.Properties["name"] = m.SearchName
		f.Properties["tooltip"] = m.Tooltip
		f.Properties["zIndexOffset"] = m.ZIndexOffset
		if m.Icon != nil {
			if m.Icon.HTML != "" {
				f.Properties["icon"] = m.Icon.HTML
			} else {
				f.Properties["icon"] = m.Icon.URL
			}
		}
		if m.TripID != "" {
			f.Properties["trip_id"] = m.TripID
		}
		fc.Append(f)
	}
	return fc
}

// FeedVehiclesHandler returns the vehicle collection built from the
// realtime tables. It is the default upstream of the vehicles layer.
func FeedVehiclesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Vehicles == nil {
			return errNotFound(c, "vehicle feed is not configured")
		}
		features, err := deps.Vehicles.Features(c.UserContext())
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("vehicle feed", "error", err)
			return errInternal(c, "could not load vehicles")
		}

		fc := geojson.NewFeatureCollection()
		for _, feat := range features {
			f := geojson.NewFeature(feat.Geometry)
			f.ID = feat.ID
			f.Properties = feat.Properties
			fc.Append(f)
		}
		c.Set("Cache-Control", "no-cache")
		return c.JSON(fc)
	}
}

// ListLayersHandler returns the status of every layer refresher.
func ListLayersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		statuses := make([]usecases.RefresherStatus, 0, len(deps.Refreshers))
		for _, layer := range domain.Layers {
			if r, ok := deps.refresher(layer); ok {
				statuses = append(statuses, r.Status())
			}
		}
		return c.JSON(statuses)
	}
}

// layerParam resolves the :layer route parameter.
func layerParam(c *fiber.Ctx, deps *Dependencies) (*usecases.Refresher, error) {
	layer, err := domain.ParseLayer(c.Params("layer"))
	if err != nil {
		return nil, err
	}
	r, ok := deps.refresher(layer)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", domain.ErrUnknownLayer, layer)
	}
	return r, nil
}

// LayerMarkersHandler returns the displayed markers of a layer, sorted by
// id and paginated with offset/limit.
func LayerMarkersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := layerParam(c, deps)
		if err != nil {
			return errNotFound(c, err.Error())
		}

		markers := r.Snapshot()

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 500)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 5000 {
			limit = 500
		}

		total := len(markers)
		if offset >= total {
			markers = []domain.Marker{}
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			markers = markers[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: markers, Pagination: pg})
	}
}

// RefreshLayerHandler runs one refresh cycle of a layer immediately.
func RefreshLayerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := layerParam(c, deps)
		if err != nil {
			return errNotFound(c, err.Error())
		}
		if err := r.Refresh(c.UserContext()); err != nil {
			return errBadGateway(c, err.Error())
		}
		return c.JSON(r.Status())
	}
}

// PredictionHandler returns the predictions of a trip as JSON.
// include=stop_time adds the flag stop and early departure markers.
func PredictionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tripID := c.Query("trip_id")
		if tripID == "" {
			return errBadRequest(c, "trip_id query parameter is required")
		}
		include := c.Query("include") == "stop_time"

		preds, err := deps.Trips.Predictions(c.UserContext(), tripID, include)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("predictions", "trip_id", tripID, "error", err)
			return errInternal(c, "could not load predictions")
		}
		return c.JSON(preds)
	}
}

// PredictionTableHandler renders the upcoming predictions of a trip as an
// HTML table; 204 when there is nothing to show.
func PredictionTableHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tripID := c.Query("trip_id")
		if tripID == "" {
			return errBadRequest(c, "trip_id query parameter is required")
		}

		preds, err := deps.Trips.UpcomingPredictions(c.UserContext(), tripID)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("predictions", "trip_id", tripID, "error", err)
			return errInternal(c, "could not load predictions")
		}
		if len(preds) == 0 {
			return c.SendStatus(fiber.StatusNoContent)
		}

		html, err := render.PredictionTable(preds)
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(html)
	}
}

// AlertHandler returns the alerts of a trip as JSON, newest first.
func AlertHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tripID := c.Query("trip_id")
		if tripID == "" {
			return errBadRequest(c, "trip_id query parameter is required")
		}

		alerts, err := deps.Trips.Alerts(c.UserContext(), tripID)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("alerts", "trip_id", tripID, "error", err)
			return errInternal(c, "could not load alerts")
		}
		return c.JSON(alerts)
	}
}

// AlertTableHandler renders the alerts of a trip as an HTML table; 204
// when there are none.
func AlertTableHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tripID := c.Query("trip_id")
		if tripID == "" {
			return errBadRequest(c, "trip_id query parameter is required")
		}

		alerts, err := deps.Trips.Alerts(c.UserContext(), tripID)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("alerts", "trip_id", tripID, "error", err)
			return errInternal(c, "could not load alerts")
		}
		if len(alerts) == 0 {
			return c.SendStatus(fiber.StatusNoContent)
		}

		html, err := render.AlertTable(alerts)
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(html)
	}
}

package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"github.com/paulmach/orb"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/usecases"
	"github.com/samirrijal/livemap/internal/pkg/transitfmt"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	baseMapType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BaseMap",
		Fields: graphql.Fields{
			"name":        &graphql.Field{Type: graphql.String},
			"url":         &graphql.Field{Type: graphql.String},
			"attribution": &graphql.Field{Type: graphql.String},
			"subdomains":  &graphql.Field{Type: graphql.String},
			"max_zoom":    &graphql.Field{Type: graphql.Int},
			"default":     &graphql.Field{Type: graphql.Boolean},
		},
	})

	overlayType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Overlay",
		Fields: graphql.Fields{
			"name":                       &graphql.Field{Type: graphql.String},
			"layer":                      &graphql.Field{Type: graphql.String},
			"source":                     &graphql.Field{Type: graphql.String},
			"visible":                    &graphql.Field{Type: graphql.Boolean},
			"min_zoom":                   &graphql.Field{Type: graphql.Int},
			"disable_clustering_at_zoom": &graphql.Field{Type: graphql.Int},
		},
	})

	mapConfigType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MapConfig",
		Fields: graphql.Fields{
			"route_type":  &graphql.Field{Type: graphql.String},
			"title":       &graphql.Field{Type: graphql.String},
			"bounds":      &graphql.Field{Type: boundsType},
			"center":      &graphql.Field{Type: geoPointType},
			"zoom":        &graphql.Field{Type: graphql.Int},
			"min_zoom":    &graphql.Field{Type: graphql.Int},
			"max_zoom":    &graphql.Field{Type: graphql.Int},
			"search_zoom": &graphql.Field{Type: graphql.Int},
			"base_maps":   &graphql.Field{Type: graphql.NewList(baseMapType)},
			"overlays":    &graphql.Field{Type: graphql.NewList(overlayType)},
		},
	})

	layerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Layer",
		Fields: graphql.Fields{
			"layer":       &graphql.Field{Type: graphql.String},
			"url":         &graphql.Field{Type: graphql.String},
			"interval":    &graphql.Field{Type: graphql.String},
			"markers":     &graphql.Field{Type: graphql.Int},
			"placeholder": &graphql.Field{Type: graphql.Boolean},
			"refreshes":   &graphql.Field{Type: graphql.Int},
			"failures":    &graphql.Field{Type: graphql.Int},
			"last_error":  &graphql.Field{Type: graphql.String},
			"last_refresh": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					st, ok := p.Source.(usecases.RefresherStatus)
					if !ok || st.LastRefresh == nil {
						return nil, nil
					}
					return st.LastRefresh.Format(time.RFC3339), nil
				},
			},
		},
	})

	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Marker",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"layer":          &graphql.Field{Type: graphql.String},
			"popup":          &graphql.Field{Type: graphql.String},
			"tooltip":        &graphql.Field{Type: graphql.String},
			"search_name":    &graphql.Field{Type: graphql.String},
			"z_index_offset": &graphql.Field{Type: graphql.Int},
			"popup_open":     &graphql.Field{Type: graphql.Boolean},
			"trip_id":        &graphql.Field{Type: graphql.String},
			"location":       &graphql.Field{Type: geoPointType},
		},
	})

	stopTimeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PredictionStopTime",
		Fields: graphql.Fields{
			"flag_stop":       &graphql.Field{Type: graphql.Boolean},
			"early_departure": &graphql.Field{Type: graphql.Boolean},
		},
	})

	predictionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Prediction",
		Fields: graphql.Fields{
			"trip_id":        &graphql.Field{Type: graphql.String},
			"stop_id":        &graphql.Field{Type: graphql.String},
			"stop_name":      &graphql.Field{Type: graphql.String},
			"stop_sequence":  &graphql.Field{Type: graphql.Int},
			"arrival_time":   &graphql.Field{Type: graphql.Float},
			"departure_time": &graphql.Field{Type: graphql.Float},
			"delay":          &graphql.Field{Type: graphql.Int},
			"stop_time":      &graphql.Field{Type: stopTimeType},
			"estimated": &graphql.Field{
				Type:        graphql.String,
				Description: "Departure, else arrival, time as hh:mm am",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pred, ok := p.Source.(domain.Prediction)
					if !ok {
						return nil, nil
					}
					t, ok := pred.EstimatedTime()
					if !ok {
						return nil, nil
					}
					return transitfmt.FormatClock(t), nil
				},
			},
		},
	})

	alertType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Alert",
		Fields: graphql.Fields{
			"alert_id":    &graphql.Field{Type: graphql.String},
			"trip_id":     &graphql.Field{Type: graphql.String},
			"header":      &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"timestamp":   &graphql.Field{Type: graphql.Float},
			"updated":     &graphql.Field{Type: graphql.Float},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"mapConfig": &graphql.Field{
				Type:        mapConfigType,
				Description: "Map configuration for the served route type",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Map.Config(), nil
				},
			},
			"layers": &graphql.Field{
				Type:        graphql.NewList(layerType),
				Description: "Status of every layer refresher",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var out []usecases.RefresherStatus
					for _, layer := range domain.Layers {
						if r, ok := deps.refresher(layer); ok {
							out = append(out, r.Status())
						}
					}
					return out, nil
				},
			},
			"markers": &graphql.Field{
				Type:        graphql.NewList(markerType),
				Description: "Displayed markers of a layer, sorted by id",
				Args: graphql.FieldConfigArgument{
					"layer":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 500},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					layer, err := domain.ParseLayer(p.Args["layer"].(string))
					if err != nil {
						return nil, err
					}
					r, ok := deps.refresher(layer)
					if !ok {
						return nil, domain.ErrUnknownLayer
					}
					markers := r.Snapshot()
					offset := max(p.Args["offset"].(int), 0)
					limit := p.Args["limit"].(int)
					if offset >= len(markers) {
						return []map[string]interface{}{}, nil
					}
					markers = markers[offset:]
					if limit > 0 && limit < len(markers) {
						markers = markers[:limit]
					}

					result := make([]map[string]interface{}, 0, len(markers))
					for _, m := range markers {
						result = append(result, markerFields(m))
					}
					return result, nil
				},
			},
			"predictions": &graphql.Field{
				Type:        graphql.NewList(predictionType),
				Description: "Predictions of a trip ordered by estimated time",
				Args: graphql.FieldConfigArgument{
					"trip_id":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"upcoming": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					tripID := p.Args["trip_id"].(string)
					if p.Args["upcoming"].(bool) {
						return deps.Trips.UpcomingPredictions(p.Context, tripID)
					}
					return deps.Trips.Predictions(p.Context, tripID, true)
				},
			},
			"alerts": &graphql.Field{
				Type:        graphql.NewList(alertType),
				Description: "Alerts of a trip, newest first",
				Args: graphql.FieldConfigArgument{
					"trip_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Trips.Alerts(p.Context, p.Args["trip_id"].(string))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func markerFields(m domain.Marker) map[string]interface{} {
	fields := map[string]interface{}{
		"id":             m.ID,
		"layer":          string(m.Layer),
		"popup":          m.Popup,
		"tooltip":        m.Tooltip,
		"search_name":    m.SearchName,
		"z_index_offset": m.ZIndexOffset,
		"popup_open":     m.PopupOpen,
		"trip_id":        m.TripID,
	}
	if pt, ok := m.Geometry.(orb.Point); ok {
		fields["location"] = domain.GeoPoint{Lat: pt.Lat(), Lon: pt.Lon()}
	}
	return fields
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Query == "" {
			return errBadRequest(c, "query is required")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})
		if result.HasErrors() {
			LoggerFromCtx(c.UserContext()).Debug("graphql errors", "errors", result.Errors)
		}

		return c.JSON(result)
	}
}

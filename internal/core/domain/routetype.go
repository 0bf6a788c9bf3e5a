package domain

import (
	"fmt"
	"strings"
)

// GTFS route_type values served by the map.
const (
	RouteTypeLightRail    = 0
	RouteTypeSubway       = 1
	RouteTypeCommuterRail = 2
	RouteTypeBus          = 3
	RouteTypeFerry        = 4
)

var routeTypeNames = map[string]int{
	"LIGHT_RAIL":    RouteTypeLightRail,
	"SUBWAY":        RouteTypeSubway,
	"COMMUTER_RAIL": RouteTypeCommuterRail,
	"BUS":           RouteTypeBus,
	"FERRY":         RouteTypeFerry,
}

// ParseRouteType maps a route type selector such as COMMUTER_RAIL to its
// GTFS number.
func ParseRouteType(name string) (int, error) {
	rt, ok := routeTypeNames[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown route type %q", name)
	}
	return rt, nil
}

// RouteTypeName is the inverse of ParseRouteType.
func RouteTypeName(rt int) string {
	for name, v := range routeTypeNames {
		if v == rt {
			return name
		}
	}
	return ""
}

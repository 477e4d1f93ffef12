package api

import "github.com/kingrea/fieldstack/internal/manifest"

// RouteRegistration maps a module to the API base path it owns.
type RouteRegistration struct {
	ModuleName  string `json:"moduleName"`
	APIBasePath string `json:"apiBasePath"`
}

// BuildRouteRegistrations projects manifests into API route registrations,
// one per manifest in input order. The input is expected to be enabled-only
// already (see manifest.Scan); empty base paths pass through unchanged.
func BuildRouteRegistrations(manifests []manifest.Manifest) []RouteRegistration {
	routes := make([]RouteRegistration, 0, len(manifests))
	for _, m := range manifests {
		routes = append(routes, RouteRegistration{
			ModuleName:  m.Name,
			APIBasePath: m.Routes.API,
		})
	}
	return routes
}

package web

import (
	"encoding/json"
	"fmt"

	"github.com/kingrea/fieldstack/internal/manifest"
)

// RouteRegistration mounts one module's frontend page.
type RouteRegistration struct {
	ModuleName string `json:"moduleName"`
	Path       string `json:"path"`
}

// NavigationItem is one entry in the host's navigation menu.
type NavigationItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Path  string `json:"path"`
}

// BuildRouteRegistrations returns one registration per enabled manifest, in
// input order. Unlike the API builder it filters disabled manifests itself.
func BuildRouteRegistrations(manifests []manifest.Manifest) []RouteRegistration {
	routes := make([]RouteRegistration, 0, len(manifests))
	for _, m := range manifests {
		if !m.Enabled {
			continue
		}
		routes = append(routes, RouteRegistration{ModuleName: m.Name, Path: m.Routes.Frontend})
	}
	return routes
}

// BuildNavigationItems returns one menu item per enabled manifest. The
// module name is both the item ID and its label.
func BuildNavigationItems(manifests []manifest.Manifest) []NavigationItem {
	items := make([]NavigationItem, 0, len(manifests))
	for _, m := range manifests {
		if !m.Enabled {
			continue
		}
		items = append(items, NavigationItem{ID: m.Name, Label: m.Name, Path: m.Routes.Frontend})
	}
	return items
}

// Table is the document served to the client-side router.
type Table struct {
	Routes     []RouteRegistration `json:"routes"`
	Navigation []NavigationItem    `json:"navigation"`
}

// BuildTable combines the route and navigation projections.
func BuildTable(manifests []manifest.Manifest) Table {
	return Table{
		Routes:     BuildRouteRegistrations(manifests),
		Navigation: BuildNavigationItems(manifests),
	}
}

// RouteManifest encodes the route table as indented JSON.
func RouteManifest(manifests []manifest.Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(BuildTable(manifests), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("web: encode route manifest: %w", err)
	}
	return data, nil
}

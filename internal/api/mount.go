package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// reservedPaths are served by Server itself and cannot be claimed by a
// module.
var reservedPaths = map[string]string{
	"/health":      "the health endpoint",
	"/routes.json": "the web route manifest",
}

// HandlerFactory builds the handler serving one module's API subtree.
type HandlerFactory func(RouteRegistration) http.Handler

// Mount registers every route on mux, both the base path and its subtree.
// Trailing slashes are ignored, so "/" mounts the module at the root and
// catches every path no other module owns. Registrations with an empty base
// path are skipped and their module names returned. A second module claiming
// an already mounted path, or any module claiming a reserved server path,
// is an error.
func Mount(mux *http.ServeMux, routes []RouteRegistration, factory HandlerFactory) ([]string, error) {
	if mux == nil {
		return nil, fmt.Errorf("api: mux is required")
	}
	if factory == nil {
		factory = InfoHandler
	}
	var skipped []string
	owners := make(map[string]string, len(routes))
	for _, route := range routes {
		trimmed := strings.TrimSpace(route.APIBasePath)
		if trimmed == "" {
			skipped = append(skipped, route.ModuleName)
			continue
		}
		base := strings.TrimRight(trimmed, "/")
		if reason, reserved := reservedPaths[base]; reserved {
			return skipped, fmt.Errorf("api: %s cannot mount %s, reserved for %s", route.ModuleName, route.APIBasePath, reason)
		}
		if owner, exists := owners[base]; exists {
			return skipped, fmt.Errorf("api: %s cannot mount %s, already owned by %s", route.ModuleName, route.APIBasePath, owner)
		}
		owners[base] = route.ModuleName
		if err := handle(mux, base, factory(route)); err != nil {
			return skipped, fmt.Errorf("api: mount %s for %s: %w", route.APIBasePath, route.ModuleName, err)
		}
	}
	return skipped, nil
}

// handle converts ServeMux pattern panics into errors.
func handle(mux *http.ServeMux, base string, h http.Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	if base == "" {
		mux.Handle("/", h)
		return nil
	}
	mux.Handle(base, h)
	mux.Handle(base+"/", h)
	return nil
}

// InfoHandler answers every request under a module's base path with the
// module's registration. It stands in until a module ships real handlers.
func InfoHandler(route RouteRegistration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"module":   route.ModuleName,
			"basePath": route.APIBasePath,
			"path":     r.URL.Path,
		})
	})
}

// Package manifest holds the module descriptor schema shared by the API and
// web hosts. It parses descriptors with defaults, scans discovered entries
// down to the enabled set and checks declared dependencies by name.
//
// Everything here is a pure transformation over in-memory values; discovery
// lives in the plugins package and route projection in each host package.
package manifest

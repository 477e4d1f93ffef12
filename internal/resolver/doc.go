// Package resolver orders modules by their declared dependencies and detects
// cycles. Missing dependencies are left to manifest.ValidateDependencies.
package resolver

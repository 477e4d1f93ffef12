// Package web projects installed module manifests into the tables a
// client-side router consumes: frontend route registrations and the
// navigation menu.
package web

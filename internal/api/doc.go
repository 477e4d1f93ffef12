// Package api is the server-side host of the module system: it bootstraps
// the installed module set, projects it into API route registrations and
// mounts those onto a net/http mux.
package api

// Package module keeps the installed module set for a host process. Unlike
// a scan, which passes duplicate names through, the registry rejects a second
// module claiming a name that is already installed.
package module

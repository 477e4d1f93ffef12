// Package plugins discovers module descriptors on disk. It feeds the
// manifest scanner with source entries and leaves parsing, defaults and
// filtering to the manifest package.
//
// A modules directory may contain:
//
//	modules/
//	  ledger/module.json      named "ledger" unless the descriptor says otherwise
//	  billing/module.yaml     converted to JSON before parsing
//	  reports.json            named "reports"
//	  extras.go               evaluated with yaegi; must define ModuleManifests()
package plugins

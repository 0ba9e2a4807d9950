// Package checkpoint remembers a submitted actor run on disk so an
// interrupted scrape can re-attach to it with --resume instead of paying for
// a second run.
//
// One JSON file exists per request (hashtags plus results limit). It is
// written when the run is accepted, updated as its status changes and
// deleted once the run reaches a terminal status.
package checkpoint

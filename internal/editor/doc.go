// Package editor implements the license detail view model.
//
// # Overview
//
// State holds the working copy of a license header and its module grants
// next to a snapshot taken when the license was loaded. Comparing the two
// tells the console whether there is anything to save; validation decides
// whether saving is allowed.
//
// Session wraps a State with the I/O around it: loading the module catalog
// and the license, guarding against double saves, and ignoring results that
// arrive after the view was closed.
//
// # Modes
//
//   - ModeNew: blank header (active), no modules
//   - ModeEdit: fetched license, editable; saving requires a change
//   - ModeView: fetched license, read-only; never submittable
//
// A successful save commits the working copy as the new snapshot and moves
// the state to ModeView.
//
// # Dirtiness
//
// Header text fields are compared after trimming. Modules are compared in
// order on name, user count and dates; module ids do not count, so adding
// and removing a module leaves the state clean.
//
// # Saving
//
// The console runs saves as three steps so the network call can happen off
// the UI goroutine:
//
//	ticket, err := session.BeginSave()         // validate, mark busy
//	resp, err := session.Submit(ctx, ticket)   // network only
//	err = session.FinishSave(ticket, resp, err) // commit or report
//
// Save does all three for callers that can block.
package editor

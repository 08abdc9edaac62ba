// Package ui is the terminal console for license administration, built on
// Bubble Tea.
//
// # Views
//
//   - Login: username and password form. A stored session skips it.
//   - List: the filtered, searched, sorted and paginated license table.
//   - Detail: one license in view, edit or create mode, backed by an
//     editor.Session.
//   - Audit: the change history of a domain with a diff per entry.
//
// # Data flow
//
// The Model never blocks. Backend calls run inside tea.Cmd functions and
// come back as result messages. The license list arrives through
// state.Store, which the background poller fills; the model reads a
// snapshot on every tick and rebuilds the list when the revision changes.
//
// Notices, the loading indicator and confirmation prompts are published by
// the notify package. The model subscribes to each and re-arms a wait
// command after every message, so they work the same whether they are
// raised by the UI itself or by a service such as the editor session.
//
// Any request answered with 401 ends the session: the stored identity is
// cleared and the login view is shown with a warning.
package ui

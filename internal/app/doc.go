// Package app is the composition root of licdesk.
//
// Bootstrap loads the config file, opens the log file, restores the stored
// session and builds an API client that sends the session token and reports
// in-flight requests to a notify.Loading. The CLI commands use the returned
// Env directly; Run adds the shared state.Store, starts the Poller and hands
// everything to the terminal UI.
//
//	Run()
//	  ├─> Bootstrap()        config, logger, session store, client
//	  ├─> prefs.Load()       theme, status filter, page size
//	  ├─> Poller.Start()     background license refresh
//	  └─> ui.Run()           blocks until quit
//
// # Polling
//
// The poller refreshes the license list every poll_interval (30s by
// default) while a session exists. Each consecutive failure doubles the
// delay up to five minutes; the first success resets it. The UI asks for an
// immediate refresh after login, saves and deletes through Trigger.
//
// A failed refresh keeps the previous list and records the error on the
// store, so the header can show the connection state. A 401 recorded there
// makes the UI end the session.
package app

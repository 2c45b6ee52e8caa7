// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [LoadingView] : a spinner shown until the startup session check completes
//  2. [SearchView] : a search box, paginated movie results and a trending panel
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Results flow in from the search and trending [fetch.Controller] update channels; each state received
// re-arms the listener, so the view always renders the latest settled snapshot.
//
// Keyboard navigation uses vim-style bindings (j/k, h/l, enter, tab, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui

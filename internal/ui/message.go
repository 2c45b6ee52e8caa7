package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/reelx/internal/fetch"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/session"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSessionReady MsgKind = iota
	MsgSearchState
	MsgTrendingState
	MsgBrowserOpened
)

type sessionReady struct {
	state session.State
	err   error
}

// sessionReadyMsg is the constructor for [MsgSessionReady]
func sessionReadyMsg(state session.State, err error) Msg {
	return Msg{kind: MsgSessionReady, data: sessionReady{state, err}}
}

// searchStateMsg is the constructor for [MsgSearchState]. A false ok means the controller closed.
func searchStateMsg(state fetch.State[models.Movie], ok bool) Msg {
	return Msg{kind: MsgSearchState, data: controllerState{state, ok}}
}

// trendingStateMsg is the constructor for [MsgTrendingState]
func trendingStateMsg(state fetch.State[models.Movie], ok bool) Msg {
	return Msg{kind: MsgTrendingState, data: controllerState{state, ok}}
}

type controllerState struct {
	state fetch.State[models.Movie]
	ok    bool
}

type browserOpened struct {
	url string
	err error
}

// browserOpenedMsg is the constructor for [MsgBrowserOpened]
func browserOpenedMsg(url string, err error) Msg {
	return Msg{kind: MsgBrowserOpened, data: browserOpened{url, err}}
}

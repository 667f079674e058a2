package session

import (
	"sync"

	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/dkeye/VoicePeer/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Observers fans every notification out in order.
type Observers []core.Observer

func (o Observers) OnStatus(text string) {
	for _, x := range o {
		x.OnStatus(text)
	}
}

func (o Observers) OnConnectionStatus(text string) {
	for _, x := range o {
		x.OnConnectionStatus(text)
	}
}

func (o Observers) OnMicStatus(text string) {
	for _, x := range o {
		x.OnMicStatus(text)
	}
}

func (o Observers) OnJoinDisabled(v bool) {
	for _, x := range o {
		x.OnJoinDisabled(v)
	}
}

func (o Observers) OnMuteDisabled(v bool) {
	for _, x := range o {
		x.OnMuteDisabled(v)
	}
}

func (o Observers) OnMuted(v bool) {
	for _, x := range o {
		x.OnMuted(v)
	}
}

func (o Observers) OnSelfID(id string) {
	for _, x := range o {
		x.OnSelfID(id)
	}
}

func (o Observers) OnUserName(name string) {
	for _, x := range o {
		x.OnUserName(name)
	}
}

func (o Observers) OnPttActive(v bool) {
	for _, x := range o {
		x.OnPttActive(v)
	}
}

func (o Observers) OnPeerList(peers []domain.PeerEntry) {
	for _, x := range o {
		x.OnPeerList(peers)
	}
}

// View is the last observed value of every UI-facing field.
type View struct {
	Status       string             `json:"status"`
	Connection   string             `json:"connection"`
	Mic          string             `json:"mic"`
	JoinDisabled bool               `json:"joinDisabled"`
	MuteDisabled bool               `json:"muteDisabled"`
	Muted        bool               `json:"muted"`
	SelfID       string             `json:"selfId"`
	UserName     string             `json:"userName"`
	PttActive    bool               `json:"pttActive"`
	Peers        []domain.PeerEntry `json:"peers"`
}

// StateStore records notifications so they can be read from other goroutines.
type StateStore struct {
	mu   sync.RWMutex
	view View
}

func NewStateStore() *StateStore {
	return &StateStore{view: View{
		Connection:   ConnectionOffline,
		MuteDisabled: true,
		Peers:        []domain.PeerEntry{},
	}}
}

func (s *StateStore) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.view
	v.Peers = append([]domain.PeerEntry{}, s.view.Peers...)
	return v
}

func (s *StateStore) set(fn func(v *View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.view)
}

func (s *StateStore) OnStatus(text string)           { s.set(func(v *View) { v.Status = text }) }
func (s *StateStore) OnConnectionStatus(text string) { s.set(func(v *View) { v.Connection = text }) }
func (s *StateStore) OnMicStatus(text string)        { s.set(func(v *View) { v.Mic = text }) }
func (s *StateStore) OnJoinDisabled(b bool)          { s.set(func(v *View) { v.JoinDisabled = b }) }
func (s *StateStore) OnMuteDisabled(b bool)          { s.set(func(v *View) { v.MuteDisabled = b }) }
func (s *StateStore) OnMuted(b bool)                 { s.set(func(v *View) { v.Muted = b }) }
func (s *StateStore) OnSelfID(id string)             { s.set(func(v *View) { v.SelfID = id }) }
func (s *StateStore) OnUserName(name string)         { s.set(func(v *View) { v.UserName = name }) }
func (s *StateStore) OnPttActive(b bool)             { s.set(func(v *View) { v.PttActive = b }) }
func (s *StateStore) OnPeerList(peers []domain.PeerEntry) {
	s.set(func(v *View) { v.Peers = append([]domain.PeerEntry{}, peers...) })
}

// LogObserver mirrors status text to the log.
type LogObserver struct {
	core.NopObserver
	log zerolog.Logger
}

func NewLogObserver() *LogObserver {
	return &LogObserver{log: log.With().Str("module", "ui").Logger()}
}

func (l *LogObserver) OnStatus(text string) { l.log.Info().Str("status", text).Msg("status") }

func (l *LogObserver) OnConnectionStatus(text string) {
	l.log.Info().Str("connection", text).Msg("connectivity")
}

func (l *LogObserver) OnMicStatus(text string) { l.log.Info().Str("mic", text).Msg("microphone") }

func (l *LogObserver) OnPeerList(peers []domain.PeerEntry) {
	l.log.Debug().Int("peers", len(peers)).Msg("peer list")
}

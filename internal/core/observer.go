package core

import "github.com/dkeye/VoicePeer/internal/domain"

// Observer is notified synchronously on every observable session change.
type Observer interface {
	OnStatus(text string)
	OnConnectionStatus(text string)
	OnMicStatus(text string)
	OnJoinDisabled(disabled bool)
	OnMuteDisabled(disabled bool)
	OnMuted(muted bool)
	OnSelfID(id string)
	OnUserName(name string)
	OnPttActive(active bool)
	OnPeerList(peers []domain.PeerEntry)
}

// NopObserver can be embedded to implement only part of Observer.
type NopObserver struct{}

func (NopObserver) OnStatus(string)               {}
func (NopObserver) OnConnectionStatus(string)     {}
func (NopObserver) OnMicStatus(string)            {}
func (NopObserver) OnJoinDisabled(bool)           {}
func (NopObserver) OnMuteDisabled(bool)           {}
func (NopObserver) OnMuted(bool)                  {}
func (NopObserver) OnSelfID(string)               {}
func (NopObserver) OnUserName(string)             {}
func (NopObserver) OnPttActive(bool)              {}
func (NopObserver) OnPeerList([]domain.PeerEntry) {}

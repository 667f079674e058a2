package session

import "github.com/dkeye/VoicePeer/internal/domain"

type peerRow = domain.PeerEntry

func (c *Controller) addListItem(id string) {
	for _, r := range c.list {
		if r.ID == id {
			return
		}
	}
	c.list = append(c.list, peerRow{ID: id, State: domain.PeerIdle})
	c.publishList()
}

func (c *Controller) updateListItem(id string, state domain.PeerState) {
	for i := range c.list {
		if c.list[i].ID == id {
			c.list[i].State = state
			c.publishList()
			return
		}
	}
}

func (c *Controller) removeListItem(id string) {
	for i, r := range c.list {
		if r.ID == id {
			c.list = append(c.list[:i], c.list[i+1:]...)
			c.publishList()
			return
		}
	}
}

func (c *Controller) publishList() {
	c.obs.OnPeerList(append([]domain.PeerEntry(nil), c.list...))
}

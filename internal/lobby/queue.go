package lobby

import (
	"coin-arena/internal/config"
	"coin-arena/internal/protocol"
	"coin-arena/internal/session"
)

// Queue is a set of FIFO buckets keyed by selection. A player sits in at
// most one bucket.
type Queue struct {
	buckets map[string]*bucket
	byID    map[string]string // player id -> bucket key
}

type bucket struct {
	selection config.Selection
	players   []*session.Player
}

func NewQueue() *Queue {
	return &Queue{
		buckets: make(map[string]*bucket),
		byID:    make(map[string]string),
	}
}

// Add appends p to the bucket for sel. Re-adding a player already in that
// bucket keeps its position; a player in another bucket is moved.
func (q *Queue) Add(p *session.Player, sel config.Selection) {
	key := sel.Key()
	if cur, ok := q.byID[p.ID]; ok {
		if cur == key {
			return
		}
		q.Remove(p.ID)
	}
	b, ok := q.buckets[key]
	if !ok {
		b = &bucket{selection: sel}
		q.buckets[key] = b
	}
	b.players = append(b.players, p)
	q.byID[p.ID] = key
}

// Remove takes id out of its bucket, preserving the order of the rest.
// It returns the bucket's selection and whether id was queued.
func (q *Queue) Remove(id string) (config.Selection, bool) {
	key, ok := q.byID[id]
	if !ok {
		return config.Selection{}, false
	}
	delete(q.byID, id)
	b := q.buckets[key]
	for i, p := range b.players {
		if p.ID == id {
			b.players = append(b.players[:i], b.players[i+1:]...)
			break
		}
	}
	sel := b.selection
	if len(b.players) == 0 {
		delete(q.buckets, key)
	}
	return sel, true
}

// PopFront removes and returns the first n players of sel's bucket, or nil
// if fewer than n are waiting.
func (q *Queue) PopFront(sel config.Selection, n int) []*session.Player {
	b, ok := q.buckets[sel.Key()]
	if !ok || len(b.players) < n {
		return nil
	}
	out := append([]*session.Player(nil), b.players[:n]...)
	b.players = append(b.players[:0], b.players[n:]...)
	for _, p := range out {
		delete(q.byID, p.ID)
	}
	if len(b.players) == 0 {
		delete(q.buckets, sel.Key())
	}
	return out
}

// Members returns the players waiting for sel, in queue order.
func (q *Queue) Members(sel config.Selection) []*session.Player {
	b, ok := q.buckets[sel.Key()]
	if !ok {
		return nil
	}
	return append([]*session.Player(nil), b.players...)
}

// Len is the size of sel's bucket.
func (q *Queue) Len(sel config.Selection) int {
	if b, ok := q.buckets[sel.Key()]; ok {
		return len(b.players)
	}
	return 0
}

// Contains reports whether id is queued anywhere.
func (q *Queue) Contains(id string) bool {
	_, ok := q.byID[id]
	return ok
}

// Waiting is the number of queued players across all buckets.
func (q *Queue) Waiting() int {
	return len(q.byID)
}

// enqueue handles a join request. Blocked players get a reason; everyone
// else is bucketed and the bucket launches a room once it is full.
func (l *Lobby) enqueue(p *session.Player, requested config.Selection) {
	switch {
	case l.challenges.Active(p.ID):
		p.Send(protocol.Queue{Status: protocol.QueueBlocked, Reason: ReasonChallengePending})
		return
	case p.InRoom():
		p.Send(protocol.Queue{Status: protocol.QueueBlocked, Reason: ReasonInMatch})
		return
	}

	sel := config.ValidateSelection(requested)
	p.Selection = &sel
	p.Status = session.StatusQueued
	l.queue.Add(p, sel)
	l.broadcastQueue(sel)

	if roster := l.queue.PopFront(sel, l.cfg.RequiredPlayers); roster != nil {
		l.broadcastQueue(sel)
		l.createRoom(sel, roster)
	}
	l.touch()
}

// leaveQueue is idempotent. Remaining waiters learn their new positions.
func (l *Lobby) leaveQueue(p *session.Player) {
	if sel, ok := l.queue.Remove(p.ID); ok {
		l.broadcastQueue(sel)
	}
	p.Selection = nil
	if p.Status == session.StatusQueued {
		p.Status = session.StatusIdle
	}
	l.touch()
}

func (l *Lobby) broadcastQueue(sel config.Selection) {
	for i, member := range l.queue.Members(sel) {
		s := sel
		member.Send(protocol.Queue{
			Status:    protocol.QueueWaiting,
			Selection: &s,
			Position:  i + 1,
			Needed:    l.cfg.RequiredPlayers,
		})
	}
}

package netsync

import (
	"github.com/annelo/driftsync/internal/transform"
)

type blockedCells map[transform.Cell]bool

func (b blockedCells) IsFree(c transform.Cell) bool { return !b[c] }

type allBlocked struct{}

func (allBlocked) IsFree(transform.Cell) bool { return false }

type sent struct {
	clientID string // empty for broadcasts
	update   Update
}

type recordingTransport struct {
	sent []sent
}

func (r *recordingTransport) SendToAll(u Update) {
	r.sent = append(r.sent, sent{update: u})
}

func (r *recordingTransport) SendTo(clientID string, u Update) {
	r.sent = append(r.sent, sent{clientID: clientID, update: u})
}

func (r *recordingTransport) last() sent {
	return r.sent[len(r.sent)-1]
}

type fakeWorld struct {
	cells   map[string]transform.Cell
	visible map[string]bool
	writes  int
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{cells: map[string]transform.Cell{}, visible: map[string]bool{}}
}

func (w *fakeWorld) Register(id string, cell transform.Cell) {
	w.writes++
	w.cells[id] = cell
}

func (w *fakeWorld) Unregister(id string) {
	w.writes++
	delete(w.cells, id)
}

func (w *fakeWorld) RegisteredCell(id string) (transform.Cell, bool) {
	c, ok := w.cells[id]
	return c, ok
}

func (w *fakeWorld) SetVisible(id string, visible bool) {
	w.visible[id] = visible
}

package mux

import (
	"sort"

	"github.com/hostlink/go-hostlink/packet"
)

// table maps channel ids to their protocol engines. Iteration order is
// stable: ascending channel id, so the outbound scan always visits
// channels in the same sequence.
type table struct {
	engines map[packet.ChannelID]Engine
	order   []packet.ChannelID
}

func newTable() *table {
	return &table{engines: make(map[packet.ChannelID]Engine)}
}

func (t *table) exists(id packet.ChannelID) bool {
	_, ok := t.engines[id]
	return ok
}

func (t *table) get(id packet.ChannelID) (Engine, bool) {
	e, ok := t.engines[id]
	return e, ok
}

// add inserts an engine for id, keeping the scan order sorted. The
// caller must have checked that id is not already present.
func (t *table) add(id packet.ChannelID, e Engine) {
	t.engines[id] = e
	i := sort.Search(len(t.order), func(i int) bool { return t.order[i] >= id })
	t.order = append(t.order, 0)
	copy(t.order[i+1:], t.order[i:])
	t.order[i] = id
}

// each visits every engine in scan order.
func (t *table) each(fn func(id packet.ChannelID, e Engine)) {
	for _, id := range t.order {
		fn(id, t.engines[id])
	}
}

package client

import "time"

// ParticipantInfo is one entry of the local membership mirror.
type ParticipantInfo struct {
	Name     string
	Online   bool
	LastSeen time.Time
}

// roster tracks room membership in insertion order. Iteration order matters:
// operator fallback picks the first online entry.
type roster struct {
	order  []string
	byName map[string]*ParticipantInfo
}

func newRoster() *roster {
	return &roster{
		byName: make(map[string]*ParticipantInfo),
	}
}

func (r *roster) add(name string, at time.Time) {
	if p, ok := r.byName[name]; ok {
		p.Online = true
		p.LastSeen = at
		return
	}
	r.order = append(r.order, name)
	r.byName[name] = &ParticipantInfo{Name: name, Online: true, LastSeen: at}
}

func (r *roster) remove(name string) {
	if _, ok := r.byName[name]; !ok {
		return
	}
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// firstOnline returns the earliest-added participant that is online.
func (r *roster) firstOnline() (string, bool) {
	for _, name := range r.order {
		if p := r.byName[name]; p != nil && p.Online {
			return name, true
		}
	}
	return "", false
}

func (r *roster) list() []ParticipantInfo {
	out := make([]ParticipantInfo, 0, len(r.order))
	for _, name := range r.order {
		if p := r.byName[name]; p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// Package hosttest provides in-memory host collaborators for tests.
package hosttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/tinyland-inc/dmclaw/pkg/host"
)

// Person is a directory entry.
type Person struct {
	ID       host.PersonID
	Platform string
	UserID   int64
	Name     string
	Attrs    map[string]any
}

// Directory is an in-memory host.Directory. Err fields force failures.
type Directory struct {
	mu      sync.Mutex
	people  []Person
	NameErr error
	IDErr   error
	AttrErr error
}

func NewDirectory(people ...Person) *Directory {
	return &Directory{people: people}
}

func (d *Directory) Add(p Person) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.people = append(d.people, p)
}

func (d *Directory) PersonIDByName(_ context.Context, name string) (host.PersonID, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.NameErr != nil {
		return "", false, d.NameErr
	}
	for _, p := range d.people {
		if p.Name == name {
			return p.ID, true, nil
		}
	}
	return "", false, nil
}

func (d *Directory) PersonID(_ context.Context, platform string, userID int64) (host.PersonID, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.IDErr != nil {
		return "", false, d.IDErr
	}
	for _, p := range d.people {
		if p.Platform == platform && p.UserID == userID {
			return p.ID, true, nil
		}
	}
	return "", false, nil
}

func (d *Directory) PersonValue(_ context.Context, id host.PersonID, attr string) (any, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.AttrErr != nil {
		return nil, false, d.AttrErr
	}
	for _, p := range d.people {
		if p.ID == id {
			v, ok := p.Attrs[attr]
			return v, ok, nil
		}
	}
	return nil, false, nil
}

// Registry is an in-memory host.StreamRegistry.
type Registry struct {
	mu        sync.Mutex
	streams   []host.Stream
	names     map[string]string
	LookupErr error
	ListErr   error
}

func NewRegistry() *Registry {
	return &Registry{names: make(map[string]string)}
}

// AddPrivate registers a private stream for userID on platform.
func (r *Registry) AddPrivate(platform, userID, userName string) host.Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := host.Stream{
		ID:       fmt.Sprintf("%s:%s", platform, userID),
		Platform: platform,
		UserID:   userID,
		Private:  true,
	}
	r.streams = append(r.streams, s)
	r.names[s.ID] = userName
	return s
}

func (r *Registry) StreamByUser(_ context.Context, userID, platform string) (*host.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.LookupErr != nil {
		return nil, r.LookupErr
	}
	for _, s := range r.streams {
		if s.Private && s.UserID == userID && s.Platform == platform {
			s := s
			return &s, nil
		}
	}
	return nil, nil
}

func (r *Registry) PrivateStreams(_ context.Context, platform string) ([]host.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	var out []host.Stream
	for _, s := range r.streams {
		if s.Private && s.Platform == platform {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Registry) StreamInfo(_ context.Context, s host.Stream) (host.StreamInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return host.StreamInfo{UserID: s.UserID, UserName: r.names[s.ID]}, nil
}

// Delivery is one recorded SendText call.
type Delivery struct {
	Text   string
	Stream host.Stream
	Opts   host.SendOptions
}

// Sender records deliveries. Err makes every send fail; Panic makes it panic.
type Sender struct {
	mu         sync.Mutex
	Deliveries []Delivery
	Err        error
	Panic      any
}

func (s *Sender) SendText(_ context.Context, text string, stream host.Stream, opts host.SendOptions) error {
	if s.Panic != nil {
		panic(s.Panic)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deliveries = append(s.Deliveries, Delivery{Text: text, Stream: stream, Opts: opts})
	return s.Err
}

// Count returns how many sends were attempted.
func (s *Sender) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Deliveries)
}

// Last returns the most recent delivery.
func (s *Sender) Last() (Delivery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Deliveries) == 0 {
		return Delivery{}, false
	}
	return s.Deliveries[len(s.Deliveries)-1], true
}

var (
	_ host.Directory      = (*Directory)(nil)
	_ host.StreamRegistry = (*Registry)(nil)
	_ host.Sender         = (*Sender)(nil)
)

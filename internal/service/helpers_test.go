package service

import (
	"context"
	"sync"

	"akinmueble/internal/models"
	"akinmueble/internal/notifications"
	"akinmueble/internal/search"
	"akinmueble/internal/security"
)

type mailerStub struct {
	mu   sync.Mutex
	sent []notifications.Email
}

func (m *mailerStub) Email(_ context.Context, msg notifications.Email) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return "msg"
}

func (m *mailerStub) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, e := range m.sent {
		out = append(out, e.To)
	}
	return out
}

func (m *mailerStub) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type eventsStub struct {
	events []notifications.RequestEvent
	err    error
}

func (e *eventsStub) PublishRequestEvent(_ context.Context, ev notifications.RequestEvent) error {
	e.events = append(e.events, ev)
	return e.err
}

func (e *eventsStub) types() []string {
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type identityStub struct {
	ok    bool
	err   error
	calls []security.Role
}

func (i *identityStub) IssueCredentials(_ context.Context, _ models.Person, role security.Role, _ string) (bool, error) {
	i.calls = append(i.calls, role)
	return i.ok, i.err
}

type indexStub struct {
	upserted []uint
	deleted  []uint
	result   *search.Result
	err      error
}

func (ix *indexStub) Upsert(_ context.Context, properties ...models.Property) error {
	for _, p := range properties {
		ix.upserted = append(ix.upserted, p.ID)
	}
	return ix.err
}

func (ix *indexStub) Delete(_ context.Context, id uint) error {
	ix.deleted = append(ix.deleted, id)
	return ix.err
}

func (ix *indexStub) Search(_ context.Context, _ search.Query) (*search.Result, error) {
	if ix.err != nil {
		return nil, ix.err
	}
	return ix.result, nil
}

// Package memory is an in-process repository.Store used by service tests.
// Transactions are serialized and roll back by discarding a copy of the state.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
	"github.com/conducthotline/hotline_services/internal/relay_service/repository"
)

type connKey struct {
	user  string
	relay string
}

type chatRecord struct {
	eventID   int64
	relay     string
	room      []byte
	createdAt time.Time
}

type state struct {
	numbers   map[int64]domain.Number
	events    map[int64]domain.Event
	members   map[int64]domain.EventMember
	chats     map[uuid.UUID]chatRecord
	conns     map[connKey]domain.SmsChatConnection
	blocklist map[int64]domain.BlockListEntry
	audit     []domain.AuditLogEntry
	nextID    int64
}

func newState() *state {
	return &state{
		numbers:   make(map[int64]domain.Number),
		events:    make(map[int64]domain.Event),
		members:   make(map[int64]domain.EventMember),
		chats:     make(map[uuid.UUID]chatRecord),
		conns:     make(map[connKey]domain.SmsChatConnection),
		blocklist: make(map[int64]domain.BlockListEntry),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.numbers {
		c.numbers[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.chats {
		c.chats[k] = v
	}
	for k, v := range s.conns {
		c.conns[k] = v
	}
	for k, v := range s.blocklist {
		c.blocklist[k] = v
	}
	c.audit = append([]domain.AuditLogEntry(nil), s.audit...)
	c.nextID = s.nextID
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store implements repository.Store over maps guarded by a single mutex.
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
}

func NewStore() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState()}
}

// view runs fn against the current state, taking the lock unless a transaction already holds it.
func (s *Store) view(fn func(st *state) error) error {
	if s.inTx {
		return fn(s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, st: s.st.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

func (s *Store) Events() repository.EventRepository { return eventRepo{s} }
func (s *Store) Members() repository.MemberRepository { return memberRepo{s} }
func (s *Store) Numbers() repository.NumberRepository { return numberRepo{s} }
func (s *Store) SmsChats() repository.SmsChatRepository { return smsChatRepo{s} }
func (s *Store) BlockList() repository.BlockListRepository { return blockListRepo{s} }
func (s *Store) AuditLogs() repository.AuditLogRepository { return auditLogRepo{s} }

// AddNumber seeds the number inventory and returns the stored number.
func (s *Store) AddNumber(number, country string, pool domain.NumberPool) domain.Number {
	var n domain.Number
	_ = s.view(func(st *state) error {
		n = domain.Number{ID: st.id(), Number: number, Country: country, Pool: pool, Features: "sms,voice"}
		st.numbers[n.ID] = n
		return nil
	})
	return n
}

// AddEvent seeds an event. When primary is non-nil it becomes the event's primary number.
func (s *Store) AddEvent(slug, name, country string, primary *domain.Number) domain.Event {
	var e domain.Event
	_ = s.view(func(st *state) error {
		e = domain.Event{ID: st.id(), Slug: slug, Name: name, Country: country}
		if primary != nil {
			id := primary.ID
			e.PrimaryNumber = primary.Number
			e.PrimaryNumberID = &id
		}
		st.events[e.ID] = e
		return nil
	})
	return e
}

// UpdateEvent replaces a seeded event, for greetings and similar fields.
func (s *Store) UpdateEvent(e domain.Event) {
	_ = s.view(func(st *state) error {
		st.events[e.ID] = e
		return nil
	})
}

func (s *Store) AddMember(eventID int64, name, number string, verified bool) domain.EventMember {
	var m domain.EventMember
	_ = s.view(func(st *state) error {
		m = domain.EventMember{ID: st.id(), EventID: eventID, Name: name, Number: number, Verified: verified}
		st.members[m.ID] = m
		return nil
	})
	return m
}

// Connections returns every lookup entry sorted by user then relay number.
func (s *Store) Connections() []domain.SmsChatConnection {
	var out []domain.SmsChatConnection
	_ = s.view(func(st *state) error {
		for _, c := range st.conns {
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserNumber != out[j].UserNumber {
			return out[i].UserNumber < out[j].UserNumber
		}
		return out[i].RelayNumber < out[j].RelayNumber
	})
	return out
}

// Chats returns every routing record with its decoded room.
func (s *Store) Chats() []domain.SmsChat {
	var out []domain.SmsChat
	_ = s.view(func(st *state) error {
		for id, rec := range st.chats {
			room, err := domain.DecodeChatroom(rec.room)
			if err != nil {
				return err
			}
			out = append(out, domain.SmsChat{ID: id, EventID: rec.eventID, RelayNumber: rec.relay, Room: room, CreatedAt: rec.createdAt})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// AuditEntries returns the audit log in insertion order.
func (s *Store) AuditEntries() []domain.AuditLogEntry {
	var out []domain.AuditLogEntry
	_ = s.view(func(st *state) error {
		out = append(out, st.audit...)
		return nil
	})
	return out
}

// BlockListEntries returns the blocklist ordered by id.
func (s *Store) BlockListEntries() []domain.BlockListEntry {
	var out []domain.BlockListEntry
	_ = s.view(func(st *state) error {
		for _, e := range st.blocklist {
			out = append(out, e)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

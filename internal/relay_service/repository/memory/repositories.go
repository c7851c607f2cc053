package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

type eventRepo struct{ s *Store }

func (r eventRepo) find(match func(domain.Event) bool) (*domain.Event, error) {
	var out *domain.Event
	err := r.s.view(func(st *state) error {
		ids := make([]int64, 0, len(st.events))
		for id := range st.events {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			if e := st.events[id]; match(e) {
				out = &e
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r eventRepo) GetByID(_ context.Context, id int64) (*domain.Event, error) {
	return r.find(func(e domain.Event) bool { return e.ID == id })
}

func (r eventRepo) GetBySlug(_ context.Context, slug string) (*domain.Event, error) {
	return r.find(func(e domain.Event) bool { return e.Slug == slug })
}

func (r eventRepo) GetByPrimaryNumber(_ context.Context, number string) (*domain.Event, error) {
	return r.find(func(e domain.Event) bool { return number != "" && e.PrimaryNumber == number })
}

func (r eventRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Event, error) {
	return r.GetByID(ctx, id)
}

func (r eventRepo) SetPrimaryNumber(_ context.Context, eventID int64, number *domain.Number) error {
	return r.s.view(func(st *state) error {
		e, ok := st.events[eventID]
		if !ok {
			return fmt.Errorf("set primary number for event %d: %w", eventID, domain.ErrNotFound)
		}
		if number == nil {
			e.PrimaryNumber, e.PrimaryNumberID = "", nil
			st.events[eventID] = e
			return nil
		}
		for _, other := range st.events {
			if other.ID != eventID && other.PrimaryNumberID != nil && *other.PrimaryNumberID == number.ID {
				return fmt.Errorf("set primary number: %w", domain.ErrConflict)
			}
		}
		id := number.ID
		e.PrimaryNumber, e.PrimaryNumberID = number.Number, &id
		st.events[eventID] = e
		return nil
	})
}

type memberRepo struct{ s *Store }

func (r memberRepo) sorted(st *state) []domain.EventMember {
	out := make([]domain.EventMember, 0, len(st.members))
	for _, m := range st.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memberRepo) first(match func(domain.EventMember) bool) (*domain.EventMember, error) {
	var out *domain.EventMember
	err := r.s.view(func(st *state) error {
		for _, m := range r.sorted(st) {
			if match(m) {
				m := m
				out = &m
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r memberRepo) GetByID(_ context.Context, eventID, memberID int64) (*domain.EventMember, error) {
	return r.first(func(m domain.EventMember) bool { return m.EventID == eventID && m.ID == memberID })
}

func (r memberRepo) GetByNumber(_ context.Context, number string) (*domain.EventMember, error) {
	return r.first(func(m domain.EventMember) bool { return m.Number == number })
}

func (r memberRepo) FindPendingByNumber(_ context.Context, number string) (*domain.EventMember, error) {
	return r.first(func(m domain.EventMember) bool { return m.Number == number && !m.Verified })
}

func (r memberRepo) ListVerified(_ context.Context, eventID int64) ([]domain.EventMember, error) {
	var out []domain.EventMember
	err := r.s.view(func(st *state) error {
		for _, m := range r.sorted(st) {
			if m.EventID == eventID && m.Verified {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

func (r memberRepo) MarkVerified(_ context.Context, memberID int64) error {
	return r.s.view(func(st *state) error {
		m, ok := st.members[memberID]
		if !ok {
			return fmt.Errorf("mark member %d verified: %w", memberID, domain.ErrNotFound)
		}
		m.Verified = true
		st.members[memberID] = m
		return nil
	})
}

type numberRepo struct{ s *Store }

func (r numberRepo) unused(st *state, pool domain.NumberPool, country string, skip func(domain.Number) bool) []domain.Number {
	used := make(map[int64]bool)
	for _, e := range st.events {
		if e.PrimaryNumberID != nil {
			used[*e.PrimaryNumberID] = true
		}
	}
	var out []domain.Number
	for _, n := range st.numbers {
		if n.Pool != pool || n.Country != country || used[n.ID] || skip(n) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func limited(numbers []domain.Number, limit int) []domain.Number {
	if limit >= 0 && len(numbers) > limit {
		return numbers[:limit]
	}
	return numbers
}

func (r numberRepo) ListUnusedEventNumbers(_ context.Context, country string, limit int) ([]domain.Number, error) {
	var out []domain.Number
	err := r.s.view(func(st *state) error {
		out = limited(r.unused(st, domain.NumberPoolEvent, country, func(domain.Number) bool { return false }), limit)
		return nil
	})
	return out, err
}

func (r numberRepo) LockUnusedEventNumber(ctx context.Context, country string) (*domain.Number, error) {
	numbers, err := r.ListUnusedEventNumbers(ctx, country, 1)
	if err != nil || len(numbers) == 0 {
		return nil, err
	}
	return &numbers[0], nil
}

func (r numberRepo) ListUnusedRelayNumbers(_ context.Context, country string, excluded []string, limit int) ([]domain.Number, error) {
	skip := make(map[string]bool, len(excluded))
	for _, n := range excluded {
		skip[n] = true
	}
	var out []domain.Number
	err := r.s.view(func(st *state) error {
		out = limited(r.unused(st, domain.NumberPoolSMSRelay, country, func(n domain.Number) bool { return skip[n.Number] }), limit)
		return nil
	})
	return out, err
}

type smsChatRepo struct{ s *Store }

func (r smsChatRepo) FindByUserAndRelay(_ context.Context, userNumber, relayNumber string) (*domain.SmsChat, error) {
	var out *domain.SmsChat
	err := r.s.view(func(st *state) error {
		conn, ok := st.conns[connKey{userNumber, relayNumber}]
		if !ok {
			return nil
		}
		rec, ok := st.chats[conn.SmsChatID]
		if !ok {
			return nil
		}
		room, err := domain.DecodeChatroom(rec.room)
		if err != nil {
			return err
		}
		out = &domain.SmsChat{ID: conn.SmsChatID, EventID: rec.eventID, RelayNumber: rec.relay, Room: room, CreatedAt: rec.createdAt}
		return nil
	})
	return out, err
}

func (r smsChatRepo) Create(_ context.Context, eventID int64, relayNumber string, room *domain.Chatroom) (*domain.SmsChat, error) {
	data, err := domain.EncodeChatroom(room)
	if err != nil {
		return nil, fmt.Errorf("encode chatroom: %w", err)
	}
	chat := &domain.SmsChat{ID: uuid.New(), EventID: eventID, RelayNumber: relayNumber, Room: room, CreatedAt: time.Now().UTC()}
	err = r.s.view(func(st *state) error {
		participants := room.Participants()
		for _, p := range participants {
			if _, taken := st.conns[connKey{p.Number, p.Relay}]; taken {
				return fmt.Errorf("save chat: %w", domain.ErrConflict)
			}
		}
		st.chats[chat.ID] = chatRecord{eventID: eventID, relay: relayNumber, room: data, createdAt: chat.CreatedAt}
		for _, p := range participants {
			st.conns[connKey{p.Number, p.Relay}] = domain.SmsChatConnection{
				SmsChatID: chat.ID, UserNumber: p.Number, RelayNumber: p.Relay, UserName: p.Name,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func (r smsChatRepo) UpdateRoom(_ context.Context, chat *domain.SmsChat) error {
	data, err := domain.EncodeChatroom(chat.Room)
	if err != nil {
		return fmt.Errorf("encode chatroom: %w", err)
	}
	return r.s.view(func(st *state) error {
		rec, ok := st.chats[chat.ID]
		if !ok {
			return fmt.Errorf("update chat %s: %w", chat.ID, domain.ErrNotFound)
		}
		rec.room = data
		st.chats[chat.ID] = rec
		return nil
	})
}

func (r smsChatRepo) DeleteConnection(_ context.Context, chatID uuid.UUID, userNumber, relayNumber string) error {
	return r.s.view(func(st *state) error {
		key := connKey{userNumber, relayNumber}
		if c, ok := st.conns[key]; ok && c.SmsChatID == chatID {
			delete(st.conns, key)
		}
		return nil
	})
}

func (r smsChatRepo) DeleteConnections(_ context.Context, chatID uuid.UUID) error {
	return r.s.view(func(st *state) error {
		for k, c := range st.conns {
			if c.SmsChatID == chatID {
				delete(st.conns, k)
			}
		}
		return nil
	})
}

func (r smsChatRepo) Delete(ctx context.Context, eventID int64, chatID uuid.UUID) (*domain.SmsChat, error) {
	var out *domain.SmsChat
	err := r.s.view(func(st *state) error {
		rec, ok := st.chats[chatID]
		if !ok || rec.eventID != eventID {
			return nil
		}
		room, err := domain.DecodeChatroom(rec.room)
		if err != nil {
			room = domain.NewChatroom()
		}
		out = &domain.SmsChat{ID: chatID, EventID: eventID, RelayNumber: rec.relay, Room: room, CreatedAt: rec.createdAt}
		delete(st.chats, chatID)
		for k, c := range st.conns {
			if c.SmsChatID == chatID {
				delete(st.conns, k)
			}
		}
		return nil
	})
	return out, err
}

func (r smsChatRepo) ListConnections(_ context.Context, chatID uuid.UUID) ([]domain.SmsChatConnection, error) {
	var out []domain.SmsChatConnection
	err := r.s.view(func(st *state) error {
		for _, c := range st.conns {
			if c.SmsChatID == chatID {
				out = append(out, c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UserNumber < out[j].UserNumber })
	return out, err
}

func (r smsChatRepo) ListByEvent(_ context.Context, eventID int64) ([]domain.SmsChatSummary, error) {
	var out []domain.SmsChatSummary
	err := r.s.view(func(st *state) error {
		counts := make(map[uuid.UUID]int)
		for _, c := range st.conns {
			counts[c.SmsChatID]++
		}
		for id, rec := range st.chats {
			if rec.eventID == eventID {
				out = append(out, domain.SmsChatSummary{ID: id, RelayNumber: rec.relay, ParticipantCount: counts[id], CreatedAt: rec.createdAt})
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r smsChatRepo) RelayNumbersForEvent(_ context.Context, eventID int64) ([]string, error) {
	set := make(map[string]bool)
	err := r.s.view(func(st *state) error {
		for _, rec := range st.chats {
			if rec.eventID == eventID {
				set[rec.relay] = true
			}
		}
		return nil
	})
	return keys(set), err
}

func (r smsChatRepo) RelayNumbersForUsers(_ context.Context, userNumbers []string) ([]string, error) {
	users := make(map[string]bool, len(userNumbers))
	for _, u := range userNumbers {
		users[u] = true
	}
	set := make(map[string]bool)
	err := r.s.view(func(st *state) error {
		for k := range st.conns {
			if users[k.user] {
				set[k.relay] = true
			}
		}
		return nil
	})
	return keys(set), err
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type blockListRepo struct{ s *Store }

func (r blockListRepo) IsBlocked(_ context.Context, eventID int64, number string) (bool, error) {
	var blocked bool
	err := r.s.view(func(st *state) error {
		for _, e := range st.blocklist {
			if e.EventID == eventID && e.Number == number {
				blocked = true
				return nil
			}
		}
		return nil
	})
	return blocked, err
}

func (r blockListRepo) Add(_ context.Context, entry *domain.BlockListEntry) (bool, error) {
	var inserted bool
	err := r.s.view(func(st *state) error {
		for _, e := range st.blocklist {
			if e.EventID == entry.EventID && e.Number == entry.Number {
				return nil
			}
		}
		entry.ID = st.id()
		st.blocklist[entry.ID] = *entry
		inserted = true
		return nil
	})
	return inserted, err
}

func (r blockListRepo) Remove(_ context.Context, eventID, entryID int64) (*domain.BlockListEntry, error) {
	var out *domain.BlockListEntry
	err := r.s.view(func(st *state) error {
		e, ok := st.blocklist[entryID]
		if !ok || e.EventID != eventID {
			return nil
		}
		delete(st.blocklist, entryID)
		out = &e
		return nil
	})
	return out, err
}

type auditLogRepo struct{ s *Store }

func (r auditLogRepo) Create(_ context.Context, entry *domain.AuditLogEntry) error {
	return r.s.view(func(st *state) error {
		entry.ID = st.id()
		st.audit = append(st.audit, *entry)
		return nil
	})
}

func (r auditLogRepo) GetByID(_ context.Context, eventID, id int64) (*domain.AuditLogEntry, error) {
	var out *domain.AuditLogEntry
	err := r.s.view(func(st *state) error {
		for _, e := range st.audit {
			if e.ID == id && e.EventID != nil && *e.EventID == eventID {
				e := e
				out = &e
				return nil
			}
		}
		return nil
	})
	return out, err
}

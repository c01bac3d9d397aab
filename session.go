package corvus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionInfo is the caller-supplied opaque payload plus the string key
// identifying one session. It is shared between all concurrent calls
// belonging to the same session id.
type SessionInfo struct {
	ID      string
	Payload any
}

// SessionFactory mints or retrieves session identity and opaque session
// state.
//
// GetSession on an unrecognized id never errors: it constructs a fresh
// SessionInfo for that key instead of failing the lookup. A stricter
// SessionFactory that rejects unknown ids is a valid implementation of
// this interface; corvus just doesn't ship one.
type SessionFactory interface {
	// CreateSession mints a brand new session id and its SessionInfo.
	CreateSession() (id string, info *SessionInfo)
	// GetSession retrieves or constructs the SessionInfo for an existing
	// id.
	GetSession(key string) *SessionInfo
}

// DefaultSessionFactory is the null factory: it always hands back the
// empty-string id and a unit-valued SessionInfo, i.e. it implements no
// real per-connection identity at all. It is the correct default for a
// HostedService that never distinguishes sessions (a Singleton service
// ignores SessionInfo entirely).
type DefaultSessionFactory struct{}

func (DefaultSessionFactory) CreateSession() (string, *SessionInfo) {
	return "", &SessionInfo{ID: "", Payload: struct{}{}}
}

func (DefaultSessionFactory) GetSession(key string) *SessionInfo {
	return &SessionInfo{ID: key, Payload: struct{}{}}
}

// UUIDSessionFactory mints real per-connection identity using
// github.com/google/uuid. Use this whenever a HostedService needs to
// tell sessions apart (any Session-scoped host).
type UUIDSessionFactory struct {
	// NewPayload optionally builds the SessionInfo.Payload for a freshly
	// minted session; nil means Payload stays nil.
	NewPayload func(id string) any
}

func (f UUIDSessionFactory) CreateSession() (string, *SessionInfo) {
	id := uuid.NewString()
	return id, f.sessionInfo(id)
}

func (f UUIDSessionFactory) GetSession(key string) *SessionInfo {
	return f.sessionInfo(key)
}

func (f UUIDSessionFactory) sessionInfo(id string) *SessionInfo {
	info := &SessionInfo{ID: id}
	if f.NewPayload != nil {
		info.Payload = f.NewPayload(id)
	}
	return info
}

// StoredSessionFactory mints real per-connection identity like
// UUIDSessionFactory, but additionally persists and hydrates the
// SessionInfo.Payload through a SessionStore, so a session's state
// survives the process that minted it and can be shared across host
// processes (see store/redis).
//
// GetSession on a key the Store has never seen still never errors: it
// falls back to NewPayload like UUIDSessionFactory, consistent with
// SessionFactory's contract.
type StoredSessionFactory struct {
	Store SessionStore
	// TTL is the Store entry's expiry; zero means the Store's own default
	// (SessionStore implementations are free to treat zero as "no
	// expiry").
	TTL time.Duration
	// NewPayload builds the payload for a freshly minted session. Nil
	// means a freshly minted session's Payload stays nil (and nothing is
	// written to the Store).
	NewPayload func(id string) any
	// NewLoaded reconstructs a Go value from the raw bytes read back from
	// the Store. Nil means hydration is skipped and GetSession always
	// falls back to NewPayload.
	NewLoaded func(data []byte) (any, error)
}

func (f StoredSessionFactory) CreateSession() (string, *SessionInfo) {
	id := uuid.NewString()
	var payload any
	if f.NewPayload != nil {
		payload = f.NewPayload(id)
	}
	if f.Store != nil && f.NewPayload != nil {
		if data, err := json.Marshal(payload); err == nil {
			_ = f.Store.Set(context.Background(), id, data, f.TTL)
		}
	}
	return id, &SessionInfo{ID: id, Payload: payload}
}

func (f StoredSessionFactory) GetSession(key string) *SessionInfo {
	if f.Store != nil && f.NewLoaded != nil {
		if data, err := f.Store.Get(context.Background(), key); err == nil {
			if payload, err := f.NewLoaded(data); err == nil {
				return &SessionInfo{ID: key, Payload: payload}
			}
		}
	}
	var payload any
	if f.NewPayload != nil {
		payload = f.NewPayload(key)
	}
	return &SessionInfo{ID: key, Payload: payload}
}

package session

import (
	"sync"

	"github.com/trezcool/silabo/core/user"
)

// State holds the Session in memory, rehydrated from the Store at startup.
// Every mutation is written through to the Store immediately so a restart
// resumes where the last run left off.
//
// State is safe for concurrent use. Subscribers are notified after each
// mutation with a snapshot of the new session; notifications run outside the
// lock, on the mutating goroutine.
//
// IsFetching is a single flag, not a counter: two overlapping operations will
// clobber each other and the last one to settle wins. This mirrors the
// behavior the UI was built against.
type State struct {
	mu    sync.RWMutex
	sess  Session
	store Store

	subMu sync.Mutex
	subs  map[int]func(Session)
	subID int
}

// NewState hydrates a State from the store.
func NewState(store Store) *State {
	return &State{
		sess:  store.Load(),
		store: store,
		subs:  make(map[int]func(Session)),
	}
}

// Session returns a snapshot of the current session.
func (st *State) Session() Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sess.clone()
}

// SetUser sets the account, derives IsAuthenticated and clears any error.
// Passing nil logs the session out in memory (the persisted record keeps the
// logged-out shape; use Logout to also remove it).
func (st *State) SetUser(acct *Account) {
	st.mutate(func(sess *Session) {
		if acct != nil {
			cp := *acct
			if cp.Roles == nil {
				cp.Roles = []user.Role{} // empty set, never nil
			}
			sess.User = &cp
		} else {
			sess.User = nil
		}
		sess.IsAuthenticated = sess.User != nil
		sess.Error = ""
	})
}

// SetFetching overwrites the in-flight flag.
func (st *State) SetFetching(fetching bool) {
	st.mutate(func(sess *Session) {
		sess.IsFetching = fetching
	})
}

// SetError overwrites the user-facing error message; "" clears it.
func (st *State) SetError(msg string) {
	st.mutate(func(sess *Session) {
		sess.Error = msg
	})
}

// Logout resets the session to defaults and removes the persisted record.
func (st *State) Logout() {
	st.mu.Lock()
	st.sess = Defaults()
	st.store.Clear()
	snapshot := st.sess
	st.mu.Unlock()
	st.notify(snapshot)
}

// Subscribe registers fn to be called with a session snapshot after every
// mutation. It returns an unsubscribe func.
func (st *State) Subscribe(fn func(Session)) (unsubscribe func()) {
	st.subMu.Lock()
	defer st.subMu.Unlock()
	st.subID++
	id := st.subID
	st.subs[id] = fn
	return func() {
		st.subMu.Lock()
		defer st.subMu.Unlock()
		delete(st.subs, id)
	}
}

func (st *State) mutate(fn func(*Session)) {
	st.mu.Lock()
	fn(&st.sess)
	st.store.Save(st.sess)
	snapshot := st.sess.clone()
	st.mu.Unlock()
	st.notify(snapshot)
}

func (st *State) notify(sess Session) {
	st.subMu.Lock()
	subs := make([]func(Session), 0, len(st.subs))
	for _, fn := range st.subs {
		subs = append(subs, fn)
	}
	st.subMu.Unlock()
	for _, fn := range subs {
		fn(sess.clone())
	}
}

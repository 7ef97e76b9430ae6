package session

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/trezcool/silabo/core"
)

// requiredFields are the keys a persisted record must carry to be trusted.
var requiredFields = []string{"user", "isAuthenticated", "isFetching", "error"}

type (
	// Store persists the session record between runs.
	//
	// Load never fails: a missing, unreadable or malformed record yields the
	// default logged-out session. Save is best-effort; storage may be
	// unavailable (read-only home, containers) and the session must keep
	// working in memory regardless.
	Store interface {
		Load() Session
		Save(sess Session)
		// Clear removes the record entirely. A cleared record and a saved
		// logged-out record are different things: only the former passes for
		// "never logged in".
		Clear()
		// Token is a convenience read of the persisted bearer token, "" if none.
		Token() string
	}

	fileStore struct {
		path   string
		logger core.Logger
	}
)

var _ Store = (*fileStore)(nil)

// NewFileStore persists the session as a single JSON blob at path.
func NewFileStore(path string, logger core.Logger) Store {
	return &fileStore{path: path, logger: logger}
}

func (fs *fileStore) Load() Session {
	data, err := ioutil.ReadFile(fs.path)
	if err != nil {
		return Defaults()
	}

	// validate the blob has all required fields before trusting it
	var raw map[string]json.RawMessage
	if err = json.Unmarshal(data, &raw); err != nil {
		fs.Clear()
		return Defaults()
	}
	for _, fld := range requiredFields {
		if _, ok := raw[fld]; !ok {
			fs.Clear()
			return Defaults()
		}
	}

	var sess Session
	if err = json.Unmarshal(data, &sess); err != nil {
		fs.Clear()
		return Defaults()
	}
	// the blob is external input: re-derive rather than trust the flag
	sess.IsAuthenticated = sess.User != nil
	return sess
}

func (fs *fileStore) Save(sess Session) {
	data, err := json.Marshal(sess)
	if err != nil {
		fs.logger.Error(fmt.Sprintf("saving session: %v", err), err)
		return
	}
	if err = os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		fs.logger.Error(fmt.Sprintf("saving session: %v", err), err)
		return
	}
	if err = ioutil.WriteFile(fs.path, data, 0o600); err != nil {
		fs.logger.Error(fmt.Sprintf("saving session: %v", err), err)
	}
}

func (fs *fileStore) Clear() {
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		fs.logger.Error(fmt.Sprintf("clearing session: %v", err), err)
	}
}

func (fs *fileStore) Token() string {
	if sess := fs.Load(); sess.User != nil {
		return sess.User.Token
	}
	return ""
}

package session

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/trezcool/silabo/core/user"
)

type testLogger struct{ t *testing.T }

func (l testLogger) Debug(msg string, args ...interface{}) { l.t.Logf("DEBUG: %s %v", msg, args) }
func (l testLogger) Info(msg string, args ...interface{})  { l.t.Logf("INFO: %s %v", msg, args) }
func (l testLogger) Warn(msg string, args ...interface{})  { l.t.Logf("WARN: %s %v", msg, args) }
func (l testLogger) Error(msg string, args ...interface{}) { l.t.Logf("ERROR: %s %v", msg, args) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.t.Fatalf("FATAL: %s %v", msg, args) }

func tempStore(t *testing.T) (Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authState.json")
	return NewFileStore(path, testLogger{t}), path
}

func testAccount() *Account {
	return &Account{
		ID:        "4790f34c-85a5-4454-ba65-53e0ab97a30f",
		FirstName: "Aza",
		LastName:  "Lolo",
		Email:     "aza@test.cd",
		Token:     "tok-123",
		Roles:     []user.Role{user.RoleProfessor},
	}
}

func TestFileStore_LoadDefaults(t *testing.T) {
	store, _ := tempStore(t)

	got := store.Load()
	if !reflect.DeepEqual(got, Defaults()) {
		t.Errorf("Load() = %+v, want defaults", got)
	}
	if store.Token() != "" {
		t.Errorf("Token() = %q, want empty", store.Token())
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	store, _ := tempStore(t)

	want := Session{User: testAccount(), IsAuthenticated: true}
	store.Save(want)

	got := store.Load()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
	if store.Token() != "tok-123" {
		t.Errorf("Token() = %q, want %q", store.Token(), "tok-123")
	}
}

func TestFileStore_CorruptRecovery(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{name: "invalid json", blob: "{lol"},
		{name: "not an object", blob: `"lol"`},
		{name: "empty object", blob: `{}`},
		{name: "missing user", blob: `{"isAuthenticated":false,"isFetching":false,"error":""}`},
		{name: "missing isAuthenticated", blob: `{"user":null,"isFetching":false,"error":""}`},
		{name: "missing isFetching", blob: `{"user":null,"isAuthenticated":false,"error":""}`},
		{name: "missing error", blob: `{"user":null,"isAuthenticated":false,"isFetching":false}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, path := tempStore(t)
			if err := ioutil.WriteFile(path, []byte(tt.blob), 0o600); err != nil {
				t.Fatalf("WriteFile() failed: %v", err)
			}

			got := store.Load()
			if !reflect.DeepEqual(got, Defaults()) {
				t.Errorf("Load() = %+v, want defaults", got)
			}
			// invalid records are discarded, not kept around
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Errorf("invalid record not cleared; stat err = %v", err)
			}
		})
	}
}

func TestFileStore_LoadRederivesIsAuthenticated(t *testing.T) {
	store, path := tempStore(t)

	// a tampered blob claiming authentication without a user
	blob := `{"user":null,"isAuthenticated":true,"isFetching":false,"error":""}`
	if err := ioutil.WriteFile(path, []byte(blob), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	if got := store.Load(); got.IsAuthenticated {
		t.Error("Load() trusted isAuthenticated from storage; want it derived from user")
	}
}

func TestFileStore_Clear(t *testing.T) {
	store, path := tempStore(t)

	store.Save(Session{User: testAccount(), IsAuthenticated: true})
	store.Clear()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Clear() left the record behind; stat err = %v", err)
	}
	// clearing an absent record is fine
	store.Clear()
}

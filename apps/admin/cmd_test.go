package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/trezcool/silabo/core/user"
	inmemdb "github.com/trezcool/silabo/storage/database/inmem"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	t.Helper()
	usrRepo = inmemdb.NewUserRepository()
	return &commandLine{usrRepo: usrRepo}
}

func createUser(t *testing.T, email string, roles []user.Role) user.User {
	t.Helper()
	usr := user.User{
		FirstName: "Awe",
		LastName:  "Lol",
		Email:     email,
		Roles:     roles,
	}
	usr.SetActive(true)
	if err := usr.SetPassword("initial-pwd"); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	usr, err := usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := createUser(t, "awe@test.cd", nil)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				if err != nil {
					t.Fatalf("GetUser() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("V3ry$ecret"), nil }

	if err := cli.run([]string{"admin", "adduser", "-email", "new@test.cd", "-first", "New", "-last", "Kid"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}
	usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{Email: "new@test.cd"})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if usr.IsAdmin() {
		t.Error("plain adduser granted admin")
	}
	if err = usr.CheckPassword("V3ry$ecret"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}

	// rerun with -admin updates the same account
	if err = cli.run([]string{"admin", "adduser", "-email", "new@test.cd", "-admin"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}
	usr, err = usrRepo.GetUser(context.Background(), user.GetFilter{Email: "new@test.cd"})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if !usr.IsAdmin() {
		t.Error("adduser -admin did not grant admin")
	}
	if usr.FirstName != "New" {
		t.Errorf("FirstName = %q, want %q", usr.FirstName, "New")
	}
}

func Test_commandLine_assignRole(t *testing.T) {
	cli := setup(t)

	usr := createUser(t, "prof@test.cd", []user.Role{user.RoleStudent})

	tests := []cliTest{
		{name: "missing role", args: []string{"assignrole", "-email", usr.Email}, wantErr: errHelp},
		{name: "unknown role", args: []string{"assignrole", "-email", usr.Email, "-role", "Janitor"}, wantErrStr: `unknown role "Janitor"`},
		{name: "user not found", args: []string{"assignrole", "-email", "lol@test.cd", "-role", "Professor"}, wantErr: user.ErrNotFound},
		{name: "grant", args: []string{"assignrole", "-email", usr.Email, "-role", "Professor"}},
		{name: "grant again is a no-op", args: []string{"assignrole", "-email", usr.Email, "-role", "Professor"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error = %q, wantErrStr %q", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
				return
			}

			refreshedUsr, gErr := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			if gErr != nil {
				t.Fatalf("GetUser() failed: %v", gErr)
			}
			if !refreshedUsr.IsProfessor() {
				t.Errorf("roles = %v, want Professor granted", refreshedUsr.Roles)
			}
			if !refreshedUsr.IsStudent() {
				t.Errorf("roles = %v, want Student kept", refreshedUsr.Roles)
			}
			if got := len(refreshedUsr.Roles); got != 2 {
				t.Errorf("len(roles) = %d, want 2", got)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s requires a VERSION argument", command)
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to requires a VERSION argument"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

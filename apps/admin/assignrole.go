package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/silabo/core"
	"github.com/trezcool/silabo/core/user"
)

func (cli *commandLine) assignRole(email string, role user.Role) error {
	if !user.ValidRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}

	ctx := context.Background()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if usr.HasRole(role) {
		return nil
	}
	usr.Roles = append(usr.Roles, role)
	usr.UpdatedAt = time.Now().UTC()
	if _, err := cli.usrRepo.UpdateUser(ctx, usr, nil); err != nil {
		return err
	}
	return nil
}

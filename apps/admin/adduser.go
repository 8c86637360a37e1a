package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-quiz/core"
	"github.com/trezcool/masomo-quiz/core/user"
)

var (
	errClassRequired = errors.New("students must be enrolled in a class: use -class")

	cliRoles = map[string]string{
		"admin":   user.RoleAdminOwner,
		"teacher": user.RoleTeacher,
		"student": user.RoleStudent,
	}
)

type newCLIUser struct {
	name     string
	username string
	email    string
	role     string
	classID  string
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(nu newCLIUser, pwd string) error {
	ctx := context.Background()
	uname := core.CleanString(nu.username, true /* lower */)
	email := core.CleanString(nu.email, true /* lower */)

	lookup := uname
	if lookup == "" {
		lookup = email
	}
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: lookup})
	exists := err == nil
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return err
	}

	now := time.Now().UTC()
	if !exists {
		usr = user.User{Username: uname, Email: email, CreatedAt: now}
	}
	if name := core.CleanString(nu.name); name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = lookup
	}
	usr.Roles = []string{nu.role}
	usr.ClassID = core.CleanString(nu.classID)
	usr.IsActive = true
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	return err
}

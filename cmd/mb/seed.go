package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/managebug/managebug/internal/identity"
	"github.com/managebug/managebug/internal/storage/sqlite"
	"github.com/managebug/managebug/internal/types"
	"github.com/managebug/managebug/internal/workflow"
)

// seedFile is the YAML shape accepted by `mb seed`.
type seedFile struct {
	Users []struct {
		Email    string     `yaml:"email"`
		Name     string     `yaml:"name"`
		Role     types.Role `yaml:"role"`
		Password string     `yaml:"password"`
	} `yaml:"users"`
	Projects []struct {
		Name    string   `yaml:"name"`
		Detail  string   `yaml:"detail"`
		Logo    string   `yaml:"logo"`
		Manager string   `yaml:"manager"` // email
		Members []string `yaml:"members"` // emails
	} `yaml:"projects"`
}

var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Load users and projects from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var seed seedFile
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return fmt.Errorf("parse seed file: %w", err)
		}

		store, err := sqlite.New(ctx, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() { _ = store.Close() }()

		byEmail := map[string]*types.User{}
		for _, u := range seed.Users {
			hash, err := identity.HashPassword(u.Password)
			if err != nil {
				return fmt.Errorf("user %s: %w", u.Email, err)
			}
			now := time.Now()
			user := &types.User{
				ID:           uuid.NewString(),
				Email:        u.Email,
				Name:         u.Name,
				Role:         u.Role,
				PasswordHash: hash,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := user.Validate(); err != nil {
				return fmt.Errorf("user %s: %w", u.Email, err)
			}
			if err := store.CreateUser(ctx, user); err != nil {
				return err
			}
			byEmail[user.Email] = user
			color.Green("created user %s (%s)", user.Email, user.Role)
		}

		engine := workflow.New(store, nil)
		for _, p := range seed.Projects {
			manager, ok := byEmail[p.Manager]
			if !ok {
				return fmt.Errorf("project %q: unknown manager %q", p.Name, p.Manager)
			}
			project, err := engine.CreateProject(ctx, manager, p.Name, p.Detail, p.Logo)
			if err != nil {
				return err
			}
			for _, email := range p.Members {
				member, ok := byEmail[email]
				if !ok {
					return fmt.Errorf("project %q: unknown member %q", p.Name, email)
				}
				if err := engine.AddMember(ctx, manager, project.ID, member.ID); err != nil {
					return err
				}
			}
			color.Green("created project %s with %d members", project.Name, len(p.Members)+1)
		}
		return nil
	},
}

package main

import (
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ozark-survey/cavedb/internal/model"
	"github.com/ozark-survey/cavedb/internal/store"
)

var grantsCmd = &cobra.Command{
	Use:   "grants",
	Short: "Manage permission grants",
}

// grantSeed mirrors one entry of the YAML seed file. county_id and cave_id
// are mutually exclusive; both empty means account-wide.
type grantSeed struct {
	UserID    uuid.UUID  `yaml:"user_id"`
	AccountID uuid.UUID  `yaml:"account_id"`
	Key       string     `yaml:"key"`
	CountyID  *uuid.UUID `yaml:"county_id,omitempty"`
	CaveID    *uuid.UUID `yaml:"cave_id,omitempty"`
}

var grantsSeedCmd = &cobra.Command{
	Use:   "seed <grants.yaml>",
	Short: "Load permission grants from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		var doc struct {
			Grants []grantSeed `yaml:"grants"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return eris.Wrap(err, "parse grant seed file")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		writer, ok := st.(store.GrantWriter)
		if !ok {
			return eris.Errorf("store driver %s does not support grant seeding", cfg.Store.Driver)
		}

		for i, seed := range doc.Grants {
			key := model.PermissionKey(seed.Key)
			if !key.Valid() {
				return eris.Errorf("grant %d: unknown permission key %q", i, seed.Key)
			}
			scope, err := model.NewScope(seed.CountyID, seed.CaveID)
			if err != nil {
				return eris.Wrapf(err, "grant %d", i)
			}
			grant := model.PermissionGrant{
				UserID:    seed.UserID,
				AccountID: seed.AccountID,
				Key:       key,
				Scope:     scope,
			}
			if err := writer.PutGrant(ctx, grant); err != nil {
				return err
			}
		}

		zap.L().Info("grants seeded", zap.Int("count", len(doc.Grants)))
		return nil
	},
}

func init() {
	grantsCmd.AddCommand(grantsSeedCmd)
	rootCmd.AddCommand(grantsCmd)
}

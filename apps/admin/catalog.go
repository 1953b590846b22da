package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kozihub/kozi/core/group"
	"github.com/kozihub/kozi/core/region"
	sqlxrepos "github.com/kozihub/kozi/storage/database/sqlx"
)

func (cli *commandLine) addRegion(id, name, tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("unknown time zone %q", tz)
	}
	return sqlxrepos.UpsertRegion(context.Background(), cli.db, region.Region{ID: id, Name: name, TZ: tz})
}

func (cli *commandLine) addGroup(id, name, short string) error {
	return sqlxrepos.UpsertGroup(context.Background(), cli.db, group.Group{ID: id, Name: name, Short: short})
}

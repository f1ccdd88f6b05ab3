package main

import (
	"context"
	"log"

	"Albumy/internal/repository/mysql"
	"Albumy/internal/service"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
)

var initFlags = map[string]cobraflags.Flag{
	configFlag: configFlagDef(),
}

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create tables and seed the standard roles",
		RunE:  initCommand,
	}
	cobraflags.RegisterMap(cmd, initFlags)
	return cmd
}

func initCommand(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, initFlags[configFlag].GetString())
	if err != nil {
		return err
	}
	defer a.close()

	if err := mysql.Run(ctx, a.db, func(uow *mysql.UnitOfWork) error {
		return service.InitRoles(ctx, uow)
	}); err != nil {
		return err
	}
	log.Println("roles initialized")
	return nil
}

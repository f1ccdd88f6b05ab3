package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"Albumy/internal/repository/mysql"
	"Albumy/internal/service"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
)

const (
	userFlag    = "user"
	followFlag  = "follow"
	photoFlag   = "photo"
	tagFlag     = "tag"
	collectFlag = "collect"
	commentFlag = "comment"
	seedFlag    = "seed"
)

func countFlag(name, value, usage string) cobraflags.Flag {
	return &cobraflags.StringFlag{Name: name, Value: value, Usage: usage}
}

var forgeFlags = map[string]cobraflags.Flag{
	configFlag:  configFlagDef(),
	userFlag:    countFlag(userFlag, "10", "Number of users"),
	followFlag:  countFlag(followFlag, "30", "Number of follows"),
	photoFlag:   countFlag(photoFlag, "30", "Number of photos"),
	tagFlag:     countFlag(tagFlag, "20", "Number of tags"),
	collectFlag: countFlag(collectFlag, "50", "Number of collects"),
	commentFlag: countFlag(commentFlag, "100", "Number of comments"),
	seedFlag:    countFlag(seedFlag, "", "Random seed, empty for current time"),
}

func newForgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forge",
		Short: "Generate fake data for development",
		RunE:  forgeCommand,
	}
	cobraflags.RegisterMap(cmd, forgeFlags)
	return cmd
}

func forgeCount(name string) (int, error) {
	n, err := strconv.Atoi(forgeFlags[name].GetString())
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid --%s: %q", name, forgeFlags[name].GetString())
	}
	return n, nil
}

func forgeCommand(_ *cobra.Command, _ []string) error {
	var counts service.ForgeCounts
	for name, dst := range map[string]*int{
		userFlag:    &counts.Users,
		followFlag:  &counts.Follows,
		photoFlag:   &counts.Photos,
		tagFlag:     &counts.Tags,
		collectFlag: &counts.Collects,
		commentFlag: &counts.Comments,
	} {
		n, err := forgeCount(name)
		if err != nil {
			return err
		}
		*dst = n
	}
	seed := time.Now().UnixNano()
	if s := forgeFlags[seedFlag].GetString(); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid --%s: %q", seedFlag, s)
		}
		seed = v
	}

	ctx := context.Background()
	a, err := newApp(ctx, forgeFlags[configFlag].GetString())
	if err != nil {
		return err
	}
	defer a.close()

	if err := mysql.Run(ctx, a.db, func(uow *mysql.UnitOfWork) error {
		return service.InitRoles(ctx, uow)
	}); err != nil {
		return err
	}

	f := service.NewForger(a.db, a.accounts, a.follows, a.collects, a.photos, a.comments, seed)
	log.Println("generating the administrator...")
	if _, err := f.Admin(ctx, a.cfg.Albumy.AdminEmail); err != nil {
		return fmt.Errorf("forge admin: %w", err)
	}
	log.Printf("generating %+v...", counts)
	if err := f.Run(ctx, counts); err != nil {
		return err
	}
	log.Println("done")
	return nil
}

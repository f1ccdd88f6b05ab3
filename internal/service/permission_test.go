package service

import (
	"context"
	"testing"

	"Albumy/internal/model"
	"Albumy/internal/repository/mysql"

	qt "github.com/frankban/quicktest"
)

func TestInitRolesIdempotent(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	ctx := context.Background()

	// 人为破坏权限后再次初始化应恢复
	c.Assert(env.db.Model(&model.Role{}).Where("name = ?", model.RoleUser).
		Update("permissions", model.PermFollow).Error, qt.IsNil)
	env.mustRun(c, func(uow *mysql.UnitOfWork) error { return InitRoles(ctx, uow) })
	env.mustRun(c, func(uow *mysql.UnitOfWork) error { return InitRoles(ctx, uow) })

	c.Assert(env.countRows(c, &model.Role{}, ""), qt.Equals, int64(len(model.CanonicalRoles)))

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		roles, err := uow.Roles().List(ctx)
		c.Assert(err, qt.IsNil)
		for _, r := range roles {
			spec := model.CanonicalRoles[r.Level]
			c.Assert(r.Name, qt.Equals, spec.Name)
			c.Assert(r.Permissions, qt.Equals, spec.Permissions)
		}
		return nil
	})
}

func TestCan(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	user := env.createUser(c, "alice")

	c.Assert(Can(user, "UPLOAD"), qt.IsTrue)
	c.Assert(Can(user, "COMMENT"), qt.IsTrue)
	c.Assert(Can(user, "MODERATE"), qt.IsFalse)
	c.Assert(Can(user, "TELEPORT"), qt.IsFalse)
	c.Assert(Can(&model.User{}, "FOLLOW"), qt.IsFalse)

	env.withRole(c, user, model.RoleLocked)
	c.Assert(Can(user, "FOLLOW"), qt.IsTrue)
	c.Assert(Can(user, "UPLOAD"), qt.IsFalse)

	c.Assert(require(user, model.PermComment), qt.Satisfies, func(err error) bool {
		return IsCode(err, ErrorCodeForbidden)
	})
}

func TestAdminEmailGetsAdministratorRole(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	var admin *model.User
	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		var err error
		admin, err = env.accounts.CreateUser(context.Background(), uow, RegisterInput{
			Name: "Admin", Email: "Admin@HelloFlask.com", Username: "admin", Password: testPassword,
		}, true)
		return err
	})
	c.Assert(admin.IsAdmin(), qt.IsTrue)
	c.Assert(admin.Level(), qt.Equals, 3)
	c.Assert(Can(admin, "ADMINISTER"), qt.IsTrue)

	user := env.createUser(c, "bob")
	c.Assert(user.IsAdmin(), qt.IsFalse)
	c.Assert(user.Role.Name, qt.Equals, model.RoleUser)
}

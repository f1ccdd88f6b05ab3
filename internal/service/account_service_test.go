package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"Albumy/internal/model"
	"Albumy/internal/pkg"
	"Albumy/internal/repository/mysql"
	"Albumy/internal/testutils"

	qt "github.com/frankban/quicktest"
)

func tokenFromLink(c *qt.C, msg pkg.Message) string {
	c.Helper()
	start := strings.Index(msg.HTML, "?token=")
	c.Assert(start >= 0, qt.IsTrue, qt.Commentf("no token link in %q", msg.HTML))
	rest := msg.HTML[start+len("?token="):]
	end := strings.IndexAny(rest, "\"'< ")
	if end >= 0 {
		rest = rest[:end]
	}
	tok, err := url.QueryUnescape(rest)
	c.Assert(err, qt.IsNil)
	return tok
}

func TestCreateUserSelfFollowAndAvatar(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	user := env.createUser(c, "alice")

	c.Assert(user.Active, qt.IsTrue)
	c.Assert(user.Locked, qt.IsFalse)
	c.Assert(user.ReceiveFollowNotification, qt.IsTrue)
	c.Assert(user.PublicCollections, qt.IsTrue)
	c.Assert(user.AvatarS, qt.Not(qt.Equals), "")
	for _, key := range []string{user.AvatarS, user.AvatarM, user.AvatarL} {
		_, err := env.store.Open(context.Background(), key)
		c.Assert(err, qt.IsNil)
	}

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		ok, err := env.follows.IsFollowing(context.Background(), uow, user.ID, user.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsTrue)
		counts, err := env.follows.Counts(context.Background(), uow, user.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(counts, qt.Equals, FollowCounts{})
		return nil
	})
}

func TestCreateUserDuplicates(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	env.createUser(c, "alice")

	err := env.run(func(uow *mysql.UnitOfWork) error {
		_, err := env.accounts.CreateUser(context.Background(), uow, RegisterInput{
			Name: "x", Email: "ALICE@example.com", Username: "other", Password: testPassword,
		}, true)
		return err
	})
	c.Assert(IsCode(err, ErrorCodeValidation), qt.IsTrue)

	err = env.run(func(uow *mysql.UnitOfWork) error {
		_, err := env.accounts.CreateUser(context.Background(), uow, RegisterInput{
			Name: "x", Email: "new@example.com", Username: "alice", Password: testPassword,
		}, true)
		return err
	})
	c.Assert(IsCode(err, ErrorCodeValidation), qt.IsTrue)
	c.Assert(env.countRows(c, &model.User{}, ""), qt.Equals, int64(1))
}

func TestRegisterSendsConfirmAfterCommit(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	ctx := context.Background()

	// 回滚时不发邮件
	err := env.run(func(uow *mysql.UnitOfWork) error {
		if _, err := env.accounts.Register(ctx, uow, RegisterInput{
			Name: "Carol", Email: "carol@example.com", Username: "carol", Password: testPassword,
		}); err != nil {
			return err
		}
		return NewValidationError("abort")
	})
	c.Assert(err, qt.ErrorMatches, "abort")
	c.Assert(env.queue.sent(), qt.HasLen, 0)

	var user *model.User
	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		var err error
		user, err = env.accounts.Register(ctx, uow, RegisterInput{
			Name: "Carol", Email: "carol@example.com", Username: "carol", Password: testPassword,
		})
		return err
	})
	c.Assert(user.Confirmed, qt.IsFalse)
	msgs := env.queue.sent()
	c.Assert(msgs, qt.HasLen, 1)
	c.Assert(msgs[0].To, qt.Equals, "carol@example.com")

	tok := tokenFromLink(c, msgs[0])
	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		st, err := env.accounts.Confirm(ctx, uow, user, tok)
		c.Assert(err, qt.IsNil)
		c.Assert(st.Changed, qt.IsTrue)
		st, err = env.accounts.Confirm(ctx, uow, user, tok)
		c.Assert(err, qt.IsNil)
		c.Assert(st.Changed, qt.IsFalse)
		return nil
	})
	c.Assert(env.reload(c, user.ID).Confirmed, qt.IsTrue)
}

func TestConfirmRejectsBadTokens(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	ctx := context.Background()
	var alice, bob *model.User
	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		var err error
		alice, err = env.accounts.CreateUser(ctx, uow, RegisterInput{Name: "a", Email: "a@example.com", Username: "a", Password: testPassword}, false)
		if err != nil {
			return err
		}
		bob, err = env.accounts.CreateUser(ctx, uow, RegisterInput{Name: "b", Email: "b@example.com", Username: "b", Password: testPassword}, false)
		return err
	})

	wrongUser, err := env.tokens.GenerateActionToken(bob.ID, pkg.OpConfirm, "")
	c.Assert(err, qt.IsNil)
	wrongOp, err := env.tokens.GenerateActionToken(alice.ID, pkg.OpResetPassword, "")
	c.Assert(err, qt.IsNil)

	for _, tok := range []string{"garbage", wrongUser, wrongOp, wrongOp + "x"} {
		env.mustRun(c, func(uow *mysql.UnitOfWork) error {
			_, err := env.accounts.Confirm(ctx, uow, alice, tok)
			c.Assert(IsCode(err, ErrorCodeToken), qt.IsTrue)
			return nil
		})
	}
	c.Assert(env.reload(c, alice.ID).Confirmed, qt.IsFalse)
}

func TestLoginLogoutRefresh(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(c, "alice")

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		_, err := env.accounts.Login(ctx, uow, "alice@example.com", "wrong-password")
		c.Assert(IsCode(err, ErrorCodeUnauthorized), qt.IsTrue)
		_, err = env.accounts.Login(ctx, uow, "nobody@example.com", testPassword)
		c.Assert(IsCode(err, ErrorCodeUnauthorized), qt.IsTrue)

		res, err := env.accounts.Login(ctx, uow, "ALICE@example.com", testPassword)
		c.Assert(err, qt.IsNil)
		c.Assert(res.Warning, qt.Equals, "")
		stored, err := env.sessions.GetUserToken(ctx, user.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(stored, qt.Equals, res.Pair.AccessToken)

		pair, err := env.accounts.Refresh(ctx, uow, res.Pair.RefreshToken)
		c.Assert(err, qt.IsNil)
		stored, err = env.sessions.GetUserToken(ctx, user.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(stored, qt.Equals, pair.AccessToken)

		_, err = env.accounts.Refresh(ctx, uow, "bad")
		c.Assert(IsCode(err, ErrorCodeUnauthorized), qt.IsTrue)
		return nil
	})

	c.Assert(env.accounts.Logout(ctx, user.ID), qt.IsNil)
	_, err := env.sessions.GetUserToken(ctx, user.ID)
	c.Assert(err, qt.ErrorIs, ErrSessionNotFound)
}

func TestLoginBlockedAndLocked(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(c, "alice")

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		user.Locked = true
		return uow.Users().Save(ctx, user)
	})
	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		res, err := env.accounts.Login(ctx, uow, "alice@example.com", testPassword)
		c.Assert(err, qt.IsNil)
		c.Assert(res.Warning, qt.Not(qt.Equals), "")
		return nil
	})

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		user.Active = false
		return uow.Users().Save(ctx, user)
	})
	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		// 被封禁的用户可以通过认证，但不能登录
		u, err := env.accounts.Authenticate(ctx, uow, "alice@example.com", testPassword)
		c.Assert(err, qt.IsNil)
		c.Assert(u, qt.IsNotNil)
		_, err = env.accounts.Login(ctx, uow, "alice@example.com", testPassword)
		c.Assert(IsCode(err, ErrorCodeForbidden), qt.IsTrue)
		return nil
	})
}

func TestPasswordReset(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(c, "alice")
	c.Assert(env.sessions.AddUserToken(ctx, user.ID, "tok", time.Minute), qt.IsNil)

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		c.Assert(env.accounts.RequestPasswordReset(ctx, uow, "unknown@example.com"), qt.IsNil)
		return env.accounts.RequestPasswordReset(ctx, uow, "alice@example.com")
	})
	msgs := env.queue.sent()
	c.Assert(msgs, qt.HasLen, 1)
	tok := tokenFromLink(c, msgs[0])

	// 冷却期内再次请求被限流
	err := env.run(func(uow *mysql.UnitOfWork) error {
		return env.accounts.RequestPasswordReset(ctx, uow, "alice@example.com")
	})
	c.Assert(IsCode(err, ErrorCodeRateLimited), qt.IsTrue)

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		_, err := env.accounts.ResetPassword(ctx, uow, tok, "short")
		c.Assert(IsCode(err, ErrorCodeValidation), qt.IsTrue)
		ok, err := env.accounts.ResetPassword(ctx, uow, "garbage", "new-password-1")
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsFalse)
		ok, err = env.accounts.ResetPassword(ctx, uow, tok, "new-password-1")
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsTrue)
		return nil
	})
	c.Assert(env.reload(c, user.ID).ValidatePassword("new-password-1"), qt.IsTrue)
	_, err = env.sessions.GetUserToken(ctx, user.ID)
	c.Assert(err, qt.ErrorIs, ErrSessionNotFound)
}

func TestChangeEmail(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(c, "alice")
	env.createUser(c, "bob")

	err := env.run(func(uow *mysql.UnitOfWork) error {
		return env.accounts.RequestEmailChange(ctx, uow, alice, "bob@example.com")
	})
	c.Assert(IsCode(err, ErrorCodeValidation), qt.IsTrue)

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		return env.accounts.RequestEmailChange(ctx, uow, alice, "Alice2@Example.com")
	})
	msgs := env.queue.sent()
	c.Assert(msgs, qt.HasLen, 1)
	c.Assert(msgs[0].To, qt.Equals, "alice2@example.com")
	tok := tokenFromLink(c, msgs[0])

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		ok, err := env.accounts.ChangeEmail(ctx, uow, alice, tok)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsTrue)
		return nil
	})
	c.Assert(env.reload(c, alice.ID).Email, qt.Equals, "alice2@example.com")
}

func TestChangeEmailTakenAtRedemption(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(c, "alice")

	tok, err := env.tokens.GenerateActionToken(alice.ID, pkg.OpChangeEmail, "late@example.com")
	c.Assert(err, qt.IsNil)
	env.createUser(c, "late")

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		ok, err := env.accounts.ChangeEmail(ctx, uow, alice, tok)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsFalse)
		return nil
	})
	c.Assert(env.reload(c, alice.ID).Email, qt.Equals, "alice@example.com")
}

func TestChangePasswordAndProfile(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(c, "alice")
	env.createUser(c, "bob")

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		err := env.accounts.ChangePassword(ctx, uow, alice, "wrong", "new-password-1")
		c.Assert(IsCode(err, ErrorCodeValidation), qt.IsTrue)
		c.Assert(env.accounts.ChangePassword(ctx, uow, alice, testPassword, "new-password-1"), qt.IsNil)

		err = env.accounts.EditProfile(ctx, uow, alice, ProfileInput{Name: "A", Username: "bob"})
		c.Assert(IsCode(err, ErrorCodeValidation), qt.IsTrue)
		c.Assert(env.accounts.EditProfile(ctx, uow, alice, ProfileInput{
			Name: "Alice L", Username: "alice_l", Website: "https://a.example.com", Location: "Earth", Bio: "hi",
		}), qt.IsNil)
		c.Assert(env.accounts.UpdateNotificationSettings(ctx, uow, alice, NotificationSettings{Follow: false, Comment: true, Collect: false}), qt.IsNil)
		return env.accounts.UpdatePrivacy(ctx, uow, alice, false)
	})

	got := env.reload(c, alice.ID)
	c.Assert(got.ValidatePassword("new-password-1"), qt.IsTrue)
	c.Assert(got.Username, qt.Equals, "alice_l")
	c.Assert(got.Bio, qt.Equals, "hi")
	c.Assert(got.ReceiveFollowNotification, qt.IsFalse)
	c.Assert(got.ReceiveCommentNotification, qt.IsTrue)
	c.Assert(got.ReceiveCollectNotification, qt.IsFalse)
	c.Assert(got.PublicCollections, qt.IsFalse)

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		p, err := env.accounts.GetProfile(ctx, uow, "alice_l")
		c.Assert(err, qt.IsNil)
		c.Assert(p.User.ID, qt.Equals, alice.ID)
		_, err = env.accounts.GetProfile(ctx, uow, "alice")
		c.Assert(IsCode(err, ErrorCodeNotFound), qt.IsTrue)
		return nil
	})
}

func TestUploadAvatar(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(c, "alice")
	identicon := alice.AvatarL

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		return env.accounts.UploadAvatar(ctx, uow, alice, "me.png", testutils.PNG(t, 300, 200))
	})
	first := alice.AvatarL
	c.Assert(first, qt.Not(qt.Equals), identicon)
	c.Assert(alice.AvatarRaw, qt.Not(qt.Equals), "")

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		return env.accounts.UploadAvatar(ctx, uow, alice, "me2.png", testutils.PNG(t, 120, 120))
	})
	_, err := env.store.Open(ctx, first)
	c.Assert(err, qt.IsNotNil)
	_, err = env.store.Open(ctx, alice.AvatarL)
	c.Assert(err, qt.IsNil)

	err = env.run(func(uow *mysql.UnitOfWork) error {
		return env.accounts.UploadAvatar(ctx, uow, alice, "me.txt", []byte("nope"))
	})
	c.Assert(IsCode(err, ErrorCodeValidation), qt.IsTrue)
}

func TestDeleteAccountCascade(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(c, "alice")
	bob := env.createUser(c, "bob")
	alicePhoto := env.upload(c, alice)
	bobPhoto := env.upload(c, bob)

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		if _, err := env.follows.Follow(ctx, uow, alice, bob); err != nil {
			return err
		}
		if _, err := env.follows.Follow(ctx, uow, bob, alice); err != nil {
			return err
		}
		if _, err := env.collects.Collect(ctx, uow, alice, bobPhoto); err != nil {
			return err
		}
		if _, err := env.collects.Collect(ctx, uow, bob, alicePhoto); err != nil {
			return err
		}
		parent, err := env.comments.AddComment(ctx, uow, bobPhoto, alice, "nice", nil)
		if err != nil {
			return err
		}
		// bob 对 alice 评论的回复随之删除
		_, err = env.comments.AddComment(ctx, uow, bobPhoto, bob, "thanks", &parent.ID)
		return err
	})

	err := env.run(func(uow *mysql.UnitOfWork) error {
		return env.accounts.DeleteAccount(ctx, uow, alice, "wrong")
	})
	c.Assert(IsCode(err, ErrorCodeValidation), qt.IsTrue)

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		return env.accounts.DeleteAccount(ctx, uow, alice, testPassword)
	})

	c.Assert(env.countRows(c, &model.User{}, "id = ?", alice.ID), qt.Equals, int64(0))
	c.Assert(env.countRows(c, &model.Photo{}, "author_id = ?", alice.ID), qt.Equals, int64(0))
	c.Assert(env.countRows(c, &model.Comment{}, ""), qt.Equals, int64(0))
	c.Assert(env.countRows(c, &model.Collect{}, ""), qt.Equals, int64(0))
	c.Assert(env.countRows(c, &model.Follow{}, "follower_id = ? OR followed_id = ?", alice.ID, alice.ID), qt.Equals, int64(0))
	c.Assert(env.countRows(c, &model.Notification{}, "receiver_id = ?", alice.ID), qt.Equals, int64(0))
	c.Assert(env.countRows(c, &model.Follow{}, "follower_id = ? AND followed_id = ?", bob.ID, bob.ID), qt.Equals, int64(1))

	_, err = env.store.Open(ctx, alicePhoto.Filename)
	c.Assert(err, qt.IsNotNil)
	_, err = env.store.Open(ctx, alice.AvatarS)
	c.Assert(err, qt.IsNotNil)
	_, err = env.store.Open(ctx, bobPhoto.Filename)
	c.Assert(err, qt.IsNil)
}

func TestAvatarKeysSurviveUsernameReuse(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.createUser(c, "bob")

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		return env.accounts.EditProfile(ctx, uow, first, ProfileInput{Name: "Rob", Username: "rob"})
	})
	var second *model.User
	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		var err error
		second, err = env.accounts.CreateUser(ctx, uow, RegisterInput{
			Name:     "bob",
			Email:    "new-bob@example.com",
			Username: "bob",
			Password: testPassword,
		}, true)
		return err
	})
	c.Assert(second.AvatarS, qt.Not(qt.Equals), first.AvatarS)

	env.mustRun(c, func(uow *mysql.UnitOfWork) error {
		return env.accounts.DeleteAccount(ctx, uow, second, testPassword)
	})
	for _, key := range []string{first.AvatarS, first.AvatarM, first.AvatarL} {
		rc, err := env.store.Open(ctx, key)
		c.Assert(err, qt.IsNil)
		rc.Close()
	}
}

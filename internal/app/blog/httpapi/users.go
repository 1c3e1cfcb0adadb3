package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"blog.local/gee"
	"blog.local/internal/app/blog/repo"
	"blog.local/internal/platform/auth"
	"blog.local/internal/platform/httpmiddleware"
)

const msgBadCredentials = "Invalid username or password."

type loginView struct {
	layout
	Next     string
	Username string
	Error    string
}

func (p *pages) loginForm(ctx *gee.Context) {
	ctx.HTML(http.StatusOK, "login.html", loginView{
		layout: p.layout(ctx, "Sign in"),
		Next:   safeNext(ctx.Query("next")),
	})
}

func (p *pages) login(ctx *gee.Context) {
	username := ctx.PostForm("username")
	v := loginView{
		layout:   p.layout(ctx, "Sign in"),
		Next:     safeNext(ctx.PostForm("next")),
		Username: username,
	}

	user, err := p.deps.Users.Authenticate(ctx.Req.Context(), username, ctx.PostForm("password"))
	if err != nil {
		if errors.Is(err, repo.ErrBadCredentials) {
			v.Error = msgBadCredentials
			ctx.HTML(http.StatusUnauthorized, "login.html", v)
			return
		}
		slog.Error("authenticate failed", "err", err)
		v.Error = "Sign in is temporarily unavailable."
		ctx.HTML(http.StatusInternalServerError, "login.html", v)
		return
	}

	token, err := p.deps.Tokens.Sign(auth.Claims{
		UserID: strconv.FormatInt(user.ID, 10),
		Role:   user.Role,
		Name:   user.DisplayName,
	})
	if err != nil {
		slog.Error("sign token failed", "err", err)
		v.Error = "Sign in is temporarily unavailable."
		ctx.HTML(http.StatusInternalServerError, "login.html", v)
		return
	}

	ctx.SetCookie(&http.Cookie{
		Name:     httpmiddleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(p.deps.Tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   p.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	slog.Info("author signed in", "user_id", user.ID)
	ctx.Redirect(http.StatusSeeOther, v.Next)
}

func (p *pages) logout(ctx *gee.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     httpmiddleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	ctx.Redirect(http.StatusSeeOther, "/")
}

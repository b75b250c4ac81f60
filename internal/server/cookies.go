package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

const cookieName = "fbx_dash"

// cookieCodec binds the browser that performed the appliance login to the
// in-process session: mutating proxy routes require the signed cookie issued
// at login time.
type cookieCodec struct {
	sc *securecookie.SecureCookie
}

func newCookieCodec(hashKey []byte) *cookieCodec {
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(32)
	}
	return &cookieCodec{sc: securecookie.New(hashKey, nil)}
}

type browserSession struct {
	SID string `json:"sid"`
	Exp int64  `json:"exp"`
}

func (c *cookieCodec) issue(w http.ResponseWriter) (string, error) {
	sess := browserSession{SID: uuid.NewString(), Exp: time.Now().UTC().Add(24 * time.Hour).Unix()}
	val, err := c.sc.Encode(cookieName, sess)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name: cookieName, Value: val, Path: "/",
		HttpOnly: true, SameSite: http.SameSiteLaxMode,
		Expires: time.Unix(sess.Exp, 0),
	})
	return sess.SID, nil
}

func (c *cookieCodec) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "", Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode, MaxAge: -1})
}

func (c *cookieCodec) verify(r *http.Request) bool {
	ck, err := r.Cookie(cookieName)
	if err != nil {
		return false
	}
	var sess browserSession
	if err := c.sc.Decode(cookieName, ck.Value, &sess); err != nil {
		return false
	}
	return sess.SID != "" && time.Now().UTC().Unix() <= sess.Exp
}

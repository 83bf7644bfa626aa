package api

import (
	"net/http"

	"loungebackend/internal/middleware"
	"loungebackend/internal/security"
)

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	s.openSession(w, r, false)
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	s.openSession(w, r, true)
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request, signUp bool) {
	var creds security.Credentials
	if err := middleware.ParseJSONRequest(r, &creds); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	sess, err := s.sessions.SignIn(creds, signUp)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.WriteAPISuccess(w, r, sess)
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	if sess, ok := middleware.GetSession(r.Context()); ok {
		s.sessions.SignOut(sess.Token)
	}
	middleware.WriteAPISuccess(w, r, map[string]bool{"signed_out": true})
}

package server

import (
	"net/http"
	"strconv"

	"github.com/adwatch/adwatch/errors"
	"github.com/adwatch/adwatch/store"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.issuer.Create()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeData(w, sess)
}

func (s *Server) handleSessionExists(w http.ResponseWriter, r *http.Request) {
	exists, err := s.store.SessionExists(r.URL.Query().Get("session_id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeData(w, exists)
}

func (s *Server) handleUpdatePushSub(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	pushSub, err := parsePushSub(values.Get("push_sub"))
	if err != nil {
		writeError(w, err.Error())
		return
	}

	found, err := s.store.UpdateClientPushSub(values.Get("session_id"), pushSub)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !found {
		writeError(w, "unknown session")
		return
	}
	writeData(w, nil)
}

func (s *Server) handleGetAdQueries(w http.ResponseWriter, r *http.Request) {
	results, err := s.store.AdQueries(r.URL.Query().Get("session_id"), nil)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	out := make([]adQueryJSON, 0, len(results))
	for _, q := range results {
		out = append(out, toAdQueryJSON(q))
	}
	writeData(w, out)
}

func (s *Server) handleGetAdQuery(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	id, err := parseAdQueryID(values)
	if err != nil {
		writeError(w, err.Error())
		return
	}

	results, err := s.store.AdQueries(values.Get("session_id"), &id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if len(results) == 0 {
		writeError(w, "no such ad query")
		return
	}
	writeData(w, toAdQueryJSON(results[0]))
}

func (s *Server) handleGetAdQueryStatus(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	id, err := parseAdQueryID(values)
	if err != nil {
		writeError(w, err.Error())
		return
	}

	status, err := s.store.AdQueryStatus(values.Get("session_id"), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeData(w, toAdQueryStatusJSON(*status))
}

func (s *Server) handleInsertAdQuery(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q, err := parseAdQueryRequest(values, false)
	if err != nil {
		writeError(w, err.Error())
		return
	}

	subSessionID := ""
	if q.Subscribed {
		subSessionID = values.Get("session_id")
	}

	id, err := s.store.InsertAdQuery(q.AdQueryBase, subSessionID)
	if errors.Is(err, store.ErrUnknownSession) {
		writeError(w, "unknown session")
		return
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeData(w, strconv.FormatInt(id, 10))
}

func (s *Server) handleUpdateAdQuery(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q, err := parseAdQueryRequest(values, true)
	if err != nil {
		writeError(w, err.Error())
		return
	}

	result, err := s.store.UpdateAdQuery(q, values.Get("session_id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeData(w, result)
}

func (s *Server) handleDeleteAdQuery(w http.ResponseWriter, r *http.Request) {
	id, err := parseAdQueryID(r.URL.Query())
	if err != nil {
		writeError(w, err.Error())
		return
	}

	deleted, err := s.store.DeleteAdQuery(id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeData(w, deleted)
}

func (s *Server) handleListAdContent(w http.ResponseWriter, r *http.Request) {
	id, err := parseAdQueryID(r.URL.Query())
	if err != nil {
		writeError(w, err.Error())
		return
	}

	ads, err := s.store.ListAdContent(id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeData(w, toAdContentJSON(ads))
}

func (s *Server) handleToggleSubscription(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	id, err := parseAdQueryID(values)
	if err != nil {
		writeError(w, err.Error())
		return
	}
	subscribed, err := parseSubscribed(values)
	if err != nil {
		writeError(w, err.Error())
		return
	}

	ok, err := s.store.ToggleAdQuerySubscription(id, values.Get("session_id"), subscribed)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !ok {
		writeError(w, "unknown session or ad query")
		return
	}
	writeData(w, nil)
}

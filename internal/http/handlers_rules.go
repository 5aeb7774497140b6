package http

import (
	"context"
	"net/http"

	"scadenze/internal/core"
	applog "scadenze/internal/log"
)

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.rules.ListRules(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(newList(rules)).Write(w)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.rules.GetRule(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(rule).Write(w)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	draft, err := req.toRule()
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}

	rule, err := s.rules.CreateRule(r.Context(), draft)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	s.records.LogRuleChanged(r.Context(), applog.OpCreate, rule)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/rules/"+rule.ID).
		Body(rule).
		Write(w)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	draft, err := req.toRule()
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}

	rule, err := s.rules.UpdateRule(r.Context(), r.PathValue("id"), draft)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	s.records.LogRuleChanged(r.Context(), applog.OpUpdate, rule)
	NewJSONResponse().Body(rule).Write(w)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.rules.DeleteRule(r.Context(), id); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	s.records.LogRuleChanged(r.Context(), applog.OpDelete, core.RecurrenceRule{ID: id})
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	overrides, err := s.rules.ListRuleOverrides(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(newList(overrides)).Write(w)
}

// handleAmendOverride replaces the amend values of one occurrence. Fields
// left out of the body go back to the computed values.
func (s *Server) handleAmendOverride(w http.ResponseWriter, r *http.Request) {
	original, err := pathDate(r, "date")
	if err != nil {
		s.fail(w, r, applog.OpAmend, err)
		return
	}
	var req overrideRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, applog.OpAmend, err)
		return
	}
	edit, err := req.toEdit()
	if err != nil {
		s.fail(w, r, applog.OpAmend, err)
		return
	}

	ruleID := r.PathValue("id")
	o, err := s.rules.AmendOverride(r.Context(), ruleID, original, edit)
	if err != nil {
		s.fail(w, r, applog.OpAmend, err)
		return
	}
	s.records.LogOverrideChanged(r.Context(), applog.OpAmend, ruleID, original)
	NewJSONResponse().Body(o).Write(w)
}

func (s *Server) handleRevertOverride(w http.ResponseWriter, r *http.Request) {
	s.overrideAction(w, r, applog.OpRevert, s.rules.RevertOverride)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	s.overrideAction(w, r, applog.OpSkip, s.rules.SkipOccurrence)
}

func (s *Server) handleUnskip(w http.ResponseWriter, r *http.Request) {
	s.overrideAction(w, r, applog.OpUnskip, s.rules.UnskipOccurrence)
}

func (s *Server) overrideAction(w http.ResponseWriter, r *http.Request, op string, action func(ctx context.Context, ruleID string, original core.Date) error) {
	original, err := pathDate(r, "date")
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	ruleID := r.PathValue("id")
	if err := action(r.Context(), ruleID, original); err != nil {
		s.fail(w, r, op, err)
		return
	}
	s.records.LogOverrideChanged(r.Context(), op, ruleID, original)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

package http

import (
	"net/http"

	applog "scadenze/internal/log"
)

func (s *Server) handleListOneOffs(w http.ResponseWriter, r *http.Request) {
	items, err := s.rules.ListOneOffs(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(newList(items)).Write(w)
}

func (s *Server) handleCreateOneOff(w http.ResponseWriter, r *http.Request) {
	var req oneOffRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	draft, err := req.toItem()
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}

	item, err := s.rules.CreateOneOff(r.Context(), draft)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRules).InfoContext(r.Context(), "One-off item created",
		applog.FieldOneOffID, item.ID,
		applog.FieldDate, item.DueDate,
		applog.FieldAmount, item.Amount)
	NewJSONResponse().Status(http.StatusCreated).Body(item).Write(w)
}

// handleMarkPaid settles a one-off item. The body is optional; without it
// the item is settled today against its own account.
func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	var req paidRequest
	if err := DecodeJSON(w, r, &req, true); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}

	item, err := s.rules.MarkOneOffPaid(r.Context(), r.PathValue("id"), req.AccountID, req.SettledDate)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(item).Write(w)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.rules.ListAccounts(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(newList(accounts)).Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}

	acc, err := s.rules.CreateAccount(r.Context(), req.toAccount())
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(acc).Write(w)
}

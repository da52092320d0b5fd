package stubserver

import (
	"context"
	"encoding/base32"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lichtbild/fotoadmin/api"
)

func withAccount(ctx context.Context, acct Account) context.Context {
	return context.WithValue(ctx, accountKey, acct)
}

func accountFrom(ctx context.Context) Account {
	acct, _ := ctx.Value(accountKey).(Account)
	return acct
}

func base32NoPad(b []byte) string {
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b)
}

// Canned sample data. The console's screens are plain fetch-and-render;
// all the stub owes them is a stable, well-typed payload.

var sampleTime = time.Date(2026, 5, 14, 10, 30, 0, 0, time.UTC)

func (s *Server) listPhotos(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []api.Photo{
		{ID: 1, Filename: "kw20_hochzeit_001.jpg", TakenAt: sampleTime, LocationID: 1},
		{ID: 2, Filename: "kw20_hochzeit_002.jpg", TakenAt: sampleTime.Add(time.Minute), LocationID: 1},
	})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []api.Order{
		{ID: 11, CustomerID: 2, Status: "open", CreatedAt: sampleTime},
		{ID: 12, CustomerID: 3, Status: "delivered", CreatedAt: sampleTime.Add(-48 * time.Hour)},
	})
}

func (s *Server) listShares(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []api.Share{
		{ID: 21, Token: "abc123", PhotoIDs: []int64{1, 2}, ExpiresAt: sampleTime.Add(720 * time.Hour)},
	})
}

func (s *Server) revokeShare(w http.ResponseWriter, r *http.Request) {
	if _, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64); err != nil {
		writeError(w, http.StatusBadRequest, "invalid share id")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listLocations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []api.Location{
		{ID: 1, Name: "Schlosspark Pavillon"},
		{ID: 2, Name: "Studio Nord"},
	})
}

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []api.Customer{
		{ID: 2, Name: "Familie Sommer", Email: "sommer@example.com"},
		{ID: 3, Name: "Familie Winter", Email: "winter@example.com"},
	})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]api.User, 0, len(s.accounts))
	for _, a := range s.accounts {
		users = append(users, api.User{ID: a.ID, Email: a.Email, Role: a.Role})
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var update api.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for email, a := range s.accounts {
		if a.ID != id {
			continue
		}
		if update.Role != nil {
			a.Role = *update.Role
		}
		if update.Email != nil {
			delete(s.accounts, email)
			a.Email = *update.Email
		}
		s.accounts[a.Email] = a
		writeJSON(w, http.StatusOK, api.User{ID: a.ID, Email: a.Email, Role: a.Role})
		return
	}
	writeError(w, http.StatusNotFound, "user not found")
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for email, a := range s.accounts {
		if a.ID == id {
			delete(s.accounts, email)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "user not found")
}

var nextExportID atomic.Int64

func (s *Server) listExports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []api.ExportJob{
		{ID: 31, Status: "done", CreatedAt: sampleTime},
		{ID: 32, Status: "running", CreatedAt: sampleTime.Add(time.Hour)},
	})
}

func (s *Server) createExport(w http.ResponseWriter, r *http.Request) {
	var req api.ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	writeJSON(w, http.StatusCreated, api.ExportJob{
		ID:        100 + nextExportID.Add(1),
		Status:    "queued",
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Server) publicShare(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeError(w, http.StatusNotFound, "share not found")
		return
	}
	writeJSON(w, http.StatusOK, api.PublicShare{
		Token: token,
		Photos: []api.Photo{
			{ID: 1, Filename: "kw20_hochzeit_001.jpg", TakenAt: sampleTime},
		},
	})
}

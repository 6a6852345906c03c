package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/zombor/warranty-tracker/internal/dashboard"
	"github.com/zombor/warranty-tracker/internal/identity"
	"github.com/zombor/warranty-tracker/internal/warranty"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var persist *warranty.PersistenceError
	switch {
	case errors.Is(err, warranty.ErrAuthRequired),
		errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, warranty.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, warranty.ErrDuplicateEntry),
		errors.Is(err, identity.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, identity.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, identity.ErrInvalidInput),
		errors.Is(err, identity.ErrUnknownProvider):
		return http.StatusBadRequest
	case errors.As(err, &persist):
		if persist.AccessDenied() {
			return http.StatusForbidden
		}
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// remoteHost strips the port so sign-in throttling is per address
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// handleRegister creates a password account
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			slog.Error("Error registering account", "error", err)
			writeError(w, status, "Could not create the account")
			return
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// handleSignIn signs in with email and password
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.auth.SignIn(r.Context(), req.Email, req.Password, remoteHost(r))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleFederated signs in with an assertion from an external provider
func (s *Server) handleFederated(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider  string `json:"provider"`
		Assertion string `json:"assertion"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.auth.SignInFederated(r.Context(), req.Provider, req.Assertion)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleSignOut revokes the session and abandons its workflow
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	id, err := s.auth.SignOut(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.workflows.Drop(id.SessionID)
	slog.Info("Signed out", "owner_id", id.OwnerID)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the current identity
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	writeJSON(w, http.StatusOK, id)
}

// handleListDevices returns the caller's devices as display cards
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.ListDevices(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		slog.Error("Error listing devices", "error", err)
		writeError(w, statusFor(err), "Could not load devices")
		return
	}
	writeJSON(w, http.StatusOK, dashboard.Cards(devices, s.now()))
}

// handleDashboard returns the counters and the nearest expirations
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.ListDevices(r.Context(), "")
	if err != nil {
		slog.Error("Error listing devices", "error", err)
		writeError(w, statusFor(err), "Could not load devices")
		return
	}

	now := s.now()
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":    dashboard.Compute(devices, now),
		"upcoming": dashboard.Upcoming(devices, now, dashboard.UpcomingLimit),
	})
}

// handleDeleteDevice deletes a device
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.devices.DeleteDevice(r.Context(), id); err != nil {
		status := statusFor(err)
		if status == http.StatusNotFound {
			writeError(w, status, "Device not found")
			return
		}
		slog.Error("Error deleting device", "id", id, "error", err)
		writeError(w, status, "Error deleting device")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetBill returns the bill image stored with a device
func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.devices.GetBillFile(r.Context(), r.PathValue("id"))
	if err != nil {
		status := statusFor(err)
		if status != http.StatusNotFound {
			slog.Error("Error reading bill", "error", err)
		}
		writeError(w, status, "Bill not found")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleExportDevices streams the caller's devices as a spreadsheet
func (s *Server) handleExportDevices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="devices.xlsx"`)
	if err := s.devices.ExportDevices(r.Context(), w); err != nil {
		slog.Error("Error exporting devices", "error", err)
		w.Header().Del("Content-Disposition")
		writeError(w, statusFor(err), "Could not export devices")
	}
}

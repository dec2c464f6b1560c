// File: api/server.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"election-backend/models"
	"election-backend/service"
)

// Server wires the voting service onto HTTP. Handlers stay thin: decode
// the request, resolve the caller's role, call the service, map the
// error onto a status.
type Server struct {
	svc  *service.VotingService
	auth *Authenticator
	mux  *http.ServeMux
}

type errorResponse struct {
	Error string `json:"error"`
}

type CastVoteRequest struct {
	Pin    string        `json:"pin"`
	Ballot models.Ballot `json:"ballot"`
	House  string        `json:"house"`
}

type ValidatePinRequest struct {
	Pin string `json:"pin"`
}

type EnableEncryptionRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type DecryptResultsRequest struct {
	Password string `json:"password"`
}

type ToggleVotingRequest struct {
	VotingOpen *bool `json:"votingOpen"`
}

type ResetAllRequest struct {
	ConfirmCode string `json:"confirmCode"`
}

func NewServer(svc *service.VotingService, auth *Authenticator) *Server {
	s := &Server{
		svc:  svc,
		auth: auth,
		mux:  http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/candidates", s.handleCandidates)
	s.mux.HandleFunc("POST /api/vote", s.handleCastVote)
	s.mux.HandleFunc("POST /api/pin/validate", s.handleValidatePin)
	s.mux.HandleFunc("POST /api/pin/generate", s.requireAdmin(s.handleGeneratePin))
	s.mux.HandleFunc("GET /api/pin/current", s.requireAdmin(s.handleCurrentPin))
	s.mux.HandleFunc("GET /api/admin/tally", s.requireDean(s.handleTally))
	s.mux.HandleFunc("GET /api/admin/encryption", s.requireDean(s.handleEncryptionStatus))
	s.mux.HandleFunc("POST /api/admin/encryption", s.requireDean(s.handleEnableEncryption))
	s.mux.HandleFunc("POST /api/admin/decrypt-results", s.requireDean(s.handleDecryptResults))
	s.mux.HandleFunc("POST /api/admin/toggle-voting", s.requireDean(s.handleToggleVoting))
	s.mux.HandleFunc("POST /api/admin/reset-all", s.requireDean(s.handleResetAll))
	s.mux.HandleFunc("GET /api/admin/config", s.requireAdmin(s.handleConfigStatus))
	s.mux.HandleFunc("GET /api/admin/votes", s.requireAdmin(s.handleVoteStats))
	s.mux.HandleFunc("GET /api/admin/export", s.requireDean(s.handleExport))
	s.mux.HandleFunc("GET /api/admin/metrics", s.requireAdmin(s.handleMetrics))
	s.mux.HandleFunc("POST /api/seed-candidates", s.requireDean(s.handleSeedCandidates))

	return s
}

// Handler exposes the route table for http.Server and tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) requireDean(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.Resolve(r).IsDean() {
			writeError(w, http.StatusUnauthorized, "Unauthorized - Dean access required")
			return
		}
		next(w, r)
	}
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.Resolve(r).IsAdmin() {
			writeError(w, http.StatusUnauthorized, "Unauthorized - Admin access required")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var ballotErr *service.BallotError
	switch {
	case errors.Is(err, service.ErrMalformedPin),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrPasswordMismatch),
		errors.Is(err, service.ErrEncryptionEnabled),
		errors.Is(err, service.ErrVotesExist),
		errors.Is(err, service.ErrBadConfirmCode),
		errors.As(err, &ballotErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidPin),
		errors.Is(err, service.ErrPinUsed),
		errors.Is(err, service.ErrInvalidPassword):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrVotingClosed):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotInitialized):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrEncryptionDisabled),
		errors.Is(err, service.ErrEncryptionFailed):
		// Misconfiguration; operator intervention required. Never
		// downgraded to an ignorable client error.
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		log.Printf("Internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	grouped, err := s.svc.CandidateDirectory()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"positions":  models.Positions,
		"candidates": grouped,
	})
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := s.svc.Submit(r.Context(), req.Pin, req.Ballot, req.House); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Vote recorded successfully",
	})
}

func (s *Server) handleValidatePin(w http.ResponseWriter, r *http.Request) {
	var req ValidatePinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := s.svc.PinGate().Validate(req.Pin); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (s *Server) handleGeneratePin(w http.ResponseWriter, r *http.Request) {
	pin, generatedAt, err := s.svc.PinGate().Generate()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	log.Printf("[ADMIN] Manual PIN generation: %s", service.MaskPin(pin))
	writeJSON(w, http.StatusOK, map[string]any{
		"pin":         pin,
		"generatedAt": generatedAt,
	})
}

func (s *Server) handleCurrentPin(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.svc.CurrentPin()
	if err != nil {
		if errors.Is(err, service.ErrNotInitialized) {
			writeJSON(w, http.StatusOK, map[string]any{
				"pin":     nil,
				"message": "No PIN generated yet. Please initialize the system.",
			})
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"currentPin":     cfg.CurrentPin,
		"pinGeneratedAt": cfg.PinGeneratedAt,
		"pinUsed":        cfg.PinUsed,
		"votingOpen":     cfg.VotingOpen,
	})
}

func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	position := r.URL.Query().Get("position")
	house := r.URL.Query().Get("house")

	candidates, err := s.svc.Tally().RankedResults(position, house)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	positions := make([]string, 0, len(models.Positions))
	for _, p := range models.Positions {
		positions = append(positions, p.ID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"candidates":      candidates,
		"positions":       positions,
		"houses":          models.Houses,
		"totalCandidates": len(candidates),
	})
}

func (s *Server) handleEncryptionStatus(w http.ResponseWriter, r *http.Request) {
	enabled, enabledAt, err := s.svc.EncryptionStatus()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"encryptionEnabled":   enabled,
		"encryptionEnabledAt": enabledAt,
	})
}

func (s *Server) handleEnableEncryption(w http.ResponseWriter, r *http.Request) {
	var req EnableEncryptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	enabledAt, err := s.svc.EnableEncryption(req.Password, req.ConfirmPassword)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"message":             "Encryption enabled successfully. All future votes will be encrypted.",
		"encryptionEnabled":   true,
		"encryptionEnabledAt": enabledAt,
	})
}

func (s *Server) handleDecryptResults(w http.ResponseWriter, r *http.Request) {
	var req DecryptResultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "Password is required")
		return
	}

	start := time.Now()
	tally, err := s.svc.Tally().DecryptAndTally(r.Context(), req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.svc.Metrics().RecordDecryptTally(time.Since(start))

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"results":        tally.Results,
		"totalVotes":     tally.TotalVotes,
		"decryptedVotes": tally.DecryptedVotes,
		"errorCount":     tally.ErrorCount,
		"decryptedAt":    tally.DecryptedAt,
	})
}

func (s *Server) handleToggleVoting(w http.ResponseWriter, r *http.Request) {
	var req ToggleVotingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VotingOpen == nil {
		writeError(w, http.StatusBadRequest, "votingOpen must be a boolean")
		return
	}

	if err := s.svc.SetVotingOpen(*req.VotingOpen); err != nil {
		if errors.Is(err, service.ErrEncryptionDisabled) {
			// Turning voting on without encryption is a client mistake
			// here, not a server misconfiguration.
			writeError(w, http.StatusBadRequest, "cannot open voting until encryption is enabled")
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "votingOpen": *req.VotingOpen})
}

func (s *Server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	var req ResetAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	deleted, err := s.svc.ResetAll(req.ConfirmCode)
	if err != nil {
		if errors.Is(err, service.ErrBadConfirmCode) {
			writeError(w, http.StatusBadRequest, "Invalid confirmation code. Type RESET to confirm.")
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      fmt.Sprintf("Full reset complete. Deleted %d votes. Candidate counts reset to zero.", deleted),
		"deletedVotes": deleted,
	})
}

func (s *Server) handleConfigStatus(w http.ResponseWriter, r *http.Request) {
	votingOpen, totalVotes, err := s.svc.ConfigStatus()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"votingOpen": votingOpen,
		"totalVotes": totalVotes,
	})
}

func (s *Server) handleVoteStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=election_results_%d.csv", time.Now().UnixMilli()))
	if err := s.svc.ExportCSV(w); err != nil {
		log.Printf("Export failed: %v", err)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Metrics().Snapshot())
}

func (s *Server) handleSeedCandidates(w http.ResponseWriter, r *http.Request) {
	var roster models.Roster
	if err := json.NewDecoder(r.Body).Decode(&roster); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid roster payload")
		return
	}

	count, err := s.svc.SeedFromRoster(roster)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Seeded %d candidates", count),
		"count":   count,
	})
}

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	airdropservice "dropvest/contexts/token-distribution/airdrop-service"
	airdroperrors "dropvest/contexts/token-distribution/airdrop-service/domain/errors"
	airdrophttp "dropvest/contexts/token-distribution/airdrop-service/transport/http"
	vestingservice "dropvest/contexts/token-distribution/vesting-service"
	vestingerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
	vestinghttp "dropvest/contexts/token-distribution/vesting-service/transport/http"
	ledgerv1 "dropvest/contracts/gen/ledger/v1"
	_ "dropvest/internal/platform/httpserver/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Server struct {
	router  chi.Router
	srv     *http.Server
	logger  *slog.Logger
	addr    string
	auth    AdminAuthenticator
	airdrop airdropservice.Module
	vesting vestingservice.Module
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func New(
	airdrop airdropservice.Module,
	vesting vestingservice.Module,
	auth AdminAuthenticator,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		router:  chi.NewRouter(),
		logger:  logger,
		addr:    addr,
		auth:    auth,
		airdrop: airdrop,
		vesting: vesting,
	}
	s.registerRoutes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/v1/airdrops", func(r chi.Router) {
		r.With(s.requireAdmin).Post("/", s.handleCreateCampaign)
		r.Route("/{campaign_id}", func(r chi.Router) {
			r.Get("/", s.handleGetCampaign)
			r.Post("/claims", s.handleClaim)
			r.Get("/claims/{index}", s.handleGetClaimStatus)
			r.Get("/addresses/{address}/claims", s.handleListClaims)
			r.With(s.requireAdmin).Post("/end", s.handleEndCampaign)
			r.With(s.requireAdmin).Post("/emergency-withdraw", s.handleEmergencyWithdraw)
		})
	})

	r.Route("/v1/vesting", func(r chi.Router) {
		r.With(s.requireAdmin).Post("/schedules", s.handleCreateSchedule)
		r.Get("/schedules/{schedule_id}", s.handleGetSchedule)
		r.With(s.requireAdmin).Post("/positions", s.handleCreatePosition)
		r.Get("/positions/{beneficiary}", s.handleGetPosition)
		r.Post("/positions/{beneficiary}/release", s.handleRelease)
		r.Get("/locks", s.handleListLocks)
		r.Post("/locks/{lock_id}/withdraw", s.handleWithdrawLock)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request served",
			"event", "http_request_served",
			"module", "internal/platform/httpserver",
			"layer", "transport",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(started).String(),
		)
	})
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req airdrophttp.CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAirdropError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.airdrop.Handler.CreateCampaignHandler(r.Context(), adminIDFrom(r.Context()), req)
	if err != nil {
		writeAirdropDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	resp, err := s.airdrop.Handler.GetCampaignHandler(r.Context(), chi.URLParam(r, "campaign_id"))
	if err != nil {
		writeAirdropDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req airdrophttp.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAirdropError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.airdrop.Handler.ClaimHandler(
		r.Context(),
		chi.URLParam(r, "campaign_id"),
		req,
		r.Header.Get("Idempotency-Key"),
	)
	if err != nil {
		writeAirdropDomainError(w, err)
		return
	}
	status := http.StatusOK
	if !resp.Settled {
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleGetClaimStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.airdrop.Handler.GetClaimStatusHandler(
		r.Context(),
		chi.URLParam(r, "campaign_id"),
		chi.URLParam(r, "index"),
	)
	if err != nil {
		writeAirdropDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListClaims(w http.ResponseWriter, r *http.Request) {
	resp, err := s.airdrop.Handler.ListClaimsHandler(
		r.Context(),
		chi.URLParam(r, "campaign_id"),
		chi.URLParam(r, "address"),
	)
	if err != nil {
		writeAirdropDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEndCampaign(w http.ResponseWriter, r *http.Request) {
	resp, err := s.airdrop.Handler.EndCampaignHandler(r.Context(), adminIDFrom(r.Context()), chi.URLParam(r, "campaign_id"))
	if err != nil {
		writeAirdropDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	resp, err := s.airdrop.Handler.EmergencyWithdrawHandler(r.Context(), adminIDFrom(r.Context()), chi.URLParam(r, "campaign_id"))
	if err != nil {
		writeAirdropDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req vestinghttp.CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVestingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.vesting.Handler.CreateScheduleHandler(r.Context(), req)
	if err != nil {
		writeVestingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	resp, err := s.vesting.Handler.GetScheduleHandler(r.Context(), chi.URLParam(r, "schedule_id"))
	if err != nil {
		writeVestingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreatePosition(w http.ResponseWriter, r *http.Request) {
	var req vestinghttp.CreatePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVestingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.vesting.Handler.CreatePositionHandler(r.Context(), adminIDFrom(r.Context()), req)
	if err != nil {
		writeVestingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	resp, err := s.vesting.Handler.GetPositionHandler(r.Context(), chi.URLParam(r, "beneficiary"))
	if err != nil {
		writeVestingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	resp, err := s.vesting.Handler.ReleaseHandler(r.Context(), chi.URLParam(r, "beneficiary"))
	if err != nil {
		writeVestingDomainError(w, err)
		return
	}
	status := http.StatusOK
	if !resp.Settled {
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListLocks(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if owner == "" {
		writeVestingError(w, http.StatusBadRequest, "missing_owner", "owner query parameter is required")
		return
	}
	resp, err := s.vesting.Handler.ListLocksHandler(r.Context(), owner)
	if err != nil {
		writeVestingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWithdrawLock(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if owner == "" {
		writeVestingError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	resp, err := s.vesting.Handler.WithdrawLockHandler(r.Context(), owner, chi.URLParam(r, "lock_id"))
	if err != nil {
		writeVestingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeAirdropDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, airdroperrors.ErrCampaignNotFound):
		writeAirdropError(w, http.StatusNotFound, "campaign_not_found", err.Error())
	case errors.Is(err, airdroperrors.ErrClaimNotFound):
		writeAirdropError(w, http.StatusNotFound, "claim_not_found", err.Error())
	case errors.Is(err, airdroperrors.ErrEnded):
		writeAirdropError(w, http.StatusGone, "ended", err.Error())
	case errors.Is(err, airdroperrors.ErrIndexOutOfRange):
		writeAirdropError(w, http.StatusBadRequest, "index_out_of_range", err.Error())
	case errors.Is(err, airdroperrors.ErrAlreadyClaimed):
		writeAirdropError(w, http.StatusConflict, "already_claimed", err.Error())
	case errors.Is(err, airdroperrors.ErrAllocationExceeded):
		writeAirdropError(w, http.StatusConflict, "allocation_exceeded", err.Error())
	case errors.Is(err, airdroperrors.ErrInvalidProof):
		writeAirdropError(w, http.StatusUnprocessableEntity, "invalid_proof", err.Error())
	case errors.Is(err, airdroperrors.ErrAlreadyHasPosition):
		writeAirdropError(w, http.StatusConflict, "already_has_position", err.Error())
	case errors.Is(err, airdroperrors.ErrInvalidLockDuration):
		writeAirdropError(w, http.StatusBadRequest, "invalid_lock_duration", err.Error())
	case errors.Is(err, airdroperrors.ErrCampaignWithdrawn):
		writeAirdropError(w, http.StatusConflict, "campaign_withdrawn", err.Error())
	case errors.Is(err, airdroperrors.ErrIdempotencyKeyConflict),
		errors.Is(err, airdroperrors.ErrDuplicateRequestID):
		writeAirdropError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, airdroperrors.ErrForbidden):
		writeAirdropError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, airdroperrors.ErrInvalidCampaign),
		errors.Is(err, airdroperrors.ErrInvalidClaimRequest),
		errors.Is(err, airdroperrors.ErrInvalidAddress),
		errors.Is(err, airdroperrors.ErrInvalidHash):
		writeAirdropError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, airdroperrors.ErrArithmeticOverflow):
		writeAirdropError(w, http.StatusUnprocessableEntity, "arithmetic_overflow", err.Error())
	case errors.Is(err, ledgerv1.ErrInsufficientFunds):
		writeAirdropError(w, http.StatusUnprocessableEntity, "insufficient_funds", err.Error())
	default:
		writeAirdropError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeVestingDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vestingerrors.ErrScheduleNotFound),
		errors.Is(err, vestingerrors.ErrNoDefaultSchedule):
		writeVestingError(w, http.StatusNotFound, "schedule_not_found", err.Error())
	case errors.Is(err, vestingerrors.ErrPositionNotFound):
		writeVestingError(w, http.StatusNotFound, "position_not_found", err.Error())
	case errors.Is(err, vestingerrors.ErrLockNotFound):
		writeVestingError(w, http.StatusNotFound, "lock_not_found", err.Error())
	case errors.Is(err, vestingerrors.ErrNotStarted):
		writeVestingError(w, http.StatusUnprocessableEntity, "not_started", err.Error())
	case errors.Is(err, vestingerrors.ErrCompleted):
		writeVestingError(w, http.StatusUnprocessableEntity, "completed", err.Error())
	case errors.Is(err, vestingerrors.ErrNothingToClaim):
		writeVestingError(w, http.StatusUnprocessableEntity, "nothing_to_claim", err.Error())
	case errors.Is(err, vestingerrors.ErrLockActive):
		writeVestingError(w, http.StatusConflict, "lock_active", err.Error())
	case errors.Is(err, vestingerrors.ErrLockWithdrawn):
		writeVestingError(w, http.StatusConflict, "lock_withdrawn", err.Error())
	case errors.Is(err, vestingerrors.ErrAlreadyHasPosition):
		writeVestingError(w, http.StatusConflict, "already_has_position", err.Error())
	case errors.Is(err, vestingerrors.ErrDefaultScheduleExists),
		errors.Is(err, vestingerrors.ErrScheduleExists),
		errors.Is(err, vestingerrors.ErrLockExists),
		errors.Is(err, vestingerrors.ErrConcurrentRelease):
		writeVestingError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, vestingerrors.ErrForbidden):
		writeVestingError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, vestingerrors.ErrInvalidSchedule),
		errors.Is(err, vestingerrors.ErrInvalidPosition),
		errors.Is(err, vestingerrors.ErrInvalidLock):
		writeVestingError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, vestingerrors.ErrArithmeticOverflow):
		writeVestingError(w, http.StatusUnprocessableEntity, "arithmetic_overflow", err.Error())
	case errors.Is(err, ledgerv1.ErrInsufficientFunds):
		writeVestingError(w, http.StatusUnprocessableEntity, "insufficient_funds", err.Error())
	default:
		writeVestingError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeAirdropError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, airdrophttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeVestingError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, vestinghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

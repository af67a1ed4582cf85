package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	airdropservice "dropvest/contexts/token-distribution/airdrop-service"
	"dropvest/contexts/token-distribution/airdrop-service/domain/entities"
	airdrophttp "dropvest/contexts/token-distribution/airdrop-service/transport/http"
	vestingservice "dropvest/contexts/token-distribution/vesting-service"
	vestinghttp "dropvest/contexts/token-distribution/vesting-service/transport/http"
	"dropvest/internal/merkletree"
	"dropvest/internal/platform/bridge"
	"dropvest/internal/platform/ledger"
)

const testSecret = "test-admin-secret"

type testServer struct {
	server  *Server
	ledger  *ledger.Memory
	tree    *merkletree.Tree
	entries []merkletree.Entry
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hostLedger := ledger.NewMemory("DROP", nil)
	if err := hostLedger.Fund(context.Background(), "treasury", 1_000_000, "seed:treasury"); err != nil {
		t.Fatalf("fund treasury: %v", err)
	}
	vesting := vestingservice.NewInMemoryModule(hostLedger, nil, nil)
	gateway := bridge.NewVesting(vesting)
	airdrop := airdropservice.NewInMemoryModule(hostLedger, gateway, gateway, nil, nil)

	auth := NewAdminAuthenticator(testSecret)
	token, err := auth.Sign("admin-1", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign admin token: %v", err)
	}

	entries := make([]merkletree.Entry, 0, 3)
	for i := 0; i < 3; i++ {
		addr, _ := entities.ParseAddress(fmt.Sprintf("0x%x", 0xfeed+i))
		entries = append(entries, merkletree.Entry{Address: addr, Amount: uint64(1000 * (i + 1)), Index: uint64(i)})
	}
	tree, err := merkletree.Build(entries, nil)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}

	return &testServer{
		server:  New(airdrop, vesting, auth, nil, ""),
		ledger:  hostLedger,
		tree:    tree,
		entries: entries,
		token:   token,
	}
}

func (ts *testServer) do(t *testing.T, method string, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) admin() map[string]string {
	return map[string]string{"Authorization": "Bearer " + ts.token}
}

func (ts *testServer) createCampaign(t *testing.T) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/v1/airdrops", airdrophttp.CreateCampaignRequest{
		CampaignID:         "camp-1",
		MerkleRoot:         ts.tree.Root().String(),
		TreasuryAccount:    "treasury",
		TokenDenom:         "DROP",
		TotalAllocation:    strconv.FormatUint(ts.tree.TotalAllocation(), 10),
		MaxIndex:           strconv.FormatUint(ts.tree.MaxIndex(), 10),
		EndTime:            time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		LockMinDurationSec: 60,
		LockMaxDurationSec: 3600,
	}, ts.admin())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create campaign: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func (ts *testServer) claimBody(t *testing.T, index int) airdrophttp.ClaimRequest {
	t.Helper()
	proof, err := ts.tree.Proof(uint64(index))
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	encoded := make([]string, 0, len(proof))
	for _, h := range proof {
		encoded = append(encoded, h.String())
	}
	entry := ts.entries[index]
	return airdrophttp.ClaimRequest{
		Address: entry.Address.String(),
		Amount:  strconv.FormatUint(entry.Amount, 10),
		Index:   strconv.Itoa(index),
		Proof:   encoded,
		Variant: "full",
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Code
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/airdrops", airdrophttp.CreateCampaignRequest{}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	forged, _ := NewAdminAuthenticator("other-secret").Sign("admin-1", time.Hour, time.Now())
	rec = ts.do(t, http.MethodPost, "/v1/vesting/schedules", vestinghttp.CreateScheduleRequest{}, map[string]string{
		"Authorization": "Bearer " + forged,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a foreign signature, got %d", rec.Code)
	}

	expired, _ := NewAdminAuthenticator(testSecret).Sign("admin-1", time.Minute, time.Now().Add(-2*time.Hour))
	rec = ts.do(t, http.MethodPost, "/v1/vesting/schedules", vestinghttp.CreateScheduleRequest{}, map[string]string{
		"Authorization": "Bearer " + expired,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an expired token, got %d", rec.Code)
	}
}

func TestClaimFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.createCampaign(t)

	rec := ts.do(t, http.MethodPost, "/v1/airdrops/camp-1/claims", ts.claimBody(t, 1), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("claim: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var claim airdrophttp.ClaimResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &claim); err != nil {
		t.Fatalf("decode claim: %v", err)
	}
	if !claim.Settled || claim.Item.Payout.Received != "2000" {
		t.Fatalf("unexpected claim response %+v", claim)
	}
	if ts.ledger.Balance(ts.entries[1].Address.String()) != 2000 {
		t.Fatalf("expected claimant funded")
	}

	again := ts.claimBody(t, 1)
	again.RequestID = "retry"
	rec = ts.do(t, http.MethodPost, "/v1/airdrops/camp-1/claims", again, map[string]string{"Idempotency-Key": "second"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on a double claim, got %d", rec.Code)
	}

	tampered := ts.claimBody(t, 2)
	tampered.Amount = "2999"
	rec = ts.do(t, http.MethodPost, "/v1/airdrops/camp-1/claims", tampered, nil)
	if rec.Code != http.StatusUnprocessableEntity || decodeError(t, rec) != "invalid_proof" {
		t.Fatalf("expected 422 invalid_proof, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/v1/airdrops/camp-1/claims/1", nil, nil)
	var status airdrophttp.ClaimStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil || !status.Claimed {
		t.Fatalf("expected index 1 claimed, got %s", rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/v1/airdrops/missing", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown campaign, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/v1/airdrops/camp-1/end", nil, ts.admin())
	if rec.Code != http.StatusOK {
		t.Fatalf("end campaign: expected 200, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/v1/airdrops/camp-1/claims", ts.claimBody(t, 0), nil)
	if rec.Code != http.StatusGone {
		t.Fatalf("expected 410 after end, got %d", rec.Code)
	}
}

func TestVestingRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/vesting/schedules", vestinghttp.CreateScheduleRequest{
		ScheduleID:        "standard",
		TGEBasisPoints:    2000,
		CliffDurationSec:  3600,
		PeriodDurationSec: 3600,
		NumPeriods:        4,
	}, ts.admin())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create schedule: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/v1/vesting/positions", vestinghttp.CreatePositionRequest{
		Beneficiary:    "carol",
		TotalAmount:    "500",
		FundingAccount: "treasury",
	}, ts.admin())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create position: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/v1/vesting/positions/carol/release", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("release: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ts.ledger.Balance("carol") != 100 {
		t.Fatalf("expected tge of 100 released, got %d", ts.ledger.Balance("carol"))
	}
	rec = ts.do(t, http.MethodPost, "/v1/vesting/positions/carol/release", nil, nil)
	if rec.Code != http.StatusUnprocessableEntity || decodeError(t, rec) != "nothing_to_claim" {
		t.Fatalf("expected 422 nothing_to_claim, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/v1/vesting/positions/nobody", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing position, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/v1/vesting/schedules/default", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected default schedule, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/v1/vesting/locks", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without owner, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/v1/vesting/locks/lock-1/withdraw", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without X-User-Id, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/v1/vesting/locks/lock-1/withdraw", nil, map[string]string{"X-User-Id": "carol"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown lock, got %d", rec.Code)
	}
}

func TestAuthenticateRejectsNonAdminRole(t *testing.T) {
	auth := NewAdminAuthenticator(testSecret)
	if _, err := auth.Authenticate("token-without-scheme"); err != errMissingBearer {
		t.Fatalf("expected errMissingBearer, got %v", err)
	}
	if _, err := NewAdminAuthenticator("").Authenticate("Bearer x"); err != errAuthDisabled {
		t.Fatalf("expected errAuthDisabled, got %v", err)
	}
	token, _ := auth.Sign("", time.Hour, time.Now())
	if _, err := auth.Authenticate("Bearer " + token); err != errNotAdmin {
		t.Fatalf("expected errNotAdmin for an empty subject, got %v", err)
	}
}

func TestOversizedDurationsAreRejected(t *testing.T) {
	ts := newTestServer(t)
	ts.createCampaign(t)

	body := ts.claimBody(t, 0)
	body.Variant = "lock"
	body.LockDurationSec = 86400 + 1<<55
	rec := ts.do(t, http.MethodPost, "/v1/airdrops/camp-1/claims", body, nil)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec) != "invalid_request" {
		t.Fatalf("expected 400 invalid_request for a wrapping lock duration, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = ts.do(t, http.MethodGet, "/v1/airdrops/camp-1/claims/0", nil, nil)
	var status airdrophttp.ClaimStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil || status.Claimed {
		t.Fatalf("rejected claim must not consume the index, got %s", rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/v1/vesting/schedules", vestinghttp.CreateScheduleRequest{
		ScheduleID:        "huge",
		TGEBasisPoints:    1000,
		CliffDurationSec:  3600,
		PeriodDurationSec: 1 << 40,
		NumPeriods:        4,
	}, ts.admin())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unrepresentable period, got %d: %s", rec.Code, rec.Body.String())
	}
}

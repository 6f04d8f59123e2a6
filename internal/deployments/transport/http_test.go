package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/contradeploy/internal/deployments/domain"
)

// mockService implements Service for testing
type mockService struct {
	deployments map[string]*domain.Deployment
	lastFilter  domain.ListFilter
	lastPage    domain.PaginationParams
	listErr     error
}

func newMockService() *mockService {
	return &mockService{
		deployments: make(map[string]*domain.Deployment),
	}
}

func (m *mockService) add(d *domain.Deployment) {
	m.deployments[fmt.Sprintf("%d/%s", d.ChainID, strings.ToLower(d.Address))] = d
}

func (m *mockService) Get(ctx context.Context, chainID int64, address string) (*domain.Deployment, error) {
	if !strings.HasPrefix(address, "0x") {
		return nil, fmt.Errorf("%w: must start with 0x", domain.ErrInvalidAddress)
	}
	if d, ok := m.deployments[fmt.Sprintf("%d/%s", chainID, strings.ToLower(address))]; ok {
		return d, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockService) List(ctx context.Context, filter domain.ListFilter, pagination domain.PaginationParams) (*domain.ListResult, error) {
	m.lastFilter = filter
	m.lastPage = pagination
	if m.listErr != nil {
		return nil, m.listErr
	}
	var deployments []domain.Deployment
	for _, d := range m.deployments {
		deployments = append(deployments, *d)
	}
	return &domain.ListResult{Deployments: deployments, HasMore: true, NextCursor: "next"}, nil
}

func setupRouter(svc Service) *chi.Mux {
	r := chi.NewRouter()
	h := NewHandler(svc)
	r.Route("/deployments", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return r
}

func chainBattles() *domain.Deployment {
	return &domain.Deployment{
		ID:           "deploy-1",
		ContractName: "ChainBattles",
		Network:      "localhost",
		ChainID:      31337,
		Address:      "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		GasUsed:      1_500_000,
		CreatedAt:    time.Date(2022, 7, 14, 9, 30, 15, 0, time.UTC),
	}
}

func TestHandler_List(t *testing.T) {
	svc := newMockService()
	svc.add(chainBattles())
	router := setupRouter(svc)

	req := httptest.NewRequest("GET", "/deployments/?network=localhost&chain_id=31337&verified=false&limit=5&cursor=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp DeploymentListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "ChainBattles", resp.Data[0].ContractName)
	assert.Equal(t, int64(31337), resp.Data[0].ChainID)
	assert.Equal(t, Pagination{Limit: 5, HasMore: true, NextCursor: "next"}, resp.Pagination)

	assert.Equal(t, "localhost", svc.lastFilter.Network)
	assert.Equal(t, int64(31337), svc.lastFilter.ChainID)
	require.NotNil(t, svc.lastFilter.Verified)
	assert.False(t, *svc.lastFilter.Verified)
	assert.Equal(t, "abc", svc.lastPage.Cursor)
}

func TestHandler_List_Limits(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", defaultLimit},
		{"?limit=0", defaultLimit},
		{"?limit=1000", defaultLimit},
		{"?limit=abc", defaultLimit},
		{"?limit=100", 100},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			svc := newMockService()
			rec := httptest.NewRecorder()
			setupRouter(svc).ServeHTTP(rec, httptest.NewRequest("GET", "/deployments/"+tt.query, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, svc.lastPage.Limit)
		})
	}
}

func TestHandler_List_BadRequest(t *testing.T) {
	tests := []struct {
		name  string
		query string
		err   error
	}{
		{"chain id", "?chain_id=mumbai", nil},
		{"verified", "?verified=maybe", nil},
		{"cursor", "?cursor=zzz", domain.ErrInvalidCursor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newMockService()
			svc.listErr = tt.err
			rec := httptest.NewRecorder()
			setupRouter(svc).ServeHTTP(rec, httptest.NewRequest("GET", "/deployments/"+tt.query, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
		})
	}
}

func TestHandler_List_InternalError(t *testing.T) {
	svc := newMockService()
	svc.listErr = fmt.Errorf("database is locked")
	rec := httptest.NewRecorder()
	setupRouter(svc).ServeHTTP(rec, httptest.NewRequest("GET", "/deployments/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "locked")
}

func TestHandler_Get(t *testing.T) {
	svc := newMockService()
	svc.add(chainBattles())
	router := setupRouter(svc)

	t.Run("existing deployment", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/deployments/31337/0x5fbdb2315678afecb367f032d93f642f64180aa3", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp DeploymentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "deploy-1", resp.ID)
		assert.Equal(t, uint64(1_500_000), resp.GasUsed)
		assert.NotNil(t, resp.VerifiedOn)
		assert.Nil(t, resp.VerifiedAt)
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/deployments/80001/0x5FbDB2315678afecb367f032d93F642f64180aa3", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid chain id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/deployments/mumbai/0x5FbDB2315678afecb367f032d93F642f64180aa3", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid address", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/deployments/31337/5FbDB", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

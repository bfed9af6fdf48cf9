package dealerorder

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListIncludesPaginationMetadata(t *testing.T) {
	svc := NewService(newMockRepository())
	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), CreateOrderInput{
			DealerID: 7,
			Lines:    []LineInput{{VariantID: 1, ColorID: 2, Quantity: 1, UnitPrice: decimal.NewFromInt(500_000_000)}},
		})
		require.NoError(t, err)
	}

	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/dealer-orders?limit=2&offset=2", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Orders     []DealerOrder `json:"orders"`
		Pagination struct {
			Page       int `json:"page"`
			PerPage    int `json:"per_page"`
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Pagination.Page)
	assert.Equal(t, 2, body.Pagination.PerPage)
	assert.Equal(t, 3, body.Pagination.Total)
	assert.Equal(t, 2, body.Pagination.TotalPages)
}

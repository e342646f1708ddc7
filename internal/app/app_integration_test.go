//go:build integration

package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/procurement-portal/internal/domain/auth"
	"github.com/xenking/procurement-portal/internal/domain/product"
	"github.com/xenking/procurement-portal/internal/domain/weight"
	"github.com/xenking/procurement-portal/internal/handler"
	"github.com/xenking/procurement-portal/internal/repository"
)

const (
	pepper    = "integration-pepper"
	anaKey    = "ana-key"
	brunoKey  = "bruno-key"
	opsKey    = "ops-key"
	companyID = "acme"
)

type noopTelemetry struct{}

func (noopTelemetry) MeterProvider() metric.MeterProvider { return metricnoop.NewMeterProvider() }
func (noopTelemetry) TracerProvider() trace.TracerProvider {
	return tracenoop.NewTracerProvider()
}

type APISuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	server    *httptest.Server
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("portal"),
		postgres.WithUsername("portal"),
		postgres.WithPassword("portal"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(time.Minute)),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = repository.NewPool(ctx, dsn)
	s.Require().NoError(err)
	s.Require().NoError(repository.RunMigrations(ctx, s.pool))

	cfg := &Config{
		DatabaseURL:  dsn,
		APIKeyPepper: pepper,
		Quota:        QuotaConfig{MonthlyLimitKg: "30"},
		EditWindow:   EditWindowConfig{OpeningDay: 15, ClosingDay: 20, TimeZones: []string{"America/Sao_Paulo"}},
		Pagination:   PaginationConfig{DefaultPageSize: 20, MaxPageSize: 100},
	}
	s.Require().NoError(cfg.validate())

	api, _, err := NewAPI(ctx, zap.NewNop(), s.pool, cfg, noopTelemetry{})
	s.Require().NoError(err)
	s.server = httptest.NewServer(api)
}

func (s *APISuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *APISuite) SetupTest() {
	ctx := context.Background()
	_, err := s.pool.Exec(ctx, `TRUNCATE order_history, order_items, orders, products, delivery_units, api_keys`)
	s.Require().NoError(err)

	s.Require().NoError(repository.NewProductRepository(s.pool).Upsert(ctx, []product.Product{
		{Code: "RICE", Description: "Rice 2kg", Price: decimal.RequireFromString("9.90"),
			Weight: decimal.NewFromInt(2000), WeightUnit: weight.Gram},
		{Code: "OIL", Description: "Soy oil", Price: decimal.RequireFromString("7.50"),
			Weight: decimal.RequireFromString("0.9"), WeightUnit: weight.Kilogram, MinimumPurchaseQuantity: 2},
	}))
	s.Require().NoError(repository.NewUnitRepository(s.pool).Add(ctx, companyID, "NORTH", "SOUTH"))

	keys := repository.NewAPIKeyRepository(s.pool)
	for key, info := range map[string]auth.APIKeyInfo{
		anaKey:   {ID: "k-ana", Name: "ana", UserID: "u-ana", UserName: "Ana Souza", TaxID: "111"},
		brunoKey: {ID: "k-bruno", Name: "bruno", UserID: "u-bruno", UserName: "Bruno Lima", TaxID: "222"},
		opsKey:   {ID: "k-ops", Name: "ops", Scopes: []string{auth.ScopeAdmin}, UserID: "u-ops", UserName: "Ops"},
	} {
		info.KeyHash = handler.HashKey([]byte(pepper), key)
		s.Require().NoError(keys.Save(ctx, info))
	}
}

type response struct {
	status int
	fields map[string]string
}

func (s *APISuite) call(method, path, key, body string) response {
	req, err := http.NewRequestWithContext(context.Background(), method, s.server.URL+path, strings.NewReader(body))
	s.Require().NoError(err)
	if key != "" {
		req.Header.Set(handler.HeaderAPIKey, key)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	out := response{status: resp.StatusCode, fields: map[string]string{}}
	err = jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		v, err := d.Raw()
		out.fields[key] = v.String()
		return err
	})
	s.Require().NoError(err, string(raw))
	return out
}

func unquote(s string) string { return strings.Trim(s, `"`) }

func (s *APISuite) TestAuthentication() {
	s.Equal(http.StatusUnauthorized, s.call(http.MethodGet, "/api/orders", "", "").status)
	s.Equal(http.StatusUnauthorized, s.call(http.MethodGet, "/api/orders", "wrong", "").status)
	s.Equal(http.StatusOK, s.call(http.MethodGet, "/api/orders", anaKey, "").status)
}

func (s *APISuite) TestOrderLifecycle() {
	created := s.call(http.MethodPost, "/api/orders", anaKey,
		`{"companyId":"acme","deliveryUnit":" NORTH ","items":[{"code":"rice","quantity":10}]}`)
	s.Require().Equal(http.StatusCreated, created.status)
	s.Equal(`"requested"`, created.fields["status"])
	s.Equal(`"NORTH"`, created.fields["deliveryUnit"])
	s.Equal("20", created.fields["totalWeightKg"])
	id := unquote(created.fields["id"])

	over := s.call(http.MethodPost, "/api/orders", anaKey,
		`{"companyId":"acme","items":[{"code":"RICE","quantity":6}]}`)
	s.Equal(http.StatusConflict, over.status)
	s.Equal("20", over.fields["currentKg"])
	s.Equal("12", over.fields["requestedKg"])
	s.Equal("30", over.fields["limitKg"])

	missing := s.call(http.MethodPost, "/api/orders", anaKey,
		`{"companyId":"acme","items":[{"code":"NOPE","quantity":1},{"code":"OIL","quantity":2}]}`)
	s.Equal(http.StatusUnprocessableEntity, missing.status)
	s.Equal(`["NOPE"]`, missing.fields["missingCodes"])

	badUnit := s.call(http.MethodPost, "/api/orders", anaKey,
		`{"companyId":"acme","deliveryUnit":"MARS","items":[{"code":"OIL","quantity":2}]}`)
	s.Equal(http.StatusUnprocessableEntity, badUnit.status)

	s.Equal(http.StatusNotFound, s.call(http.MethodGet, "/api/orders/"+id, brunoKey, "").status)
	s.Equal(http.StatusForbidden, s.call(http.MethodPost, "/api/orders/"+id+"/approve", anaKey, "").status)

	approved := s.call(http.MethodPost, "/api/orders/"+id+"/approve", opsKey, "")
	s.Require().Equal(http.StatusOK, approved.status)
	s.Equal(`"approved"`, approved.fields["status"])

	s.Equal(http.StatusForbidden, s.call(http.MethodPost, "/api/orders/"+id+"/cancel", anaKey, "").status)

	edited := s.call(http.MethodPut, "/api/orders/"+id, opsKey,
		`{"deliveryUnit":"SOUTH","items":[{"code":"RICE","quantity":10},{"code":"OIL","quantity":2}]}`)
	s.Require().Equal(http.StatusOK, edited.status)
	s.Equal("21.8", edited.fields["totalWeightKg"])
	s.Contains(edited.fields["history"], `"previousUnit":"NORTH"`)

	cancelled := s.call(http.MethodPost, "/api/orders/"+id+"/cancel", opsKey, "")
	s.Require().Equal(http.StatusOK, cancelled.status)
	s.Equal(`"cancelled"`, cancelled.fields["status"])

	s.Equal(http.StatusForbidden, s.call(http.MethodPut, "/api/orders/"+id, opsKey,
		`{"items":[{"code":"RICE","quantity":1}]}`).status)

	summary := s.call(http.MethodGet, "/api/orders/summary", anaKey, "")
	s.Require().Equal(http.StatusOK, summary.status)
	s.Equal("21.8", summary.fields["totalWeightKg"], "cancelled orders still count")
	s.Equal("1", summary.fields["orderCount"])
}

func (s *APISuite) TestListingScopes() {
	for i := range 3 {
		s.Require().Equal(http.StatusCreated, s.call(http.MethodPost, "/api/orders", anaKey,
			`{"companyId":"acme","items":[{"code":"RICE","quantity":1}]}`).status, i)
	}
	s.Require().Equal(http.StatusCreated, s.call(http.MethodPost, "/api/orders", brunoKey,
		`{"companyId":"acme","items":[{"code":"OIL","quantity":2}]}`).status)

	mine := s.call(http.MethodGet, "/api/orders?userId=u-bruno&pageSize=2", anaKey, "")
	s.Require().Equal(http.StatusOK, mine.status)
	s.Equal("3", mine.fields["totalItems"])
	s.Equal("2", mine.fields["totalPages"])

	all := s.call(http.MethodGet, "/api/orders?page=50&pageSize=3", opsKey, "")
	s.Require().Equal(http.StatusOK, all.status)
	s.Equal("4", all.fields["totalItems"])
	s.Equal("2", all.fields["page"])

	search := s.call(http.MethodGet, "/api/orders?search=bruno", opsKey, "")
	s.Equal("1", search.fields["totalItems"])

	s.Equal(http.StatusBadRequest, s.call(http.MethodGet, "/api/orders?page=x", opsKey, "").status)
	s.Equal(http.StatusUnprocessableEntity,
		s.call(http.MethodGet, "/api/orders?from=2026-05-01&to=2026-04-01", opsKey, "").status)
}

func (s *APISuite) TestProductLookup() {
	got := s.call(http.MethodGet, "/api/products/oil", anaKey, "")
	s.Require().Equal(http.StatusOK, got.status)
	s.Equal(`"OIL"`, got.fields["code"])
	s.Equal("2", got.fields["minimumQuantity"])

	s.Equal(http.StatusNotFound, s.call(http.MethodGet, "/api/products/none", anaKey, "").status)
}

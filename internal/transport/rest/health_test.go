package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestHealthHandler(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Health Handler Suite")
}

var _ = Describe("HealthHandler", func() {
	var handler *HealthHandler

	healthOK := func(ctx context.Context) error { return nil }
	healthDown := func(ctx context.Context) error { return errors.New("connection refused") }

	readiness := func() (*httptest.ResponseRecorder, HealthResponse) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		handler.healthCheckHandler(rec, req)

		var body HealthResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return rec, body
	}

	BeforeEach(func() {
		handler = NewHealthHandler(nil)
	})

	It("should report healthy when every component passes", func() {
		handler.AddCheck("postgres", ComponentRequired, healthOK)
		handler.AddCheck("payment_gateway", ComponentOptional, healthOK)

		rec, body := readiness()

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(body.Status).To(Equal(HealthHealthy))
		Expect(body.Components).To(HaveLen(2))
		Expect(body.Components["postgres"].Status).To(Equal(HealthHealthy))
	})

	It("should go unhealthy with a 503 when a required component fails", func() {
		handler.AddCheck("postgres", ComponentRequired, healthDown)

		rec, body := readiness()

		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(body.Status).To(Equal(HealthUnhealthy))
		Expect(body.Components["postgres"].Message).To(ContainSubstring("connection refused"))
	})

	It("should only degrade when an optional component fails", func() {
		handler.AddCheck("postgres", ComponentRequired, healthOK)
		handler.AddCheck("payment_gateway", ComponentOptional, healthDown)

		rec, body := readiness()

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(body.Status).To(Equal(HealthDegraded))
		Expect(body.Components["payment_gateway"].Status).To(Equal(HealthUnhealthy))
	})

	It("should keep unhealthy over degraded when both kinds fail", func() {
		handler.AddCheck("postgres", ComponentRequired, healthDown)
		handler.AddCheck("payment_gateway", ComponentOptional, healthDown)

		rec, body := readiness()

		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(body.Status).To(Equal(HealthUnhealthy))
	})

	It("should answer liveness regardless of component state", func() {
		handler.AddCheck("postgres", ComponentRequired, healthDown)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
		handler.pingHandler(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("OK"))
	})
})

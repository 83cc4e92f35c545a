package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/goldrate-backend/internal/http/middleware"
	"github.com/tbourn/goldrate-backend/internal/services"
)

func publishRouter(fp *fakePublish, idem *memIdem) *gin.Engine {
	h := New(Deps{Publish: fp, Idempotency: idem}, Options{SiteURL: testSite, DailyCities: []string{"Chennai", "Madurai"}})
	r := gin.New()
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/admin/publish", h.Publish)
	r.POST("/admin/publish/daily", h.PublishDaily)
	return r
}

func TestPublish_Created(t *testing.T) {
	fp := &fakePublish{}
	w := do(t, publishRouter(fp, &memIdem{}), http.MethodPost, "/admin/publish", `{"city":"Chennai","date":"2025-01-15"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	resp := decode[PublishResponse](t, w)
	if resp.Slug != "chennai-gold-rate-2025-01-15" || resp.URL != testSite+"/blog/chennai-gold-rate-2025-01-15" || resp.Replayed {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Result == nil || resp.Result.Post.City != "Chennai" {
		t.Fatalf("missing result: %+v", resp.Result)
	}
}

func TestPublish_IdempotentReplaySkipsGenerator(t *testing.T) {
	fp := &fakePublish{}
	r := publishRouter(fp, &memIdem{})
	body := `{"city":"Madurai"}`

	first := do(t, r, http.MethodPost, "/admin/publish", body, "Idempotency-Key", "run-2025-01-15")
	if first.Code != http.StatusCreated {
		t.Fatalf("first status=%d", first.Code)
	}
	second := do(t, r, http.MethodPost, "/admin/publish", body, "Idempotency-Key", "run-2025-01-15")
	if second.Code != http.StatusOK {
		t.Fatalf("replay status=%d", second.Code)
	}
	if second.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("missing replay header")
	}
	resp := decode[PublishResponse](t, second)
	if !resp.Replayed || resp.Slug != "madurai-gold-rate-2025-01-15" || resp.URL != testSite+"/blog/madurai-gold-rate-2025-01-15" {
		t.Fatalf("unexpected replay: %+v", resp)
	}
	if fp.calls != 1 {
		t.Fatalf("generator pipeline ran %d times; want 1", fp.calls)
	}

	// a different key runs again
	do(t, r, http.MethodPost, "/admin/publish", body, "Idempotency-Key", "run-2025-01-16")
	if fp.calls != 2 {
		t.Fatalf("calls=%d; want 2", fp.calls)
	}
}

func TestPublish_FailuresAreNotRemembered(t *testing.T) {
	fp := &fakePublish{err: fmt.Errorf("%w: upstream 503", services.ErrGeneration)}
	idem := &memIdem{}
	r := publishRouter(fp, idem)

	expectError(t, do(t, r, http.MethodPost, "/admin/publish", `{"city":"Chennai"}`, "Idempotency-Key", "k1"), http.StatusBadGateway, ErrCodeGenerationFailed)
	if len(idem.recs) != 0 {
		t.Fatalf("failed publish must not store an idempotency record")
	}
	fp.err = nil
	if w := do(t, r, http.MethodPost, "/admin/publish", `{"city":"Chennai"}`, "Idempotency-Key", "k1"); w.Code != http.StatusCreated {
		t.Fatalf("retry status=%d", w.Code)
	}
}

func TestPublish_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrUnknownCity, http.StatusBadRequest, ErrCodeUnknownCity},
		{services.ErrInvalidDate, http.StatusBadRequest, ErrCodeInvalidDate},
		{services.ErrQuoteNotFound, http.StatusNotFound, ErrCodeNotFound},
		{fmt.Errorf("%w: %w", services.ErrGeneration, services.ErrMalformedUpstream), http.StatusBadGateway, ErrCodeGenerationMalformed},
		{errors.New("disk full"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		r := publishRouter(&fakePublish{err: tc.err}, &memIdem{})
		expectError(t, do(t, r, http.MethodPost, "/admin/publish", `{"city":"Chennai"}`), tc.status, tc.code)
	}
	r := publishRouter(&fakePublish{}, &memIdem{})
	expectError(t, do(t, r, http.MethodPost, "/admin/publish", `{"date":"2025-01-15"}`), http.StatusBadRequest, ErrCodeBadRequest)
}

func TestPublishDaily(t *testing.T) {
	all := services.DailyReport{Date: "2025-01-15", Results: []services.CityResult{
		{City: "Chennai", Slug: "chennai-gold-rate-2025-01-15"},
		{City: "Madurai", Slug: "madurai-gold-rate-2025-01-15"},
	}}
	partial := services.DailyReport{Date: "2025-01-15", Results: []services.CityResult{
		{City: "Chennai", Slug: "chennai-gold-rate-2025-01-15"},
		{City: "Madurai", Error: "content generation failed"},
	}}
	none := services.DailyReport{Date: "2025-01-15", Results: []services.CityResult{
		{City: "Chennai", Error: "content generation failed"},
	}}

	t.Run("all published uses configured cities", func(t *testing.T) {
		fp := &fakePublish{dailyRep: all}
		w := do(t, publishRouter(fp, &memIdem{}), http.MethodPost, "/admin/publish/daily", "")
		if w.Code != http.StatusOK || len(fp.lastDaily) != 2 {
			t.Fatalf("status=%d cities=%v", w.Code, fp.lastDaily)
		}
	})
	t.Run("body overrides cities", func(t *testing.T) {
		fp := &fakePublish{dailyRep: all}
		do(t, publishRouter(fp, &memIdem{}), http.MethodPost, "/admin/publish/daily", `{"cities":["Salem"]}`)
		if len(fp.lastDaily) != 1 || fp.lastDaily[0] != "Salem" {
			t.Fatalf("cities=%v", fp.lastDaily)
		}
	})
	t.Run("partial failure is 207", func(t *testing.T) {
		fp := &fakePublish{dailyRep: partial, dailyErr: errors.New("Madurai: content generation failed")}
		w := do(t, publishRouter(fp, &memIdem{}), http.MethodPost, "/admin/publish/daily", "")
		if w.Code != http.StatusMultiStatus {
			t.Fatalf("status=%d", w.Code)
		}
		if resp := decode[PublishDailyResponse](t, w); resp.Error == "" || len(resp.Results) != 2 {
			t.Fatalf("unexpected body: %+v", resp)
		}
	})
	t.Run("total failure is 502", func(t *testing.T) {
		fp := &fakePublish{dailyRep: none, dailyErr: errors.New("Chennai: content generation failed")}
		if w := do(t, publishRouter(fp, &memIdem{}), http.MethodPost, "/admin/publish/daily", ""); w.Code != http.StatusBadGateway {
			t.Fatalf("status=%d", w.Code)
		}
	})
	t.Run("no quote", func(t *testing.T) {
		fp := &fakePublish{dailyErr: services.ErrQuoteNotFound}
		expectError(t, do(t, publishRouter(fp, &memIdem{}), http.MethodPost, "/admin/publish/daily", ""), http.StatusNotFound, ErrCodeNotFound)
	})
}

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"settleup/internal/autosave"
	apperrors "settleup/internal/errors"
	"settleup/internal/models"
	"settleup/internal/pagination"
	"settleup/internal/services"
	"settleup/internal/sheet"
)

// --- mock settlement service ---

type mockSettlementService struct {
	createSettlementFn     func(userID, title string) (*models.Settlement, error)
	getUserSettlementsFn   func(userID string, page pagination.PageRequest, filter services.SettlementFilter) (*pagination.PageResponse[models.Settlement], error)
	getSettlementFn        func(settlementID string) (*models.Settlement, error)
	saveSheetFn            func(userID, settlementID string, data sheet.Sheet, expectedVersion *int64) (*models.Settlement, error)
	queueDraftFn           func(userID, settlementID string, data sheet.Sheet) (*services.DraftStatus, error)
	getDraftStatusFn       func(userID, settlementID string) (*services.DraftStatus, error)
	applyEditFn            func(userID, settlementID string, edit sheet.Edit) (*models.Settlement, error)
	completeSettlementFn   func(userID, settlementID string, final *sheet.Sheet) (*models.Settlement, error)
	reactivateSettlementFn func(userID, settlementID string) (*models.Settlement, error)
	deleteSettlementFn     func(userID, settlementID string) error
	getSummaryFn           func(settlementID string, participantID *int) (*services.SettlementSummary, error)
}

func (m *mockSettlementService) CreateSettlement(userID, title string) (*models.Settlement, error) {
	if m.createSettlementFn != nil {
		return m.createSettlementFn(userID, title)
	}
	return &models.Settlement{}, nil
}

func (m *mockSettlementService) GetUserSettlements(userID string, page pagination.PageRequest, filter services.SettlementFilter) (*pagination.PageResponse[models.Settlement], error) {
	if m.getUserSettlementsFn != nil {
		return m.getUserSettlementsFn(userID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.Settlement{}, pagination.PageRequest{Page: 1, PageSize: 20}, 0)
	return &resp, nil
}

func (m *mockSettlementService) GetSettlement(settlementID string) (*models.Settlement, error) {
	if m.getSettlementFn != nil {
		return m.getSettlementFn(settlementID)
	}
	return &models.Settlement{}, nil
}

func (m *mockSettlementService) SaveSheet(userID, settlementID string, data sheet.Sheet, expectedVersion *int64) (*models.Settlement, error) {
	if m.saveSheetFn != nil {
		return m.saveSheetFn(userID, settlementID, data, expectedVersion)
	}
	return &models.Settlement{}, nil
}

func (m *mockSettlementService) QueueDraft(userID, settlementID string, data sheet.Sheet) (*services.DraftStatus, error) {
	if m.queueDraftFn != nil {
		return m.queueDraftFn(userID, settlementID, data)
	}
	return &services.DraftStatus{SettlementID: settlementID, Status: autosave.StatusPending}, nil
}

func (m *mockSettlementService) GetDraftStatus(userID, settlementID string) (*services.DraftStatus, error) {
	if m.getDraftStatusFn != nil {
		return m.getDraftStatusFn(userID, settlementID)
	}
	return &services.DraftStatus{SettlementID: settlementID, Status: autosave.StatusIdle}, nil
}

func (m *mockSettlementService) ApplyEdit(userID, settlementID string, edit sheet.Edit) (*models.Settlement, error) {
	if m.applyEditFn != nil {
		return m.applyEditFn(userID, settlementID, edit)
	}
	return &models.Settlement{}, nil
}

func (m *mockSettlementService) CompleteSettlement(userID, settlementID string, final *sheet.Sheet) (*models.Settlement, error) {
	if m.completeSettlementFn != nil {
		return m.completeSettlementFn(userID, settlementID, final)
	}
	return &models.Settlement{}, nil
}

func (m *mockSettlementService) ReactivateSettlement(userID, settlementID string) (*models.Settlement, error) {
	if m.reactivateSettlementFn != nil {
		return m.reactivateSettlementFn(userID, settlementID)
	}
	return &models.Settlement{}, nil
}

func (m *mockSettlementService) DeleteSettlement(userID, settlementID string) error {
	if m.deleteSettlementFn != nil {
		return m.deleteSettlementFn(userID, settlementID)
	}
	return nil
}

func (m *mockSettlementService) GetSummary(settlementID string, participantID *int) (*services.SettlementSummary, error) {
	if m.getSummaryFn != nil {
		return m.getSummaryFn(settlementID, participantID)
	}
	return &services.SettlementSummary{}, nil
}

func (m *mockSettlementService) FlushDrafts(context.Context) error { return nil }

// verify interface compliance
var _ services.SettlementServicer = (*mockSettlementService)(nil)

const sheetJSON = `{"title":"Trip","participants":[{"id":1,"name":"Ann"}],` +
	`"expenses":[{"id":1,"itemName":"Dinner","totalCost":1000,"attendees":{"1":true}}]}`

func setupSettlementRouter(handler *SettlementHandler) *gin.Engine {
	r := gin.New()
	r.GET("/settlements/:id", handler.GetSettlement)
	r.GET("/settlements/:id/summary", handler.GetSummary)
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/settlements", handler.CreateSettlement)
	auth.GET("/settlements", handler.GetUserSettlements)
	auth.PUT("/settlements/:id/sheet", handler.SaveSheet)
	auth.POST("/settlements/:id/draft", handler.QueueDraft)
	auth.GET("/settlements/:id/save-status", handler.GetDraftStatus)
	auth.POST("/settlements/:id/edits", handler.ApplyEdit)
	auth.POST("/settlements/:id/complete", handler.CompleteSettlement)
	auth.POST("/settlements/:id/reactivate", handler.ReactivateSettlement)
	auth.DELETE("/settlements/:id", handler.DeleteSettlement)
	return r
}

func TestSettlementHandler_CreateSettlement(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		audit := &mockAuditService{}
		svc := &mockSettlementService{
			createSettlementFn: func(userID, title string) (*models.Settlement, error) {
				return &models.Settlement{
					Base:    models.Base{ID: testSettlementID},
					OwnerID: userID,
					Title:   title,
					Status:  models.SettlementStatusActive,
					Version: 1,
					Data:    sheet.New(title),
				}, nil
			},
		}
		r := setupSettlementRouter(NewSettlementHandler(svc, audit))

		rec := doRequest(r, "POST", "/settlements", `{"title":"Ski trip"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		settlement := parseJSON(t, rec)["settlement"].(map[string]interface{})
		if settlement["title"] != "Ski trip" {
			t.Errorf("expected Ski trip, got %v", settlement["title"])
		}
		data := settlement["data"].(map[string]interface{})
		if _, ok := data["personalDeductionItems"]; !ok {
			t.Error("expected camelCase sheet keys in data")
		}
		if len(audit.entries) != 1 || audit.entries[0].action != services.AuditCreateSettlement {
			t.Errorf("expected one CREATE_SETTLEMENT audit entry, got %+v", audit.entries)
		}
	})

	t.Run("returns 401 without auth", func(t *testing.T) {
		handler := NewSettlementHandler(&mockSettlementService{}, &mockAuditService{})
		r := gin.New()
		r.POST("/settlements", handler.CreateSettlement)

		rec := doRequest(r, "POST", "/settlements", `{"title":"Test"}`)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestSettlementHandler_GetUserSettlements(t *testing.T) {
	t.Run("passes filters to the service", func(t *testing.T) {
		var got services.SettlementFilter
		var gotPage pagination.PageRequest
		svc := &mockSettlementService{
			getUserSettlementsFn: func(_ string, page pagination.PageRequest, filter services.SettlementFilter) (*pagination.PageResponse[models.Settlement], error) {
				got, gotPage = filter, page
				resp := pagination.NewPageResponse([]models.Settlement{}, page, 0)
				return &resp, nil
			},
		}
		r := setupSettlementRouter(NewSettlementHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/settlements?search=trip&status=archived&sort=title&page=2&page_size=5", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Search != "trip" || got.Status != "archived" || got.Sort != "title" {
			t.Errorf("unexpected filter %+v", got)
		}
		if gotPage.Page != 2 || gotPage.PageSize != 5 {
			t.Errorf("unexpected page %+v", gotPage)
		}
	})

	t.Run("returns 400 on invalid status", func(t *testing.T) {
		r := setupSettlementRouter(NewSettlementHandler(&mockSettlementService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/settlements?status=deleted", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on invalid sort", func(t *testing.T) {
		r := setupSettlementRouter(NewSettlementHandler(&mockSettlementService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/settlements?sort=amount", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestSettlementHandler_GetSettlement(t *testing.T) {
	active := func(_ string) (*models.Settlement, error) {
		return &models.Settlement{
			Base:    models.Base{ID: testSettlementID},
			OwnerID: testUserID,
			Status:  models.SettlementStatusActive,
			Data:    sheet.New("Trip"),
		}, nil
	}

	t.Run("returns notice for active settlement", func(t *testing.T) {
		r := setupSettlementRouter(NewSettlementHandler(&mockSettlementService{getSettlementFn: active}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/settlements/"+testSettlementID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["notice"] != ActiveSettlementNotice {
			t.Errorf("expected active notice, got %v", result["notice"])
		}
		if result["is_owner"] != false {
			t.Errorf("expected anonymous reader not to be owner, got %v", result["is_owner"])
		}
	})

	t.Run("reports owner when signed in", func(t *testing.T) {
		handler := NewSettlementHandler(&mockSettlementService{getSettlementFn: active}, &mockAuditService{})
		r := gin.New()
		r.GET("/settlements/:id", injectUserID(testUserID), handler.GetSettlement)

		rec := doRequest(r, "GET", "/settlements/"+testSettlementID, "")

		if parseJSON(t, rec)["is_owner"] != true {
			t.Error("expected owner flag")
		}
	})

	t.Run("no notice for archived settlement", func(t *testing.T) {
		svc := &mockSettlementService{
			getSettlementFn: func(_ string) (*models.Settlement, error) {
				return &models.Settlement{Status: models.SettlementStatusArchived}, nil
			},
		}
		r := setupSettlementRouter(NewSettlementHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/settlements/"+testSettlementID, "")

		if _, ok := parseJSON(t, rec)["notice"]; ok {
			t.Error("expected no notice for archived settlement")
		}
	})

	t.Run("returns 400 on invalid id", func(t *testing.T) {
		r := setupSettlementRouter(NewSettlementHandler(&mockSettlementService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/settlements/abc", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 404 when not found", func(t *testing.T) {
		svc := &mockSettlementService{
			getSettlementFn: func(_ string) (*models.Settlement, error) {
				return nil, apperrors.ErrSettlementNotFound
			},
		}
		r := setupSettlementRouter(NewSettlementHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/settlements/"+testSettlementID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "SETTLEMENT_NOT_FOUND")
	})
}

func TestSettlementHandler_GetSummary(t *testing.T) {
	t.Run("passes participant filter", func(t *testing.T) {
		var got *int
		svc := &mockSettlementService{
			getSummaryFn: func(_ string, participantID *int) (*services.SettlementSummary, error) {
				got = participantID
				return &services.SettlementSummary{GrandTotal: 1000}, nil
			},
		}
		r := setupSettlementRouter(NewSettlementHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/settlements/"+testSettlementID+"/summary?participant_id=2", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got == nil || *got != 2 {
			t.Errorf("expected participant 2, got %v", got)
		}
	})

	t.Run("returns 400 on invalid participant", func(t *testing.T) {
		r := setupSettlementRouter(NewSettlementHandler(&mockSettlementService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/settlements/"+testSettlementID+"/summary?participant_id=x", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestSettlementHandler_SaveSheet(t *testing.T) {
	t.Run("returns 200 with etag", func(t *testing.T) {
		var gotVersion *int64
		svc := &mockSettlementService{
			saveSheetFn: func(_, _ string, data sheet.Sheet, expectedVersion *int64) (*models.Settlement, error) {
				gotVersion = expectedVersion
				return &models.Settlement{Version: 4, Data: data}, nil
			},
		}
		r := setupSettlementRouter(NewSettlementHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/settlements/"+testSettlementID+"/sheet", `{"data":`+sheetJSON+`,"expected_version":3}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotVersion == nil || *gotVersion != 3 {
			t.Errorf("expected expected_version 3, got %v", gotVersion)
		}
		if rec.Header().Get("ETag") != "4" {
			t.Errorf("expected ETag 4, got %q", rec.Header().Get("ETag"))
		}
	})

	t.Run("reads If-Match header", func(t *testing.T) {
		var gotVersion *int64
		svc := &mockSettlementService{
			saveSheetFn: func(_, _ string, _ sheet.Sheet, expectedVersion *int64) (*models.Settlement, error) {
				gotVersion = expectedVersion
				return &models.Settlement{Version: 8}, nil
			},
		}
		r := setupSettlementRouter(NewSettlementHandler(svc, &mockAuditService{}))

		req := httptest.NewRequest("PUT", "/settlements/"+testSettlementID+"/sheet", strings.NewReader(`{"data":`+sheetJSON+`}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("If-Match", `"7"`)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotVersion == nil || *gotVersion != 7 {
			t.Errorf("expected version 7 from If-Match, got %v", gotVersion)
		}
	})

	t.Run("returns 409 on version conflict", func(t *testing.T) {
		svc := &mockSettlementService{
			saveSheetFn: func(_, _ string, _ sheet.Sheet, _ *int64) (*models.Settlement, error) {
				return nil, apperrors.ErrVersionConflict
			},
		}
		r := setupSettlementRouter(NewSettlementHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/settlements/"+testSettlementID+"/sheet", `{"data":`+sheetJSON+`,"expected_version":1}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "VERSION_CONFLICT")
	})

	t.Run("returns 400 without data", func(t *testing.T) {
		r := setupSettlementRouter(NewSettlementHandler(&mockSettlementService{}, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/settlements/"+testSettlementID+"/sheet", `{}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestSettlementHandler_QueueDraft(t *testing.T) {
	t.Run("returns 202 with pending status", func(t *testing.T) {
		r := setupSettlementRouter(NewSettlementHandler(&mockSettlementService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/settlements/"+testSettlementID+"/draft", `{"data":`+sheetJSON+`}`)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		if parseJSON(t, rec)["status"] != string(autosave.StatusPending) {
			t.Errorf("expected pending status, got %s", rec.Body.String())
		}
	})

	t.Run("save status", func(t *testing.T) {
		r := setupSettlementRouter(NewSettlementHandler(&mockSettlementService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/settlements/"+testSettlementID+"/save-status", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if parseJSON(t, rec)["status"] != string(autosave.StatusIdle) {
			t.Errorf("expected idle status, got %s", rec.Body.String())
		}
	})
}

func TestSettlementHandler_ApplyEdit(t *testing.T) {
	t.Run("maps request to edit", func(t *testing.T) {
		var got sheet.Edit
		svc := &mockSettlementService{
			applyEditFn: func(_, _ string, edit sheet.Edit) (*models.Settlement, error) {
				got = edit
				return &models.Settlement{Version: 2}, nil
			},
		}
		r := setupSettlementRouter(NewSettlementHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/settlements/"+testSettlementID+"/edits",
			`{"op":"toggle_attendee","expense_id":1,"participant_id":2}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		want := sheet.Edit{Op: sheet.OpToggleAttendee, ExpenseID: 1, ParticipantID: 2}
		if got != want {
			t.Errorf("expected %+v, got %+v", want, got)
		}
	})

	t.Run("returns 400 on unknown op", func(t *testing.T) {
		r := setupSettlementRouter(NewSettlementHandler(&mockSettlementService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/settlements/"+testSettlementID+"/edits", `{"op":"explode"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 422 on refused edit", func(t *testing.T) {
		svc := &mockSettlementService{
			applyEditFn: func(_, _ string, _ sheet.Edit) (*models.Settlement, error) {
				return nil, apperrors.ErrLastParticipant
			},
		}
		r := setupSettlementRouter(NewSettlementHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/settlements/"+testSettlementID+"/edits", `{"op":"remove_participant"}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "LAST_PARTICIPANT")
	})
}

func TestSettlementHandler_CompleteSettlement(t *testing.T) {
	t.Run("without body", func(t *testing.T) {
		var gotFinal *sheet.Sheet
		called := false
		audit := &mockAuditService{}
		svc := &mockSettlementService{
			completeSettlementFn: func(_, _ string, final *sheet.Sheet) (*models.Settlement, error) {
				called, gotFinal = true, final
				return &models.Settlement{Status: models.SettlementStatusArchived}, nil
			},
		}
		r := setupSettlementRouter(NewSettlementHandler(svc, audit))

		rec := doRequest(r, "POST", "/settlements/"+testSettlementID+"/complete", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !called || gotFinal != nil {
			t.Errorf("expected completion without a final sheet, got %+v", gotFinal)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != services.AuditCompleteSettlement {
			t.Errorf("expected COMPLETE_SETTLEMENT audit entry, got %+v", audit.entries)
		}
	})

	t.Run("with final sheet", func(t *testing.T) {
		var gotFinal *sheet.Sheet
		svc := &mockSettlementService{
			completeSettlementFn: func(_, _ string, final *sheet.Sheet) (*models.Settlement, error) {
				gotFinal = final
				return &models.Settlement{}, nil
			},
		}
		r := setupSettlementRouter(NewSettlementHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/settlements/"+testSettlementID+"/complete", `{"data":`+sheetJSON+`}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotFinal == nil || gotFinal.Title != "Trip" {
			t.Errorf("expected final sheet to be passed, got %+v", gotFinal)
		}
	})
}

func TestSettlementHandler_ReactivateAndDelete(t *testing.T) {
	t.Run("reactivate returns 409 when active", func(t *testing.T) {
		svc := &mockSettlementService{
			reactivateSettlementFn: func(_, _ string) (*models.Settlement, error) {
				return nil, apperrors.ErrSettlementActive
			},
		}
		r := setupSettlementRouter(NewSettlementHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/settlements/"+testSettlementID+"/reactivate", "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("delete returns 200", func(t *testing.T) {
		audit := &mockAuditService{}
		r := setupSettlementRouter(NewSettlementHandler(&mockSettlementService{}, audit))

		rec := doRequest(r, "DELETE", "/settlements/"+testSettlementID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(audit.entries) != 1 || audit.entries[0].resourceID != testSettlementID {
			t.Errorf("expected DELETE_SETTLEMENT audit entry, got %+v", audit.entries)
		}
	})

	t.Run("delete returns 403 for non-owner", func(t *testing.T) {
		svc := &mockSettlementService{
			deleteSettlementFn: func(_, _ string) error { return apperrors.ErrForbidden },
		}
		r := setupSettlementRouter(NewSettlementHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/settlements/"+testSettlementID, "")

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/statement-engine/factory"
	"github.com/warp/statement-engine/report"
	"github.com/warp/statement-engine/statement"
	"github.com/warp/statement-engine/store/sqlite"
)

type okValidator struct{}

func (okValidator) Validate(context.Context, string) (*report.ValidationResult, error) {
	return &report.ValidationResult{IsValid: true}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	builder := &statement.Builder{Templates: store, Amounts: store}
	service := &report.Service{
		Reports:   store,
		Builder:   builder,
		Validator: okValidator{},
		Mode:      report.ModeStrict,
	}

	server := httptest.NewServer(NewRouter(NewHandler(store, service, builder)))
	t.Cleanup(server.Close)
	return server, store
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func seedTemplate(t *testing.T, server *httptest.Server) {
	t.Helper()
	resp, body := doJSON(t, http.MethodPut, server.URL+"/api/templates/QS",
		json.RawMessage(factory.QuarterlyStatementJSON("QS")))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}

func seedAmounts(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	for q, v := range map[string]int64{"2025-Q1": 100, "2025-Q2": 110} {
		require.NoError(t, store.SetAmount(ctx, statement.KindExecution, "F1", q, "GRANTS", decimal.NewFromInt(v)))
	}
}

// =============================================================================
// TEMPLATES
// =============================================================================

func TestTemplateLifecycle(t *testing.T) {
	server, store := newTestServer(t)
	seedTemplate(t, server)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/templates/QS", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tmpl TemplateResponse
	require.NoError(t, json.Unmarshal(body, &tmpl))
	assert.Equal(t, "QS", tmpl.StatementCode)
	assert.NotEmpty(t, tmpl.Lines)

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/templates/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Publishing against an empty catalog must fail the strict check.
	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/templates/QS/publish", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body), "preset has no explicit mappings, nothing to gate")

	// Seed mappings referencing an unknown code and retry.
	require.NoError(t, store.PutMappings(context.Background(), "QS", []statement.BudgetActualMapping{
		{LineCode: "A01", BudgetEvents: []string{"TYPO"}, ActualEvents: []string{"GRANTS"}},
	}))
	require.NoError(t, store.SetCatalog(context.Background(), []string{"GRANTS"}))

	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/templates/QS/publish", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var publish PublishResponse
	require.NoError(t, json.Unmarshal(body, &publish))
	assert.False(t, publish.Published)
	assert.Equal(t, []string{"TYPO"}, publish.InvalidEvents)
}

func TestComputeStatement_RequiresScope(t *testing.T) {
	server, _ := newTestServer(t)
	seedTemplate(t, server)

	resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/statements/QS/compute", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestComputeStatement(t *testing.T) {
	server, store := newTestServer(t)
	seedTemplate(t, server)
	seedAmounts(t, store)

	resp, body := doJSON(t, http.MethodGet,
		server.URL+"/api/statements/QS/compute?facility=F1&period=2025", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var stmt StatementResponse
	require.NoError(t, json.Unmarshal(body, &stmt))
	require.NotEmpty(t, stmt.Rows)

	var grants *RowDTO
	for _, row := range stmt.Rows {
		for _, child := range row.Children {
			if child.ID == "A01" {
				grants = child
			}
		}
	}
	require.NotNil(t, grants)
	assert.Equal(t, "100", grants.Q1)
	assert.Equal(t, "110", grants.Q2)
}

// =============================================================================
// REPORT WORKFLOW OVER HTTP
// =============================================================================

func createReport(t *testing.T, server *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/reports", CreateReportRequest{
		StatementCode: "QS", FacilityID: "F1", PeriodID: "2025",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created map[string]string
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created["id"])
	return created["id"]
}

func TestReportWorkflow_EndToEnd(t *testing.T) {
	server, store := newTestServer(t)
	seedTemplate(t, server)
	seedAmounts(t, store)

	id := createReport(t, server)
	actionURL := func(action string) string {
		return fmt.Sprintf("%s/api/reports/%s/%s", server.URL, id, action)
	}

	resp, body := doJSON(t, http.MethodPost, actionURL("submit"), WorkflowActionRequest{ActorID: "clerk"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var action WorkflowActionResponse
	require.NoError(t, json.Unmarshal(body, &action))
	assert.Equal(t, report.StatusSubmitted, action.NewStatus)

	// Frozen view.
	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/reports/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view ReportResponse
	require.NoError(t, json.Unmarshal(body, &view))
	assert.True(t, view.IsSnapshot)
	assert.NotEmpty(t, view.Rows)
	require.Len(t, view.History, 1)

	// Approving from submitted works; approving again is a 409.
	resp, _ = doJSON(t, http.MethodPost, actionURL("approve"), WorkflowActionRequest{ActorID: "boss"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, actionURL("approve"), WorkflowActionRequest{ActorID: "boss"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Recalling an approved report is a permission error.
	resp, _ = doJSON(t, http.MethodPost, actionURL("recall"), WorkflowActionRequest{ActorID: "clerk"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestReportWorkflow_UnknownReport(t *testing.T) {
	server, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/reports/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/reports/nope/submit", WorkflowActionRequest{ActorID: "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBulkApprove_HTTP(t *testing.T) {
	server, store := newTestServer(t)
	seedTemplate(t, server)
	seedAmounts(t, store)

	first := createReport(t, server)
	second := createReport(t, server)

	resp, _ := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/reports/%s/submit", server.URL, first),
		WorkflowActionRequest{ActorID: "clerk"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/reports/bulk-approve", BulkApproveRequest{
		ReportIDs: []string{first, second}, ActorID: "boss",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []BulkItemResult
	require.NoError(t, json.Unmarshal(body, &items))
	require.Len(t, items, 2)
	assert.Equal(t, report.StatusApproved, items[0].NewStatus)
	assert.Empty(t, items[0].Error)
	assert.NotEmpty(t, items[1].Error, "draft report cannot be approved")
}

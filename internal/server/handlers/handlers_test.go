package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"trendcast/internal/exporter"
	"trendcast/internal/ingest"
	"trendcast/internal/pipeline"
	"trendcast/internal/session"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t        *testing.T
	router   *gin.Engine
	sessions *session.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sessions := session.NewManager(session.Config{Pipeline: pipeline.DefaultOptions()}, nil, nil)
	h := NewHandlers(sessions, ingest.NewLoader(nil), nil, 1<<20)
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))
	return &testServer{t: t, router: r, sessions: sessions}
}

func (ts *testServer) do(method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	ts.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) call(method, path string, body any) envelope {
	ts.t.Helper()
	var raw []byte
	contentType := ""
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatalf("encode body: %v", err)
		}
		raw = b
		contentType = "application/json"
	}
	w := ts.do(method, path, raw, contentType)
	if w.Code != http.StatusOK {
		ts.t.Fatalf("%s %s: status %d", method, path, w.Code)
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		ts.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return env
}

func (ts *testServer) mustOK(method, path string, body any, out any) {
	ts.t.Helper()
	env := ts.call(method, path, body)
	if env.Code != 0 {
		ts.t.Fatalf("%s %s: code %d %q", method, path, env.Code, env.Message)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			ts.t.Fatalf("%s %s: decode data: %v", method, path, err)
		}
	}
}

func (ts *testServer) createSession() string {
	ts.t.Helper()
	var snap struct {
		ID string `json:"id"`
	}
	ts.mustOK(http.MethodPost, "/api/sessions", nil, &snap)
	if snap.ID == "" {
		ts.t.Fatalf("empty session id")
	}
	return snap.ID
}

func (ts *testServer) upload(id, fileName string, content []byte) envelope {
	ts.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		ts.t.Fatalf("form file: %v", err)
	}
	fw.Write(content)
	mw.Close()

	w := ts.do(http.MethodPost, "/api/sessions/"+id+"/dataset", buf.Bytes(), mw.FormDataContentType())
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		ts.t.Fatalf("decode upload: %v", err)
	}
	return env
}

func monthlyCSV(months int) []byte {
	var b strings.Builder
	b.WriteString("month,sales\n")
	for i := 0; i < months; i++ {
		d := time.Date(2018, time.Month(i+2), 0, 0, 0, 0, 0, time.UTC)
		v := 50 + float64(i) + 5*math.Sin(2*math.Pi*float64(i)/12)
		fmt.Fprintf(&b, "%s,%.3f\n", d.Format("2006-01-02"), v)
	}
	return []byte(b.String())
}

func TestUnknownSession(t *testing.T) {
	ts := newTestServer(t)
	env := ts.call(http.MethodGet, "/api/sessions/nope", nil)
	if env.Code != CodeNotFound {
		t.Fatalf("code = %d", env.Code)
	}
	env = ts.call(http.MethodDelete, "/api/sessions/nope", nil)
	if env.Code != CodeNotFound {
		t.Fatalf("delete code = %d", env.Code)
	}
}

func TestUploadAndMapping(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()

	env := ts.upload(id, "sales.csv", monthlyCSV(36))
	if env.Code != 0 {
		t.Fatalf("upload: %d %s", env.Code, env.Message)
	}
	var up DatasetResponse
	if err := json.Unmarshal(env.Data, &up); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if up.DateColumn != "month" || up.ValueColumn != "sales" || up.MappingError != "" {
		t.Fatalf("upload response = %+v", up)
	}
	if len(up.Preview) != previewRows {
		t.Fatalf("preview rows = %d", len(up.Preview))
	}

	// 相同内容再次上传命中缓存
	env = ts.upload(id, "sales.csv", monthlyCSV(36))
	if err := json.Unmarshal(env.Data, &up); err != nil || !up.Cached {
		t.Fatalf("second upload should be cached: %+v %v", up, err)
	}

	var series struct {
		Points      []map[string]any `json:"points"`
		Description map[string]any   `json:"description"`
	}
	ts.mustOK(http.MethodGet, "/api/sessions/"+id+"/series", nil, &series)
	if len(series.Points) != 36 || series.Description["count"].(float64) != 36 {
		t.Fatalf("series = %d points, %v", len(series.Points), series.Description["count"])
	}

	env = ts.call(http.MethodPost, "/api/sessions/"+id+"/mapping", MappingRequest{DateColumn: "month", ValueColumn: "month"})
	if env.Code != CodeInvalidInput {
		t.Fatalf("same column mapping code = %d", env.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()
	big := bytes.Repeat([]byte("2020-01-01,1\n"), 100000)
	env := ts.upload(id, "big.csv", append([]byte("d,v\n"), big...))
	if env.Code != CodeFileTooLarge {
		t.Fatalf("code = %d", env.Code)
	}
}

func TestStageErrors(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()
	base := "/api/sessions/" + id

	env := ts.call(http.MethodPost, base+"/fit", nil)
	if env.Code != CodeInvalidInput || env.Message != pipeline.MsgNotMapped {
		t.Fatalf("fit without data = %d %q", env.Code, env.Message)
	}

	ts.upload(id, "sales.csv", monthlyCSV(36))
	env = ts.call(http.MethodPost, base+"/predict", nil)
	if env.Code != CodeNotFitted || env.Message != pipeline.MsgFitFirst {
		t.Fatalf("predict before fit = %d %q", env.Code, env.Message)
	}
	env = ts.call(http.MethodGet, base+"/components", nil)
	if env.Code != CodeNoForecast || env.Message != pipeline.MsgRequiresForecast {
		t.Fatalf("components = %d %q", env.Code, env.Message)
	}
	env = ts.call(http.MethodGet, base+"/metrics", nil)
	if env.Code != CodeNoMetrics || env.Message != pipeline.MsgNoMetrics {
		t.Fatalf("metrics = %d %q", env.Code, env.Message)
	}

	var opts struct {
		Defaults map[string]any `json:"defaults"`
	}
	ts.mustOK(http.MethodGet, "/api/options", nil, &opts)
	sel := opts.Defaults
	sel["growth"] = "logistic"
	sel["cap"] = 0.3
	sel["floor"] = 0.6
	var conf struct {
		Settings struct {
			Warnings []string `json:"warnings"`
		} `json:"settings"`
	}
	ts.mustOK(http.MethodPut, base+"/settings", sel, &conf)
	if len(conf.Settings.Warnings) != 1 {
		t.Fatalf("warnings = %v", conf.Settings.Warnings)
	}
	env = ts.call(http.MethodPost, base+"/fit", nil)
	if env.Code != CodeInvalidConfiguration || env.Message != pipeline.MsgInvalidConfiguration {
		t.Fatalf("fit with floor > cap = %d %q", env.Code, env.Message)
	}

	sel["cap"] = 2.0
	env = ts.call(http.MethodPut, base+"/settings", sel)
	if env.Code != CodeInvalidInput {
		t.Fatalf("cap out of range = %d", env.Code)
	}
}

func TestForecastValidateExport(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()
	base := "/api/sessions/" + id
	if env := ts.upload(id, "sales.csv", monthlyCSV(36)); env.Code != 0 {
		t.Fatalf("upload: %s", env.Message)
	}

	var opts struct {
		Defaults map[string]any `json:"defaults"`
	}
	ts.mustOK(http.MethodGet, "/api/options", nil, &opts)
	sel := opts.Defaults
	sel["periods"] = 6
	sel["cvInitialMonths"] = 12
	sel["cvPeriodMonths"] = 6
	sel["cvHorizonMonths"] = 6
	ts.mustOK(http.MethodPut, base+"/settings", sel, nil)

	var fit struct {
		Message      string `json:"message"`
		FuturePoints int    `json:"futurePoints"`
	}
	ts.mustOK(http.MethodPost, base+"/fit", nil, &fit)
	if fit.FuturePoints != 6 || !strings.HasPrefix(fit.Message, "The model will produce forecast up to 2021-06-30") {
		t.Fatalf("fit = %+v", fit)
	}
	ts.mustOK(http.MethodPost, base+"/predict", nil, nil)

	var tail struct {
		Rows []map[string]any `json:"rows"`
	}
	ts.mustOK(http.MethodGet, base+"/forecast?tail=3", nil, &tail)
	if len(tail.Rows) != 3 {
		t.Fatalf("tail rows = %d", len(tail.Rows))
	}

	var comps struct {
		Components []map[string]any `json:"components"`
	}
	ts.mustOK(http.MethodGet, base+"/components", nil, &comps)
	if len(comps.Components) == 0 {
		t.Fatalf("no components")
	}

	var link exporter.Link
	ts.mustOK(http.MethodGet, base+"/export/forecast", nil, &link)
	if link.FileName != exporter.ForecastFileName || !strings.HasPrefix(link.Href, "data:file/csv;base64,") {
		t.Fatalf("link = %+v", link)
	}

	w := ts.do(http.MethodGet, base+"/download/forecast.csv", nil, "")
	s, err := ts.sessions.Get(id)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	res, err := s.Forecast()
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	want, err := exporter.ForecastCSV(res)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if !bytes.Equal(w.Body.Bytes(), want) {
		t.Fatalf("download differs from direct serialization")
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "forecast.csv") {
		t.Fatalf("content disposition = %q", cd)
	}

	env := ts.call(http.MethodGet, base+"/export/metrics", nil)
	if env.Code != CodeNoMetrics {
		t.Fatalf("metrics export before validation = %d", env.Code)
	}

	w = ts.do(http.MethodPost, base+"/validate/stream", nil, "")
	body := w.Body.String()
	if !strings.Contains(body, `"type":"progress"`) || !strings.Contains(body, `"type":"done"`) {
		t.Fatalf("stream = %s", body)
	}

	var metrics struct {
		Columns []string         `json:"columns"`
		Rows    []map[string]any `json:"rows"`
	}
	ts.mustOK(http.MethodGet, base+"/metrics", nil, &metrics)
	if len(metrics.Rows) == 0 || metrics.Columns[0] != "horizon" {
		t.Fatalf("metrics = %+v", metrics)
	}

	var plot struct {
		Metric string           `json:"metric"`
		Points []map[string]any `json:"points"`
	}
	ts.mustOK(http.MethodGet, base+"/metrics/plot?metric=mae", nil, &plot)
	if plot.Metric != "mae" || len(plot.Points) == 0 {
		t.Fatalf("plot = %+v", plot)
	}

	w = ts.do(http.MethodGet, base+"/download/metrics.csv", nil, "")
	if !strings.HasPrefix(w.Body.String(), "horizon,") {
		t.Fatalf("metrics csv = %q", w.Body.String())
	}

	w = ts.do(http.MethodPost, base+"/export/stream", nil, "")
	body = w.Body.String()
	idx := strings.Index(body, "/api/downloads/")
	if idx < 0 {
		t.Fatalf("export stream = %s", body)
	}
	url := body[idx:]
	url = url[:strings.IndexByte(url, '"')]
	w = ts.do(http.MethodGet, url, nil, "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("xlsx download: %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Fatalf("xlsx body is not a zip archive")
	}

	// 令牌只能使用一次
	env = ts.call(http.MethodGet, url, nil)
	if env.Code != CodeNotFound {
		t.Fatalf("second download code = %d", env.Code)
	}
}

func TestInvalidCrossValidationStream(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()
	base := "/api/sessions/" + id
	ts.upload(id, "sales.csv", monthlyCSV(24))

	var opts struct {
		Defaults map[string]any `json:"defaults"`
	}
	ts.mustOK(http.MethodGet, "/api/options", nil, &opts)
	sel := opts.Defaults
	sel["cvHorizonMonths"] = 500
	ts.mustOK(http.MethodPut, base+"/settings", sel, nil)
	ts.mustOK(http.MethodPost, base+"/fit", nil, nil)
	ts.mustOK(http.MethodPost, base+"/predict", nil, nil)

	w := ts.do(http.MethodPost, base+"/validate/stream", nil, "")
	if !strings.Contains(w.Body.String(), pipeline.MsgInvalidCrossValidation) {
		t.Fatalf("stream = %s", w.Body.String())
	}
	env := ts.call(http.MethodPost, base+"/validate", nil)
	if env.Code != CodeInvalidCrossValidation {
		t.Fatalf("validate code = %d", env.Code)
	}
}

func TestSystemRoutes(t *testing.T) {
	ts := newTestServer(t)

	var hol struct {
		Country  string           `json:"country"`
		Holidays []map[string]any `json:"holidays"`
	}
	ts.mustOK(http.MethodGet, "/api/holidays?country=Italy&from=2024&to=2024", nil, &hol)
	if hol.Country != "Italy" || len(hol.Holidays) == 0 {
		t.Fatalf("holidays = %+v", hol)
	}
	if env := ts.call(http.MethodGet, "/api/holidays?country=Country+name", nil); env.Code != CodeBadRequest {
		t.Fatalf("placeholder country code = %d", env.Code)
	}
	if env := ts.call(http.MethodGet, "/api/holidays?country=Atlantis", nil); env.Code != CodeInvalidInput {
		t.Fatalf("unknown country code = %d", env.Code)
	}

	id := ts.createSession()
	ts.upload(id, "sales.csv", monthlyCSV(24))
	var status StatusResponse
	ts.mustOK(http.MethodGet, "/api/status", nil, &status)
	if status.Sessions != 1 || status.CachedDatasets != 1 {
		t.Fatalf("status = %+v", status)
	}

	var cleared struct {
		Cleared int `json:"cleared"`
	}
	ts.mustOK(http.MethodPost, "/api/cache/clear", nil, &cleared)
	if cleared.Cleared != 1 {
		t.Fatalf("cleared = %d", cleared.Cleared)
	}

	var runs []any
	ts.mustOK(http.MethodGet, "/api/runs", nil, &runs)
	if len(runs) != 0 {
		t.Fatalf("runs without store = %v", runs)
	}

	ts.mustOK(http.MethodDelete, "/api/sessions/"+id, nil, nil)
	if ts.sessions.Len() != 0 {
		t.Fatalf("session not deleted")
	}
}

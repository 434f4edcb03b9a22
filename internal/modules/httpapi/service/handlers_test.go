package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"trade_desk/internal/models"
	commands "trade_desk/internal/modules/commands/service"
	journal "trade_desk/internal/modules/journal/service"
	transport "trade_desk/internal/modules/transport/service"
)

type fakeBackend struct {
	replies map[string]string
	err     error
	posted  map[string][]byte
}

func (f *fakeBackend) Poll(_ context.Context, resource string, _ url.Values) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.replies[resource]), nil
}

func (f *fakeBackend) Post(_ context.Context, resource string, payload any) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, _ := sonic.Marshal(payload)
	if f.posted == nil {
		f.posted = map[string][]byte{}
	}
	f.posted[resource] = raw
	return []byte(f.replies[resource]), nil
}

func (f *fakeBackend) PostFile(_ context.Context, resource, _, filename string, r io.Reader) ([]byte, error) {
	b, _ := io.ReadAll(r)
	if f.posted == nil {
		f.posted = map[string][]byte{}
	}
	f.posted[resource] = append([]byte(filename+":"), b...)
	return []byte(f.replies[resource]), nil
}

type staticStore struct{ snap models.Snapshot }

func (s staticStore) Snapshot() models.Snapshot { return s.snap.Clone() }

func newTestServer(t *testing.T, b *fakeBackend, snap models.Snapshot) (*httptest.Server, *State) {
	t.Helper()
	st := NewState()
	h := NewHandler(staticStore{snap: snap}, commands.New(b), journal.Noop{}, st)
	srv := httptest.NewServer(NewEcho(h))
	t.Cleanup(srv.Close)
	return srv, st
}

func doJSON(t *testing.T, method, u, body string) (int, Response) {
	t.Helper()
	req, err := http.NewRequest(method, u, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out Response
	if err := sonic.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return resp.StatusCode, out
}

func TestProbes(t *testing.T) {
	srv, st := newTestServer(t, &fakeBackend{}, models.Snapshot{})

	resp, err := http.Get(srv.URL + "/livez")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("livez: %v %v", resp, err)
	}
	resp.Body.Close()

	resp, _ = http.Get(srv.URL + "/readyz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz before signal = %d", resp.StatusCode)
	}

	st.Observe(models.Snapshot{Stream: models.StreamStatus{State: models.StreamActive, LastUpdate: time.Now()}})
	resp, _ = http.Get(srv.URL + "/readyz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz after signal = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	var health map[string]any
	raw, _ := io.ReadAll(resp.Body)
	_ = sonic.Unmarshal(raw, &health)
	if health["stream"] != "Active" || health["ready"] != true {
		t.Fatalf("healthz = %s", raw)
	}
}

func TestState_ReadyAfterPollSuccess(t *testing.T) {
	st := NewState()
	st.Observe(models.Snapshot{})
	if st.Ready() {
		t.Fatal("ready without any signal")
	}
	st.Observe(models.Snapshot{Poll: models.PollHealth{LastSuccess: time.Now()}})
	if !st.Ready() {
		t.Fatal("not ready after poll success")
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	snap := models.Snapshot{
		Seq:       4,
		Account:   &models.AccountSnapshot{Balance: 1000.75},
		Positions: models.PositionSet{"AAPL": {Symbol: "AAPL", Quantity: 2}},
		Stream:    models.StreamStatus{State: models.StreamInactive},
	}
	srv, _ := newTestServer(t, &fakeBackend{}, snap)

	code, resp := doJSON(t, http.MethodGet, srv.URL+"/api/snapshot", "")
	if code != http.StatusOK || resp.Status != StatusSuccess {
		t.Fatalf("code = %d, resp = %+v", code, resp)
	}
	data := resp.Data.(map[string]any)
	if data["account"].(map[string]any)["balance"] != 1000.75 {
		t.Fatalf("data = %v", data)
	}
	if data["stream"].(map[string]any)["state"] != "Inactive" {
		t.Fatalf("stream = %v", data["stream"])
	}
}

func TestChartEndpoint(t *testing.T) {
	b := &fakeBackend{replies: map[string]string{
		commands.ResourceHistory: `[{"date": "2024-01-01", "value": 100}, {"date": "2024-01-02", "value": 200}]`,
	}}
	srv, _ := newTestServer(t, b, models.Snapshot{})

	code, resp := doJSON(t, http.MethodGet, srv.URL+"/api/chart?period=1W", "")
	if code != http.StatusOK || resp.Status != StatusSuccess {
		t.Fatalf("code = %d, resp = %+v", code, resp)
	}
	data := resp.Data.(map[string]any)
	domain := data["domain"].([]any)
	if domain[0].(float64) != 90 || domain[1].(float64) != 210 {
		t.Fatalf("domain = %v", domain)
	}
	if _, ok := data["metrics"]; !ok {
		t.Fatalf("no metrics: %v", data)
	}

	code, _ = doJSON(t, http.MethodGet, srv.URL+"/api/chart?period=2D", "")
	if code != http.StatusBadRequest {
		t.Fatalf("bad period code = %d", code)
	}
}

func TestChartEndpoint_NoData(t *testing.T) {
	b := &fakeBackend{replies: map[string]string{commands.ResourceHistory: `{"history": []}`}}
	srv, _ := newTestServer(t, b, models.Snapshot{})

	code, resp := doJSON(t, http.MethodGet, srv.URL+"/api/chart?period=ALL", "")
	if code != http.StatusOK || resp.Status != StatusNoData {
		t.Fatalf("code = %d, resp = %+v", code, resp)
	}
}

func TestChartEndpoint_BackendDown(t *testing.T) {
	b := &fakeBackend{err: transport.NewNetworkError(commands.ResourceHistory, context.DeadlineExceeded)}
	srv, _ := newTestServer(t, b, models.Snapshot{})

	code, resp := doJSON(t, http.MethodGet, srv.URL+"/api/chart", "")
	if code != http.StatusGatewayTimeout || resp.Status != StatusError {
		t.Fatalf("code = %d, resp = %+v", code, resp)
	}
}

func TestValidateStrategyEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBackend{}, models.Snapshot{})

	body := `{"name": "", "rules": [], "stopLossPct": 0, "takeProfitPct": 5}`
	code, resp := doJSON(t, http.MethodPost, srv.URL+"/api/strategies/validate", body)
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	data := resp.Data.(map[string]any)
	if data["ok"] != false {
		t.Fatalf("data = %v", data)
	}
	errs := data["errors"].([]any)
	if len(errs) != 3 || errs[1].(map[string]any)["field"] != "rules" {
		t.Fatalf("errors = %v", errs)
	}

	good := `{"name": "x", "stopLossPct": 1, "takeProfitPct": 2, "rules": [
		{"indicator": "RSI", "operator": "LessThan", "value": "30", "logicalOperator": "AND", "action": "BUY"}]}`
	_, resp = doJSON(t, http.MethodPost, srv.URL+"/api/strategies/validate", good)
	if resp.Data.(map[string]any)["ok"] != true {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestSubmitStrategyEndpoint_Invalid(t *testing.T) {
	b := &fakeBackend{}
	srv, _ := newTestServer(t, b, models.Snapshot{})

	code, resp := doJSON(t, http.MethodPost, srv.URL+"/api/strategies", `{"name": "x", "rules": []}`)
	if code != http.StatusUnprocessableEntity || resp.Status != StatusError {
		t.Fatalf("code = %d, resp = %+v", code, resp)
	}
	if len(b.posted) != 0 {
		t.Fatal("invalid strategy reached backend")
	}
}

func TestManualTradeEndpoint(t *testing.T) {
	b := &fakeBackend{replies: map[string]string{commands.ResourceManualTrade: `{"message": "queued"}`}}
	srv, _ := newTestServer(t, b, models.Snapshot{})

	code, resp := doJSON(t, http.MethodPost, srv.URL+"/api/manual_trade", `{"ticker": "aapl", "side": "buy", "quantity": "2"}`)
	if code != http.StatusOK || resp.Message != "queued" {
		t.Fatalf("code = %d, resp = %+v", code, resp)
	}

	code, resp = doJSON(t, http.MethodPost, srv.URL+"/api/manual_trade", `{"ticker": "aapl", "side": "hold", "quantity": "2"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("code = %d, resp = %+v", code, resp)
	}
	if resp.Error.(map[string]any)["field"] != "side" {
		t.Fatalf("error = %v", resp.Error)
	}
}

func TestUploadTickersEndpoint(t *testing.T) {
	b := &fakeBackend{replies: map[string]string{commands.ResourceUploadTickers: `{"status": "success"}`}}
	srv, _ := newTestServer(t, b, models.Snapshot{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "list.csv")
	_, _ = fw.Write([]byte("AAPL\n"))
	_ = mw.Close()

	resp, err := http.Post(srv.URL+"/api/upload_tickers", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("code = %d", resp.StatusCode)
	}
	if got := string(b.posted[commands.ResourceUploadTickers]); got != "list.csv:AAPL\n" {
		t.Fatalf("posted = %q", got)
	}
}

func TestJournalEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBackend{}, models.Snapshot{})

	code, resp := doJSON(t, http.MethodGet, srv.URL+"/api/journal?limit=10", "")
	if code != http.StatusOK || resp.Status != StatusSuccess {
		t.Fatalf("code = %d, resp = %+v", code, resp)
	}
	code, _ = doJSON(t, http.MethodGet, srv.URL+"/api/journal?limit=0", "")
	if code != http.StatusBadRequest {
		t.Fatalf("code = %d", code)
	}
}

func TestBacktestRoutes(t *testing.T) {
	b := &fakeBackend{replies: map[string]string{
		commands.ResourceBacktest: `{"metrics": {"Final Portfolio Value": 105000, "Total Return": 0.05, "Sharpe Ratio": 0.8, "Max Drawdown": 4.2}}`,
	}}
	srv, _ := newTestServer(t, b, models.Snapshot{})

	body := `{"strategy": "RSIStrategy", "ticker": "msft", "start_date": "2023-01-01", "end_date": "2023-12-31", "params": {"rsi_period": 14}}`
	code, out := doJSON(t, http.MethodPost, srv.URL+"/api/backtest", body)
	if code != http.StatusOK || out.Status != StatusSuccess {
		t.Fatalf("run: %d %+v", code, out)
	}
	data, _ := out.Data.(map[string]any)
	if data["ticker"] != "MSFT" || data["strategy"] != "RSIStrategy" {
		t.Fatalf("report = %v", out.Data)
	}
	if !strings.Contains(string(b.posted[commands.ResourceBacktest]), `"ticker":"MSFT"`) {
		t.Fatalf("posted = %s", b.posted[commands.ResourceBacktest])
	}

	code, out = doJSON(t, http.MethodPost, srv.URL+"/api/backtest", `{"strategy": "RSIStrategy", "ticker": "MSFT", "start_date": "2024-01-01", "end_date": "2023-01-01"}`)
	if code != http.StatusUnprocessableEntity || out.Status != StatusError {
		t.Fatalf("invalid run: %d %+v", code, out)
	}

	code, out = doJSON(t, http.MethodPost, srv.URL+"/api/backtest/validate", `{"strategy": "MACDStrategy", "ticker": "IBM", "start_date": "2023-01-01", "end_date": "2023-02-01", "params": {"fast_period": 40}}`)
	res, _ := out.Data.(map[string]any)
	if code != http.StatusOK || res["ok"] != false {
		t.Fatalf("validate: %d %+v", code, out)
	}

	code, out = doJSON(t, http.MethodGet, srv.URL+"/api/backtest/ranges", "")
	ranges, _ := out.Data.(map[string]any)
	if code != http.StatusOK || len(ranges) != 4 || ranges["RSIStrategy"] == nil {
		t.Fatalf("ranges: %d %+v", code, out)
	}
}

func TestBacktestResultsRoute(t *testing.T) {
	b := &fakeBackend{replies: map[string]string{commands.ResourceBacktestResult: `{"success": true, "results": []}`}}
	srv, _ := newTestServer(t, b, models.Snapshot{})

	code, out := doJSON(t, http.MethodGet, srv.URL+"/api/backtest/results", "")
	if code != http.StatusOK || out.Status != StatusNoData {
		t.Fatalf("empty results: %d %+v", code, out)
	}

	b.replies[commands.ResourceBacktestResult] = `{"success": false, "error": "results file missing"}`
	code, out = doJSON(t, http.MethodGet, srv.URL+"/api/backtest/results", "")
	if code != http.StatusBadGateway || out.Status != StatusError {
		t.Fatalf("failed results: %d %+v", code, out)
	}

	b.err = transport.NewNetworkError(commands.ResourceBacktestResult, context.DeadlineExceeded)
	code, _ = doJSON(t, http.MethodGet, srv.URL+"/api/backtest/results", "")
	if code != http.StatusGatewayTimeout {
		t.Fatalf("network error: %d", code)
	}
}

package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	xhttp "ChartPulse/pkg/http"
)

func TestGetHistorySeriesContract(t *testing.T) {
	var got seriesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/history/series" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(seriesResponse{
			OK:          true,
			Bars:        nil,
			FetchedAtMs: 1234,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "TestBroker", "100234", xhttp.NewClient(xhttp.WithTimeout(2*time.Second)))

	res, err := c.GetHistorySeries(context.Background(), "eur/usd", "60", 0, 0, 200)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Symbol != "EURUSD" || got.Resolution != "1h" || got.Limit != 200 {
		t.Fatalf("request not normalized: %+v", got)
	}
	if !res.OK || res.FetchedAtMs != 1234 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.BrokerID != "TestBroker" || res.AccountID != "100234" {
		t.Fatalf("identity not stamped: %+v", res)
	}
}

func TestGetHistorySeriesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "terminal gone", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "TestBroker", "100234", xhttp.NewClient(xhttp.WithTimeout(2*time.Second)))
	if _, err := c.GetHistorySeries(context.Background(), "EURUSD", "1h", 0, 0, 10); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestIdentity(t *testing.T) {
	c := NewClient("http://bridge", "IC Markets", "42", xhttp.NewClient())
	broker, account := c.Identity()
	if broker != "IC Markets" || account != "42" {
		t.Fatalf("unexpected identity %s %s", broker, account)
	}
}

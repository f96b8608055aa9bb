package erp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const testToken = "test-token"

func newTestClient(t *testing.T, handler http.HandlerFunc, pageSize int) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL:  server.URL + "/",
		Token:    testToken,
		PageSize: pageSize,
		Invoice:  InvoiceDefaults{VATCode: "6", ItemCode: "TM", Unit: "*****"},
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("expected an error without a base URL")
	}
}

func TestFetchRowsSendsFilterAndToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Cursor_Voortgang_Projecten_en_fases" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "AfasToken "+testToken {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("filterfieldids") != "Projectnummer" || q.Get("filtervalues") != "P-001" || q.Get("operatortypes") != "1" {
			t.Errorf("unexpected filter query %s", r.URL.RawQuery)
		}
		if q.Get("skip") != "0" || q.Get("take") != "10" {
			t.Errorf("unexpected paging query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"rows":[{"Projectnummer":"P-001","Projectfase":"F1","Budget":2024001}]}`)
	}, 10)

	rows, err := client.FetchRows(context.Background(), "Cursor_Voortgang_Projecten_en_fases", &Filter{Field: "Projectnummer", Value: "P-001"})
	if err != nil {
		t.Fatalf("FetchRows failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if n, ok := rows[0]["Budget"].(json.Number); !ok || n.String() != "2024001" {
		t.Errorf("numbers should decode as json.Number, got %#v", rows[0]["Budget"])
	}
}

func TestFetchRowsWithoutFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("filterfieldids") {
			t.Errorf("no filter expected, got %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"rows":[]}`)
	}, 10)

	rows, err := client.FetchRows(context.Background(), "Cursor_Voortgang_Projecten_per_Projectleider", nil)
	if err != nil {
		t.Fatalf("FetchRows failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestFetchRowsPages(t *testing.T) {
	const total = 7
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		take, _ := strconv.Atoi(r.URL.Query().Get("take"))
		var rows []map[string]any
		for i := skip; i < total && i < skip+take; i++ {
			rows = append(rows, map[string]any{"n": i})
		}
		json.NewEncoder(w).Encode(map[string]any{"rows": rows})
	}, 3)

	rows, err := client.FetchRows(context.Background(), "feed", nil)
	if err != nil {
		t.Fatalf("FetchRows failed: %v", err)
	}
	if len(rows) != total {
		t.Errorf("expected %d rows, got %d", total, len(rows))
	}
	if calls != 3 {
		t.Errorf("expected 3 page requests, got %d", calls)
	}
}

func TestFetchRowsHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"externalMessage":"token expired"}`)
	}, 10)

	_, err := client.FetchRows(context.Background(), "feed", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "token expired" {
		t.Errorf("unexpected api error %+v", apiErr)
	}
	if !IsAPIError(err) {
		t.Error("IsAPIError should report true")
	}
}

func TestFetchRowsEmptyBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, 10)

	_, err := client.FetchRows(context.Background(), "feed", nil)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestFetchRowsInvalidJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>maintenance</html>")
	}, 10)

	if _, err := client.FetchRows(context.Background(), "feed", nil); err == nil {
		t.Fatal("expected an error for a non-JSON body")
	}
}

func TestCreateInvoiceLinePayload(t *testing.T) {
	var payload map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/FbDirectInvoice" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("invalid payload: %v", err)
		}
		fmt.Fprint(w, `{"results":{"FbDirectInvoice":[{"Id":"1"},{"LiIn":"INV-77"}]}}`)
	}, 10)

	result, err := client.CreateInvoiceLine(context.Background(), InvoiceLine{
		ProjectCode: "P-001",
		PhaseCode:   "F1",
		Date:        time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("149.9985"),
	})
	if err != nil {
		t.Fatalf("CreateInvoiceLine failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.InvoiceNumber == nil || *result.InvoiceNumber != "INV-77" {
		t.Errorf("unexpected invoice number %v", result.InvoiceNumber)
	}

	element := payload["FbDirectInvoice"].(map[string]any)["Element"].(map[string]any)
	fields := element["Fields"].(map[string]any)
	if fields["OrDa"] != "2026-03-14" || fields["PrId"] != "P-001" || fields["PrSt"] != "F1" {
		t.Errorf("unexpected header fields %v", fields)
	}
	lines := element["Objects"].([]any)[0].(map[string]any)["FbDirectInvoiceLines"].(map[string]any)
	lineFields := lines["Element"].(map[string]any)["Fields"].(map[string]any)
	if lineFields["Upri"] != "150.00" {
		t.Errorf("amount should be sent rounded to cents, got %v", lineFields["Upri"])
	}
	if lineFields["VaIt"] != "6" || lineFields["ItCd"] != "TM" || lineFields["BiUn"] != "*****" || lineFields["QuUn"] != "1" {
		t.Errorf("unexpected line fields %v", lineFields)
	}
}

func TestCreateInvoiceLineRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"phase is closed"},"message":"generic"}`)
	}, 10)

	result, err := client.CreateInvoiceLine(context.Background(), InvoiceLine{ProjectCode: "P", PhaseCode: "F2", Amount: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatalf("a rejection is not a transport error: %v", err)
	}
	if result.Success {
		t.Fatal("expected Success=false")
	}
	if result.PhaseCode != "F2" {
		t.Errorf("PhaseCode = %q", result.PhaseCode)
	}
	if result.Message != "phase is closed" {
		t.Errorf("Message = %q, want the vendor message", result.Message)
	}
	if want := "afas: 400 Bad Request: phase is closed"; result.Details != want {
		t.Errorf("Details = %q, want %q", result.Details, want)
	}
}

func TestCreateInvoiceLineNonJSONSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "OK")
	}, 10)

	result, err := client.CreateInvoiceLine(context.Background(), InvoiceLine{PhaseCode: "F1", Amount: decimal.NewFromInt(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.InvoiceNumber != nil {
		t.Errorf("expected success without invoice number, got %+v", result)
	}
}

func TestCreateInvoiceLineTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := NewClient(ClientConfig{BaseURL: url, Token: testToken})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := client.CreateInvoiceLine(context.Background(), InvoiceLine{PhaseCode: "F1"}); err == nil {
		t.Fatal("expected a transport error")
	}
}

func TestFindInvoiceNumber(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"results list", `{"results":{"FbDirectInvoice":[{},{"LiIn":"A1"}]}}`, "A1"},
		{"results object", `{"results":{"FbDirectInvoice":{"LiIn":"A2"}}}`, "A2"},
		{"results array", `{"results":[{"LiIn":"A3"}]}`, "A3"},
		{"echoed element", `{"FbDirectInvoice":{"Element":{"Fields":{"LiIn":"A4"}}}}`, "A4"},
		{"numeric", `{"results":[{"LiIn":12345}]}`, "12345"},
		{"missing", `{"results":{}}`, ""},
		{"not an object", `[1,2]`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var decoded any
			if err := json.Unmarshal([]byte(tt.body), &decoded); err != nil {
				t.Fatalf("bad fixture: %v", err)
			}
			if got := findInvoiceNumber(decoded); got != tt.want {
				t.Errorf("findInvoiceNumber = %q, want %q", got, tt.want)
			}
		})
	}
}

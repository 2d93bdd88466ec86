package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bookingsync/pkg/client"
	"bookingsync/pkg/model"
)

func TestParseRequest(t *testing.T) {
	doc := `
resource_id: room-101
user_id: user-7
check_in: 2026-06-10T14:00:00Z
check_out: "2026-06-12T11:00:00Z"
guests: 2
total_amount: 240.5
currency: EUR
contact:
  name: Dana
  email: dana@example.com
`
	req, err := parseRequest([]byte(doc))
	if err != nil {
		t.Fatalf("parseRequest() error = %v", err)
	}

	wantIn := time.Date(2026, 6, 10, 14, 0, 0, 0, time.UTC)
	if req.ResourceID != "room-101" || req.Guests != 2 || req.TotalAmount != 240.5 {
		t.Errorf("request = %+v", req)
	}
	if !req.CheckIn.Equal(wantIn) || !req.CheckOut.After(req.CheckIn) {
		t.Errorf("dates = %v .. %v", req.CheckIn, req.CheckOut)
	}
	if req.Contact.Email != "dana@example.com" {
		t.Errorf("contact = %+v", req.Contact)
	}

	if _, err := parseRequest([]byte("guests: [1")); err == nil {
		t.Errorf("malformed document should fail")
	}
}

func TestPrinter_Formats(t *testing.T) {
	intents := []model.BookingIntent{{
		ID:             "a",
		BookingRequest: model.BookingRequest{ResourceID: "room-101", Guests: 2},
		Status:         model.StatusFailed,
		LastError:      "no alternative dates",
	}}

	tests := []struct {
		format string
		want   []string
	}{
		{"table", []string{"STATUS", "failed", "no alternative dates"}},
		{"json", []string{`"resource_id": "room-101"`, `"status": "failed"`}},
		{"yaml", []string{"resource_id: room-101", "status: failed"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := newPrinter(&buf, tt.format).intents(intents); err != nil {
				t.Fatalf("intents() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}

	var buf bytes.Buffer
	report := &client.SyncReport{SkipReason: "offline"}
	if err := newPrinter(&buf, "table").syncReport(report); err != nil || !strings.Contains(buf.String(), "offline") {
		t.Errorf("syncReport() = %q, %v", buf.String(), err)
	}
}

func TestRun_Commands(t *testing.T) {
	var gotPath, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		switch r.URL.Path {
		case "/api/v1/intents/pending/count":
			_, _ = w.Write([]byte(`{"data":{"pending":2}}`))
		case "/api/v1/connectivity":
			_, _ = w.Write([]byte(`{"data":{"online":false}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--addr", server.URL, "count"}, &stdout, &stderr); err != nil {
		t.Fatalf("count error = %v", err)
	}
	if strings.TrimSpace(stdout.String()) != "2" {
		t.Errorf("count output = %q", stdout.String())
	}

	if err := run([]string{"--addr", server.URL, "offline"}, &stdout, &stderr); err != nil {
		t.Fatalf("offline error = %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/api/v1/connectivity" {
		t.Errorf("offline sent %s %s", gotMethod, gotPath)
	}

	if err := run([]string{"--addr", server.URL, "get"}, &stdout, &stderr); err == nil {
		t.Errorf("get without an id should fail")
	}
	if err := run([]string{"--addr", server.URL, "bogus"}, &stdout, &stderr); err == nil {
		t.Errorf("unknown command should fail")
	}
}

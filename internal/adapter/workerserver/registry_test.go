package workerserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"food-router/internal/domain"
	"food-router/internal/infra/config"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry("rider", "Delivery estimates", "v1", slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := reg.Register(Skill{
		Kind:        domain.KindETA,
		Description: "eta",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"origin": {"type": "string"}, "destination": {"type": "string"}},
			"required": ["origin", "destination"]
		}`),
		Handle: func(_ context.Context, fields map[string]any) (any, error) {
			switch fields["origin"] {
			case "nowhere":
				return nil, Business("test.eta", "no route found")
			case "crash":
				return nil, errors.New("database is locked")
			}
			return domain.EtaPayload{Origin: fields["origin"].(string), Destination: fields["destination"].(string), EtaMinutes: 12}, nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return reg
}

func TestRegistryRejectsBadSkills(t *testing.T) {
	reg := newTestRegistry(t)
	handle := func(context.Context, map[string]any) (any, error) { return nil, nil }

	if err := reg.Register(Skill{Kind: domain.KindETA, Handle: handle}); err == nil {
		t.Error("duplicate kind registered")
	}
	if err := reg.Register(Skill{Kind: domain.KindMenu}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("missing handler: got %v", err)
	}
	if err := reg.Register(Skill{Kind: domain.KindMenu, Handle: handle, Schema: json.RawMessage(`{"type":`)}); err == nil {
		t.Error("invalid schema compiled")
	}
	if got := reg.Card().Skills; len(got) != 1 || got[0] != domain.KindETA {
		t.Errorf("Card().Skills = %v", got)
	}
}

func TestRegistryExecute(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		req        domain.WireRequest
		wantStatus string
		wantError  string
	}{
		{
			name:       "ok",
			req:        domain.WireRequest{ID: "1", Kind: domain.KindETA, Fields: map[string]any{"origin": "a", "destination": "b"}},
			wantStatus: domain.StatusOK,
		},
		{
			name:       "business failure",
			req:        domain.WireRequest{ID: "2", Kind: domain.KindETA, Fields: map[string]any{"origin": "nowhere", "destination": "b"}},
			wantStatus: domain.StatusError,
			wantError:  "no route found",
		},
		{
			name:       "schema violation",
			req:        domain.WireRequest{ID: "3", Kind: domain.KindETA, Fields: map[string]any{"origin": "a"}},
			wantStatus: domain.StatusError,
			wantError:  "invalid fields for eta_query",
		},
		{
			name:       "unknown kind",
			req:        domain.WireRequest{ID: "4", Kind: domain.KindMenu},
			wantStatus: domain.StatusError,
			wantError:  "menu_query",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := reg.Execute(ctx, tt.req)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if resp.ID != tt.req.ID {
				t.Errorf("ID = %q, want %q", resp.ID, tt.req.ID)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q (error %q)", resp.Status, tt.wantStatus, resp.Error)
			}
			if !strings.Contains(resp.Error, tt.wantError) {
				t.Errorf("Error = %q, want it to contain %q", resp.Error, tt.wantError)
			}
		})
	}

	_, err := reg.Execute(ctx, domain.WireRequest{ID: "5", Kind: domain.KindETA, Fields: map[string]any{"origin": "crash", "destination": "b"}})
	if err == nil {
		t.Error("internal fault reported as a reply")
	}
}

func TestHTTPHandler(t *testing.T) {
	srv := httptest.NewServer(New(newTestRegistry(t), config.WorkerServerConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil))).Handler())
	defer srv.Close()

	post := func(body string) (*http.Response, domain.WireResponse) {
		t.Helper()
		resp, err := http.Post(srv.URL+tasksPath, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		defer resp.Body.Close()
		var out domain.WireResponse
		json.NewDecoder(resp.Body).Decode(&out)
		return resp, out
	}

	resp, out := post(`{"id":"a1","kind":"eta_query","fields":{"origin":"x","destination":"y"}}`)
	if resp.StatusCode != http.StatusOK || out.Status != domain.StatusOK || out.ID != "a1" {
		t.Errorf("ok call: http %d, %+v", resp.StatusCode, out)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("security headers missing: %q", got)
	}

	resp, out = post(`{"id":"a2","kind":"eta_query","fields":{"origin":"nowhere","destination":"y"}}`)
	if resp.StatusCode != http.StatusOK || out.Error != "no route found" {
		t.Errorf("business call: http %d, %+v", resp.StatusCode, out)
	}

	resp, out = post(`{not json`)
	if resp.StatusCode != http.StatusBadRequest || out.Status != domain.StatusError {
		t.Errorf("bad body: http %d, %+v", resp.StatusCode, out)
	}

	resp, _ = post(`{"id":"a3","kind":"eta_query","fields":{"origin":"crash","destination":"y"}}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("internal fault: http %d", resp.StatusCode)
	}

	cardResp, err := http.Get(srv.URL + cardPath)
	if err != nil {
		t.Fatalf("GET card: %v", err)
	}
	defer cardResp.Body.Close()
	var card domain.AgentCard
	if err := json.NewDecoder(cardResp.Body).Decode(&card); err != nil {
		t.Fatalf("decode card: %v", err)
	}
	if card.Name != "rider" || !card.Supports(domain.KindETA) {
		t.Errorf("card = %+v", card)
	}

	if r, err := http.Get(srv.URL + "/mcp"); err == nil {
		r.Body.Close()
		if r.StatusCode != http.StatusNotFound {
			t.Errorf("mcp disabled but /mcp answered %d", r.StatusCode)
		}
	}
}

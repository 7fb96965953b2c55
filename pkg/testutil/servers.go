package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
)

// SafeGateway is a fake Safe client gateway serving a fixed list of message pages
type SafeGateway struct {
	Server *httptest.Server

	mu       sync.Mutex
	pages    [][]*types.RawStoredMessage
	requests map[int]int
	failPage int
}

// NewSafeGateway starts a gateway serving pages; page i links to page i+1
func NewSafeGateway(t *testing.T, pages ...[]*types.RawStoredMessage) *SafeGateway {
	t.Helper()
	g := &SafeGateway{
		pages:    pages,
		requests: make(map[int]int),
		failPage: -1,
	}
	g.Server = httptest.NewServer(http.HandlerFunc(g.handle))
	t.Cleanup(g.Server.Close)
	return g
}

// URL returns the first page URL
func (g *SafeGateway) URL() string {
	return g.pageURL(0)
}

// FailPage makes the given page answer with a 500
func (g *SafeGateway) FailPage(page int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failPage = page
}

// Requests returns how many times a page was served
func (g *SafeGateway) Requests(page int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[page]
}

func (g *SafeGateway) pageURL(page int) string {
	return fmt.Sprintf("%s/messages?page=%d", g.Server.URL, page)
}

func (g *SafeGateway) handle(w http.ResponseWriter, r *http.Request) {
	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "bad page", http.StatusBadRequest)
			return
		}
		page = parsed
	}

	g.mu.Lock()
	g.requests[page]++
	fail := g.failPage == page
	g.mu.Unlock()

	if fail {
		http.Error(w, `{"detail":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if page < 0 || page >= len(g.pages) {
		http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
		return
	}

	resp := types.MessagePage{Results: g.pages[page]}
	if resp.Results == nil {
		resp.Results = []*types.RawStoredMessage{}
	}
	if page+1 < len(g.pages) {
		next := g.pageURL(page + 1)
		resp.Next = &next
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// SequencerResponder decides the status and JSON body answered for a submission
type SequencerResponder func(payload map[string]interface{}) (int, interface{})

// Sequencer is a fake Snapshot sequencer recording every submission
type Sequencer struct {
	Server *httptest.Server

	mu        sync.Mutex
	responder SequencerResponder
	received  []map[string]interface{}
}

// NewSequencer starts a sequencer; a nil responder accepts everything
func NewSequencer(t *testing.T, responder SequencerResponder) *Sequencer {
	t.Helper()
	if responder == nil {
		responder = AcceptAll
	}
	s := &Sequencer{responder: responder}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Server.Close)
	return s
}

// AcceptAll answers 200 with a receipt naming the submitted signature
func AcceptAll(payload map[string]interface{}) (int, interface{}) {
	return http.StatusOK, map[string]interface{}{
		"id": payload["sig"],
		"relayer": map[string]interface{}{
			"address": "0x0000000000000000000000000000000000000000",
		},
	}
}

// URL returns the intake URL
func (s *Sequencer) URL() string {
	return s.Server.URL
}

// Received returns the decoded submissions in arrival order
func (s *Sequencer) Received() []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]interface{}, len(s.received))
	copy(out, s.received)
	return out
}

func (s *Sequencer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.received = append(s.received, payload)
	responder := s.responder
	s.mu.Unlock()

	status, resp := responder(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if raw, ok := resp.(string); ok {
		_, _ = w.Write([]byte(raw))
		return
	}
	_ = json.NewEncoder(w).Encode(resp)
}

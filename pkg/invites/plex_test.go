package invites

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type plexServer struct {
	mut      sync.Mutex
	shares   []shareRequest
	removed  []string
	accepts  map[string]string
	shareErr bool
}

func (p *plexServer) accept(r *http.Request) {
	p.mut.Lock()
	defer p.mut.Unlock()
	if p.accepts == nil {
		p.accepts = make(map[string]string)
	}
	p.accepts[r.Method+" "+r.URL.Path] = r.Header.Get("Accept")
}

func (p *plexServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/servers/machine/shared_servers", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "token", r.Header.Get("X-Plex-Token"))
		p.accept(r)

		p.mut.Lock()
		defer p.mut.Unlock()
		if p.shareErr {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, "already shared")
			return
		}

		req := shareRequest{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		p.shares = append(p.shares, req)
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		p.accept(r)

		// plex.tv answers JSON when asked for it.
		if strings.Contains(r.Header.Get("Accept"), "json") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"MediaContainer":{"size":0}}`)
			return
		}

		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer friendlyName="myPlex" size="2">
  <User id="111" title="alice" username="alice" email="Alice@example.com"/>
  <User id="222" title="bob" username="bob" email="bob@example.com"/>
</MediaContainer>`)
	})

	mux.HandleFunc("/api/friends/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		p.accept(r)
		p.mut.Lock()
		defer p.mut.Unlock()
		p.removed = append(p.removed, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func TestPlexClient_Invite(t *testing.T) {
	ps := new(plexServer)
	srv := httptest.NewServer(ps.handler(t))
	defer srv.Close()

	c := NewPlexClient(srv.URL, "token", "machine", []int{1, 2})
	require.NoError(t, c.Invite(context.Background(), "new@example.com"))

	require.Len(t, ps.shares, 1)
	require.Equal(t, "machine", ps.shares[0].ServerID)
	require.Equal(t, "new@example.com", ps.shares[0].SharedServer.InvitedEmail)
	require.Equal(t, []int{1, 2}, ps.shares[0].SharedServer.LibrarySectionIDs)
}

func TestPlexClient_InviteError(t *testing.T) {
	ps := &plexServer{shareErr: true}
	srv := httptest.NewServer(ps.handler(t))
	defer srv.Close()

	err := NewPlexClient(srv.URL, "token", "machine", nil).Invite(context.Background(), "new@example.com")
	require.ErrorContains(t, err, "400")
	require.ErrorContains(t, err, "already shared")
}

func TestPlexClient_Remove(t *testing.T) {
	ps := new(plexServer)
	srv := httptest.NewServer(ps.handler(t))
	defer srv.Close()

	c := NewPlexClient(srv.URL, "token", "machine", nil)
	require.NoError(t, c.Remove(context.Background(), "alice@example.com"))
	require.Equal(t, []string{"/api/friends/111"}, ps.removed)

	require.ErrorIs(t, c.Remove(context.Background(), "nobody@example.com"), ErrPlexUserNotFound)
}

func TestPlexClient_AcceptHeaders(t *testing.T) {
	ps := new(plexServer)
	srv := httptest.NewServer(ps.handler(t))
	defer srv.Close()

	c := NewPlexClient(srv.URL, "token", "machine", nil)
	require.NoError(t, c.Invite(context.Background(), "new@example.com"))
	require.NoError(t, c.Remove(context.Background(), "bob@example.com"))

	require.Equal(t, map[string]string{
		"POST /api/servers/machine/shared_servers": "application/json",
		"GET /api/users":                           "application/xml",
		"DELETE /api/friends/222":                  "application/xml",
	}, ps.accepts)
}

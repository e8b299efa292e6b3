package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Jacobbrewer1/plexcord/cmd/bot/config"
	"github.com/Jacobbrewer1/plexcord/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/plexcord/pkg/entities"
	"github.com/Jacobbrewer1/plexcord/pkg/request"
	"github.com/Jacobbrewer1/plexcord/pkg/tickets"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func (ta *testApp) do(method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, body)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ta.r.ServeHTTP(w, r)
	return w
}

func (ta *testApp) token(t *testing.T) string {
	t.Helper()

	w := ta.do(http.MethodPost, PathLogin, strings.NewReader(`{"username":"admin","password":"secret"}`), "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := new(loginResponse)
	require.NoError(t, json.NewDecoder(w.Body).Decode(resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) *T {
	t.Helper()
	v := new(T)
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
	return v
}

func TestLogin(t *testing.T) {
	ta := newTestApp(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "valid", body: `{"username":"admin","password":"secret"}`, status: http.StatusOK},
		{name: "wrong password", body: `{"username":"admin","password":"nope"}`, status: http.StatusUnauthorized},
		{name: "wrong user", body: `{"username":"root","password":"secret"}`, status: http.StatusUnauthorized},
		{name: "bad body", body: `{`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ta.do(http.MethodPost, PathLogin, strings.NewReader(tt.body), "")
			require.Equal(t, tt.status, w.Code)
			require.NotEmpty(t, w.Header().Get(headerRequestID))
		})
	}
}

func TestAPI_RequiresToken(t *testing.T) {
	ta := newTestApp(t)

	for _, path := range []string{PathTickets, PathInvites, "/api/tickets/12345"} {
		w := ta.do(http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusUnauthorized, w.Code, path)

		w = ta.do(http.MethodGet, path, nil, "not-a-token")
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestAPI_NoSecretRejectsLogin(t *testing.T) {
	ta := newTestApp(t, func(c *config.Config) { c.APISecret = "" })

	w := ta.do(http.MethodPost, PathLogin, strings.NewReader(`{"username":"admin","password":"secret"}`), "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListTickets(t *testing.T) {
	ta := newTestApp(t)
	token := ta.token(t)

	first := ta.createTicket(t)
	second := ta.createTicket(t)

	_, err := ta.manager.Claim(context.Background(), tickets.Ref{GuildID: testGuild, ChannelID: second.ChannelID}, tickets.Actor{ID: testStaff})
	require.NoError(t, err)

	w := ta.do(http.MethodGet, PathTickets, nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	page := decode[ticketPage](t, w)
	require.EqualValues(t, 2, page.Total)
	require.Len(t, page.Tickets, 2)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 25, page.PerPage)

	for _, v := range page.Tickets {
		require.Equal(t, "name-"+testUser, v.MemberName)
		require.Equal(t, "channel-name-"+v.ChannelID, v.ChannelName)
	}

	tests := []struct {
		name   string
		query  string
		status int
		want   []int
	}{
		{name: "open", query: "?status=open", status: http.StatusOK, want: []int{first.TicketID}},
		{name: "claimed", query: "?status=claimed", status: http.StatusOK, want: []int{second.TicketID}},
		{name: "search by number", query: fmt.Sprintf("?search=%d", first.TicketID), status: http.StatusOK, want: []int{first.TicketID}},
		{name: "other category", query: "?category=tv", status: http.StatusOK, want: []int{}},
		{name: "bad status", query: "?status=pending", status: http.StatusBadRequest},
		{name: "bad page", query: "?page=two", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ta.do(http.MethodGet, PathTickets+tt.query, nil, token)
			require.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				return
			}

			got := make([]int, 0)
			for _, v := range decode[ticketPage](t, w).Tickets {
				got = append(got, v.TicketID)
			}
			require.ElementsMatch(t, tt.want, got)
		})
	}

	t.Run("claimed by name", func(t *testing.T) {
		w := ta.do(http.MethodGet, fmt.Sprintf("/api/tickets/%d", second.TicketID), nil, token)
		require.Equal(t, http.StatusOK, w.Code)

		v := decode[ticketView](t, w)
		require.Equal(t, entities.StatusClaimed, v.Status)
		require.Equal(t, "name-"+testStaff, v.ClaimedByName)
	})
}

func TestTicketView_ChannelNameFallback(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	tk := &entities.Ticket{ChannelID: "deleted-1", TicketID: 12345, Category: entities.CategoryPlex, Type: "support", MemberID: testUser}
	require.Equal(t, "plex-support-12345", ta.view(ctx, tk).ChannelName)

	tk.ChannelID = "live"
	require.Equal(t, "channel-name-live", ta.view(ctx, tk).ChannelName)

	tk.Closed = true
	require.Equal(t, "plex-support-12345", ta.view(ctx, tk).ChannelName)
}

func TestGetTicket_NotFound(t *testing.T) {
	ta := newTestApp(t)
	token := ta.token(t)

	w := ta.do(http.MethodGet, "/api/tickets/12345", nil, token)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = ta.do(http.MethodGet, "/api/tickets/1", nil, token)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCloseTicket(t *testing.T) {
	ta := newTestApp(t)
	token := ta.token(t)
	tk := ta.createTicket(t)
	path := fmt.Sprintf("/api/tickets/%d/close", tk.TicketID)

	w := ta.do(http.MethodPost, path, nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	res := decode[request.Result](t, w)
	require.True(t, res.Success)
	require.Equal(t, fmt.Sprintf("Ticket %d closed.", tk.TicketID), res.Message)

	stored, err := ta.store.Tickets.GetTicketByID(context.Background(), tk.TicketID)
	require.NoError(t, err)
	require.True(t, stored.Closed)
	require.Equal(t, tickets.DashboardActorPrefix+testAdmin, stored.ClosedBy)

	require.Len(t, ta.chat.sentTo("transcripts"), 1)
	require.Eventually(t, func() bool {
		ta.chat.mut.Lock()
		defer ta.chat.mut.Unlock()
		return len(ta.chat.deleted) == 1 && ta.chat.deleted[0] == tk.ChannelID
	}, time.Second, 5*time.Millisecond)

	// Closing again is a conflict.
	w = ta.do(http.MethodPost, path, nil, token)
	require.Equal(t, http.StatusConflict, w.Code)
	res = decode[request.Result](t, w)
	require.False(t, res.Success)
	require.NotEmpty(t, res.Message)

	// The dashboard sees the closer by name.
	w = ta.do(http.MethodGet, fmt.Sprintf("/api/tickets/%d", tk.TicketID), nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, testAdmin, decode[ticketView](t, w).ClosedByName)
}

func TestCloseTicket_Errors(t *testing.T) {
	ta := newTestApp(t)
	token := ta.token(t)

	w := ta.do(http.MethodPost, "/api/tickets/54321/close", nil, token)
	require.Equal(t, http.StatusNotFound, w.Code)

	// No history means no transcript, so the ticket stays open.
	tk, err := ta.manager.Create(context.Background(), tickets.CreateRequest{
		GuildID: testGuild, Category: entities.CategoryPlex, Label: "support", UserID: testUser,
	})
	require.NoError(t, err)

	w = ta.do(http.MethodPost, fmt.Sprintf("/api/tickets/%d/close", tk.TicketID), nil, token)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	stored, err := ta.store.Tickets.GetTicketByID(context.Background(), tk.TicketID)
	require.NoError(t, err)
	require.False(t, stored.Closed)
}

func TestCloseTicket_Timeout(t *testing.T) {
	ta := newTestApp(t, func(c *config.Config) { c.BridgeTimeout = 50 * time.Millisecond })
	token := ta.token(t)
	tk := ta.createTicket(t)

	// Keep the only worker busy.
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = ta.bridge.Call(context.Background(), time.Minute, func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	w := ta.do(http.MethodPost, fmt.Sprintf("/api/tickets/%d/close", tk.TicketID), nil, token)
	require.Equal(t, http.StatusGatewayTimeout, w.Code)
	require.False(t, decode[request.Result](t, w).Success)
}

func TestCloseStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: tickets.ErrNotTicket, want: http.StatusNotFound},
		{err: tickets.ErrForbidden, want: http.StatusForbidden},
		{err: tickets.ErrAlreadyClosed, want: http.StatusConflict},
		{err: tickets.ErrConcurrentUpdate, want: http.StatusConflict},
		{err: fmt.Errorf("wrapped: %w", tickets.ErrTranscriptEmpty), want: http.StatusUnprocessableEntity},
		{err: tickets.ErrPanelNotConfigured, want: http.StatusUnprocessableEntity},
		{err: fmt.Errorf("other"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			require.Equal(t, tt.want, closeStatus(tt.err))
		})
	}
}

func TestListInvites(t *testing.T) {
	ta := newTestApp(t)
	token := ta.token(t)

	_, err := ta.invites.Invite(context.Background(), testUser, "user@example.com")
	require.NoError(t, err)

	w := ta.do(http.MethodGet, PathInvites+"?status=active", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[[]*entities.Invite](t, w)
	require.Len(t, *got, 1)
	require.Equal(t, "user@example.com", (*got)[0].Email)

	w = ta.do(http.MethodGet, PathInvites+"?status=revoked", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, *decode[[]*entities.Invite](t, w))

	w = ta.do(http.MethodGet, PathInvites+"?status=pending", nil, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	ta := newTestApp(t)

	limiter, err := newClientLimiter(1)
	require.NoError(t, err)
	ta.limiter = limiter

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, ta.do(http.MethodGet, PathTickets, nil, "").Code)
	}
	require.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

func kofiForm(payload string) io.Reader {
	return strings.NewReader(url.Values{"data": {payload}}.Encode())
}

func TestKofiWebhook(t *testing.T) {
	tests := []struct {
		name     string
		body     io.Reader
		status   int
		announce bool
	}{
		{
			name:     "donation",
			body:     kofiForm(`{"verification_token":"kofi-token","message_id":"m1","type":"Donation","is_public":true,"from_name":"Jo","message":"Thanks!","amount":"3.00","currency":"USD"}`),
			status:   http.StatusOK,
			announce: true,
		},
		{
			name:   "wrong token",
			body:   kofiForm(`{"verification_token":"nope","type":"Donation"}`),
			status: http.StatusUnauthorized,
		},
		{
			name:   "missing data",
			body:   strings.NewReader("other=1"),
			status: http.StatusBadRequest,
		},
		{
			name:   "bad json",
			body:   kofiForm(`{`),
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)

			r := httptest.NewRequest(http.MethodPost, PathKofi, tt.body)
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()
			ta.r.ServeHTTP(w, r)

			require.Equal(t, tt.status, w.Code)

			sent := ta.chat.sentTo("donations")
			if !tt.announce {
				require.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			require.Equal(t, "Jo sent a Donation!", sent[0].Msg.Embeds[0].Title)
			require.Equal(t, "Thanks!", sent[0].Msg.Embeds[0].Description)
		})
	}
}

func TestDonationMessage_Private(t *testing.T) {
	msg := donationMessage(&kofiPayload{
		Type:                  "Subscription",
		FromName:              "Jo",
		Message:               "secret",
		Amount:                "5.00",
		Currency:              "GBP",
		IsSubscriptionPayment: true,
		TierName:              "Gold",
	})

	require.Equal(t, "Someone subscribed to Gold!", msg.Embeds[0].Title)
	require.Empty(t, msg.Embeds[0].Description)
	require.Equal(t, "5.00 GBP", msg.Embeds[0].Fields[0].Value)
}

func TestNotFound(t *testing.T) {
	ta := newTestApp(t)

	w := ta.do(http.MethodGet, "/nope", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = ta.do(http.MethodDelete, PathLogin, nil, "")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestMiddleware_PanicCountedAsServerError(t *testing.T) {
	ta := newTestApp(t)

	h := ta.middlewareHttp(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}, authOptionNone)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/panicking", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, float64(1), testutil.ToFloat64(monitoring.HttpTotalRequests.WithLabelValues("/panicking", http.MethodGet, "500")))
	require.Zero(t, testutil.ToFloat64(monitoring.HttpTotalRequests.WithLabelValues("/panicking", http.MethodGet, "200")))
}

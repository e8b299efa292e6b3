package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Jacobbrewer1/plexcord/pkg/auth"
	"github.com/Jacobbrewer1/plexcord/pkg/bridge"
	"github.com/Jacobbrewer1/plexcord/pkg/dataaccess"
	"github.com/Jacobbrewer1/plexcord/pkg/entities"
	"github.com/Jacobbrewer1/plexcord/pkg/invites"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
	"github.com/Jacobbrewer1/plexcord/pkg/request"
	"github.com/Jacobbrewer1/plexcord/pkg/tickets"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// PathMetrics is the path for metrics.
	PathMetrics = "/metrics"

	// PathHealth is the path for health check.
	PathHealth = "/health"

	PathLogin       = "/api/login"
	PathTickets     = "/api/tickets"
	PathTicket      = "/api/tickets/{ticket_id:[0-9]+}"
	PathTicketClose = "/api/tickets/{ticket_id:[0-9]+}/close"
	PathInvites     = "/api/invites"
	PathKofi        = "/webhooks/kofi"
)

func (a *App) setupRoutes() {
	a.r.HandleFunc(PathMetrics, promhttp.Handler().ServeHTTP).Methods(http.MethodGet)
	a.r.HandleFunc(PathHealth, a.middlewareHttp(a.healthCheck(), authOptionNone)).Methods(http.MethodGet)

	a.r.HandleFunc(PathLogin, a.middlewareHttp(a.login, authOptionNone)).Methods(http.MethodPost)
	a.r.HandleFunc(PathTickets, a.middlewareHttp(a.listTickets, authOptionRequired)).Methods(http.MethodGet)
	a.r.HandleFunc(PathTicket, a.middlewareHttp(a.getTicket, authOptionRequired)).Methods(http.MethodGet)
	a.r.HandleFunc(PathTicketClose, a.middlewareHttp(a.closeTicket, authOptionRequired)).Methods(http.MethodPost)
	a.r.HandleFunc(PathInvites, a.middlewareHttp(a.listInvites, authOptionRequired)).Methods(http.MethodGet)
	a.r.HandleFunc(PathKofi, a.middlewareHttp(a.kofiWebhook, authOptionNone)).Methods(http.MethodPost)

	// NotFoundHandler is the handler for 404.
	a.r.NotFoundHandler = request.NotFoundHandler(a.Logger)

	// MethodNotAllowedHandler is the handler for 405.
	a.r.MethodNotAllowedHandler = request.MethodNotAllowedHandler(a.Logger)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	req := new(loginRequest)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		request.Encode(a.Logger, w, http.StatusBadRequest, request.NewMessageError("Invalid request body", err))
		return
	}

	if a.tokens == nil {
		request.Encode(a.Logger, w, http.StatusUnauthorized, request.NewMessage(request.ErrUnauthorized.Error()))
		return
	}

	if err := a.creds.Check(req.Username, req.Password); err != nil {
		a.Info("Failed dashboard login",
			slog.String("username", req.Username),
			slog.String(logging.KeyRequestID, requestIDFromContext(r.Context())))
		request.Encode(a.Logger, w, http.StatusUnauthorized, request.NewMessage(auth.ErrInvalidCredentials.Error()))
		return
	}

	token, expires, err := a.tokens.GenerateToken(req.Username)
	if err != nil {
		a.Error("Error generating token", slog.String(logging.KeyError, err.Error()))
		request.Encode(a.Logger, w, http.StatusInternalServerError, request.NewMessage(request.ErrInternalServer.Error()))
		return
	}

	request.Encode(a.Logger, w, http.StatusOK, &loginResponse{Token: token, ExpiresAt: expires})
}

// ticketView is a ticket with the names the dashboard shows.
type ticketView struct {
	*entities.Ticket
	Status        string `json:"status"`
	ChannelName   string `json:"channel_name"`
	MemberName    string `json:"member_name"`
	CreatedByName string `json:"created_by_name"`
	ClaimedByName string `json:"claimed_by_name,omitempty"`
	ClosedByName  string `json:"closed_by_name,omitempty"`
}

type ticketPage struct {
	Tickets []*ticketView `json:"tickets"`
	Total   int64         `json:"total"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
}

func (a *App) view(ctx context.Context, t *entities.Ticket) *ticketView {
	v := &ticketView{
		Ticket:        t,
		Status:        t.Status(),
		MemberName:    a.names.UserName(ctx, t.MemberID),
		CreatedByName: a.names.UserName(ctx, t.CreatedBy),
		ClaimedByName: a.actorName(ctx, t.ClaimedBy),
		ClosedByName:  a.actorName(ctx, t.ClosedBy),
	}
	if !t.Closed {
		v.ChannelName = a.names.ChannelName(ctx, t.ChannelID)
	}
	if v.ChannelName == "" {
		v.ChannelName = t.Name()
	}
	return v
}

// actorName resolves a user ID or returns a dashboard user's name.
func (a *App) actorName(ctx context.Context, id string) string {
	if name, ok := cutDashboardActor(id); ok {
		return name
	}
	return a.names.UserName(ctx, id)
}

func cutDashboardActor(id string) (string, bool) {
	return strings.CutPrefix(id, tickets.DashboardActorPrefix)
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func (a *App) listTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := q.Get("status")
	switch status {
	case "", entities.StatusOpen, entities.StatusLocked, entities.StatusClaimed, entities.StatusClosed:
	default:
		request.Encode(a.Logger, w, http.StatusBadRequest, request.NewMessage("Unknown status %q", status))
		return
	}

	page, err := queryInt(r, "page")
	if err != nil {
		request.Encode(a.Logger, w, http.StatusBadRequest, request.NewMessageError("Invalid page", err))
		return
	}

	perPage, err := queryInt(r, "per_page")
	if err != nil {
		request.Encode(a.Logger, w, http.StatusBadRequest, request.NewMessageError("Invalid per_page", err))
		return
	}

	filter := &dataaccess.TicketFilter{
		GuildID:  a.cfg.GuildId,
		Status:   status,
		Type:     q.Get("type"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Page:     page,
		PerPage:  perPage,
	}

	found, total, err := a.store.Tickets.ListTickets(r.Context(), filter)
	if err != nil {
		a.Error("Error listing tickets", slog.String(logging.KeyError, err.Error()))
		request.Encode(a.Logger, w, http.StatusInternalServerError, request.NewMessage(request.ErrInternalServer.Error()))
		return
	}

	resp := &ticketPage{
		Tickets: make([]*ticketView, 0, len(found)),
		Total:   total,
		Page:    filter.Page,
		PerPage: filter.PerPage,
	}
	for _, t := range found {
		resp.Tickets = append(resp.Tickets, a.view(r.Context(), t))
	}

	request.Encode(a.Logger, w, http.StatusOK, resp)
}

func ticketIDFromPath(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["ticket_id"])
	if err != nil || id < entities.MinTicketID || id > entities.MaxTicketID {
		return 0, false
	}
	return id, true
}

func (a *App) getTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketIDFromPath(r)
	if !ok {
		request.Encode(a.Logger, w, http.StatusNotFound, request.NewMessage(tickets.ErrNotTicket.Error()))
		return
	}

	t, err := a.store.Tickets.GetTicketByID(r.Context(), id)
	if errors.Is(err, dataaccess.ErrNotFound) || (err == nil && a.cfg.GuildId != "" && t.GuildID != a.cfg.GuildId) {
		request.Encode(a.Logger, w, http.StatusNotFound, request.NewMessage(tickets.ErrNotTicket.Error()))
		return
	} else if err != nil {
		a.Error("Error getting ticket", slog.Int(logging.KeyTicketID, id), slog.String(logging.KeyError, err.Error()))
		request.Encode(a.Logger, w, http.StatusInternalServerError, request.NewMessage(request.ErrInternalServer.Error()))
		return
	}

	request.Encode(a.Logger, w, http.StatusOK, a.view(r.Context(), t))
}

// closeTicket closes a ticket through the bridge, so it runs exactly like the
// Close button.
func (a *App) closeTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketIDFromPath(r)
	if !ok {
		request.Encode(a.Logger, w, http.StatusNotFound, &request.Result{Message: tickets.UserMessage(tickets.ErrNotTicket)})
		return
	}

	actor := tickets.DashboardActor(usernameFromContext(r.Context()))
	ref := tickets.Ref{GuildID: a.cfg.GuildId, TicketID: id}

	var res *tickets.Result
	err := a.bridge.Call(r.Context(), a.cfg.BridgeTimeout, func(ctx context.Context) error {
		got, err := a.manager.Close(ctx, ref, actor)
		res = got
		return err
	})
	if err != nil {
		a.logTicketError("Error closing ticket from API", err,
			slog.Int(logging.KeyTicketID, id),
			slog.String("actor", actor.ID),
			slog.String(logging.KeyRequestID, requestIDFromContext(r.Context())))
		request.Encode(a.Logger, w, closeStatus(err), &request.Result{Message: tickets.UserMessage(err)})
		return
	}

	request.Encode(a.Logger, w, http.StatusOK, &request.Result{Success: true, Message: res.Message})
}

// closeStatus maps a close failure to an HTTP status.
func closeStatus(err error) int {
	switch {
	case errors.Is(err, tickets.ErrNotTicket):
		return http.StatusNotFound
	case errors.Is(err, tickets.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, tickets.ErrAlreadyClosed), tickets.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, tickets.ErrTranscriptEmpty), errors.Is(err, tickets.ErrPanelNotConfigured):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bridge.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (a *App) listInvites(w http.ResponseWriter, r *http.Request) {
	status := entities.InviteStatus(r.URL.Query().Get("status"))

	found, err := a.invites.List(r.Context(), status)
	if errors.Is(err, invites.ErrInvalidStatus) {
		request.Encode(a.Logger, w, http.StatusBadRequest, request.NewMessage("Unknown status %q", status))
		return
	} else if err != nil {
		a.Error("Error listing invites", slog.String(logging.KeyError, err.Error()))
		request.Encode(a.Logger, w, http.StatusInternalServerError, request.NewMessage(request.ErrInternalServer.Error()))
		return
	}

	if found == nil {
		found = make([]*entities.Invite, 0)
	}
	request.Encode(a.Logger, w, http.StatusOK, found)
}

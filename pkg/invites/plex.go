package invites

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultPlexURL is the Plex account service.
	DefaultPlexURL = "https://plex.tv"

	plexTimeout = 15 * time.Second

	mimeJSON = "application/json"
	mimeXML  = "application/xml"
)

// ErrPlexUserNotFound is returned when no Plex friend has the email.
var ErrPlexUserNotFound = errors.New("plex user not found")

// Provisioner grants and removes media server access.
type Provisioner interface {
	Invite(ctx context.Context, email string) error
	Remove(ctx context.Context, email string) error
}

// PlexClient shares a Plex server through the plex.tv API.
type PlexClient struct {
	baseURL   string
	token     string
	serverID  string
	libraries []int
	client    *http.Client
}

// NewPlexClient creates a client for the server with the given machine
// identifier. An empty library list shares every library.
func NewPlexClient(baseURL, token, serverID string, libraries []int) *PlexClient {
	if baseURL == "" {
		baseURL = DefaultPlexURL
	}

	return &PlexClient{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		token:     token,
		serverID:  serverID,
		libraries: libraries,
		client:    &http.Client{Timeout: plexTimeout},
	}
}

type shareRequest struct {
	ServerID        string          `json:"server_id"`
	SharedServer    sharedServer    `json:"shared_server"`
	SharingSettings json.RawMessage `json:"sharing_settings"`
}

type sharedServer struct {
	LibrarySectionIDs []int  `json:"library_section_ids"`
	InvitedEmail      string `json:"invited_email"`
}

func (c *PlexClient) Invite(ctx context.Context, email string) error {
	libraries := c.libraries
	if libraries == nil {
		libraries = []int{}
	}

	body, err := json.Marshal(shareRequest{
		ServerID:        c.serverID,
		SharedServer:    sharedServer{LibrarySectionIDs: libraries, InvitedEmail: email},
		SharingSettings: json.RawMessage(`{}`),
	})
	if err != nil {
		return fmt.Errorf("error encoding share request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/servers/%s/shared_servers", c.serverID), mimeJSON, bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError("share server", resp)
	}
	return nil
}

type plexUsers struct {
	Users []plexUser `xml:"User"`
}

type plexUser struct {
	ID       string `xml:"id,attr"`
	Email    string `xml:"email,attr"`
	Username string `xml:"username,attr"`
}

func (c *PlexClient) Remove(ctx context.Context, email string) error {
	// The users endpoint only answers in XML.
	resp, err := c.do(ctx, http.MethodGet, "/api/users", mimeXML, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("list users", resp)
	}

	users := new(plexUsers)
	if err := xml.NewDecoder(resp.Body).Decode(users); err != nil {
		return fmt.Errorf("error decoding plex users: %w", err)
	}

	id := ""
	for _, u := range users.Users {
		if strings.EqualFold(u.Email, email) {
			id = u.ID
			break
		}
	}
	if id == "" {
		return ErrPlexUserNotFound
	}

	del, err := c.do(ctx, http.MethodDelete, "/api/friends/"+id, mimeXML, nil)
	if err != nil {
		return err
	}
	defer del.Body.Close()

	if del.StatusCode != http.StatusOK && del.StatusCode != http.StatusNoContent {
		return statusError("remove friend", del)
	}
	return nil
}

func (c *PlexClient) do(ctx context.Context, method, path, accept string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("error creating plex request: %w", err)
	}

	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("X-Plex-Client-Identifier", "plexcord")
	req.Header.Set("X-Plex-Product", "plexcord")
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", mimeJSON)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling plex: %w", err)
	}
	return resp, nil
}

func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("plex %s returned %d: %s", op, resp.StatusCode, strings.TrimSpace(string(b)))
}

package tickets

import (
	"testing"

	"github.com/Jacobbrewer1/plexcord/pkg/entities"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestValidateLabels(t *testing.T) {
	tests := []struct {
		name    string
		labels  []string
		wantErr bool
	}{
		{name: "single", labels: []string{"support"}},
		{name: "three", labels: []string{"Plex Issue", "Request", "Other"}},
		{name: "none", labels: nil, wantErr: true},
		{name: "too many", labels: []string{"a", "b", "c", "d"}, wantErr: true},
		{name: "reserved", labels: []string{"Close"}, wantErr: true},
		{name: "reserved after slug", labels: []string{"  UNLOCK!"}, wantErr: true},
		{name: "duplicate slug", labels: []string{"Plex Issue", "plex-issue"}, wantErr: true},
		{name: "no letters", labels: []string{"!!!"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLabels(tt.labels)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidLabels)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateCategory(t *testing.T) {
	require.NoError(t, ValidateCategory(entities.CategoryPlex))
	require.NoError(t, ValidateCategory("movies"))
	require.ErrorIs(t, ValidateCategory(""), ErrUnknownCategory)
	require.ErrorIs(t, ValidateCategory("Plex"), ErrUnknownCategory)
	require.ErrorIs(t, ValidateCategory("live_tv"), ErrUnknownCategory)
	require.ErrorIs(t, ValidateCategory("create"), ErrUnknownCategory)
}

func TestRouter_Resolve(t *testing.T) {
	r, err := BuildRouter([]*entities.TicketPanel{
		{GuildID: "g", Category: entities.CategoryPlex, ButtonLabels: []string{"support", "Plex Issue"}},
		{GuildID: "g", Category: entities.CategoryGeneric, ButtonLabels: []string{"Question"}},
	})
	require.NoError(t, err)

	tests := []struct {
		customID string
		want     Route
		found    bool
	}{
		{customID: "plex_support", want: Route{Kind: RouteCreate, Category: "plex", Label: "support"}, found: true},
		{customID: "plex_plex-issue", want: Route{Kind: RouteCreate, Category: "plex", Label: "Plex Issue"}, found: true},
		{customID: "plex_close", want: Route{Kind: RouteManage, Category: "plex", Action: ActionClose}, found: true},
		{customID: "tv_claim", want: Route{Kind: RouteManage, Category: "tv", Action: ActionClaim}, found: true},
		{customID: "generic_question", want: Route{Kind: RouteCreate, Category: "generic", Label: "Question"}, found: true},
		{customID: LegacyCreateID, want: Route{Kind: RouteCreate, Category: "generic", Label: "Question"}, found: true},
		{customID: "tv_support", found: false},
		{customID: "unknown", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.customID, func(t *testing.T) {
			got, ok := r.Resolve(tt.customID)
			require.Equal(t, tt.found, ok)
			if tt.found {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func TestRouter_RegisterReplacesLabels(t *testing.T) {
	r := NewRouter()
	require.NoError(t, r.Register(&entities.TicketPanel{Category: "plex", ButtonLabels: []string{"old"}}))
	require.NoError(t, r.Register(&entities.TicketPanel{Category: "plex", ButtonLabels: []string{"new"}}))

	_, ok := r.Resolve("plex_old")
	require.False(t, ok)
	_, ok = r.Resolve("plex_new")
	require.True(t, ok)
}

func TestRouter_RegisterRejectsReserved(t *testing.T) {
	r := NewRouter()
	err := r.Register(&entities.TicketPanel{Category: "plex", ButtonLabels: []string{"close"}})
	require.ErrorIs(t, err, ErrInvalidLabels)

	route, ok := r.Resolve("plex_close")
	require.True(t, ok)
	require.Equal(t, RouteManage, route.Kind)
}

func TestBuildRouter_KeepsValidPanels(t *testing.T) {
	r, err := BuildRouter([]*entities.TicketPanel{
		{Category: "plex", ButtonLabels: []string{"lock"}},
		{Category: "tv", ButtonLabels: []string{"Channel Down"}},
	})
	require.ErrorIs(t, err, ErrInvalidLabels)

	_, ok := r.Resolve("tv_channel-down")
	require.True(t, ok)
}

func TestRouter_ManageIDsNeverCreate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		category := rapid.SampledFrom([]string{"plex", "tv", "generic", "movies"}).Draw(t, "category")
		labels := rapid.SliceOfN(rapid.StringMatching(`[A-Za-z ]{0,12}`), 1, 3).Draw(t, "labels")

		r := NewRouter()
		err := r.Register(&entities.TicketPanel{Category: category, ButtonLabels: labels})

		for _, a := range Actions {
			route, ok := r.Resolve(ManageID(category, a))
			if err == nil && !ok {
				t.Fatalf("management id %s missing", ManageID(category, a))
			}
			if ok && (route.Kind != RouteManage || route.Action != a) {
				t.Fatalf("management id %s resolved to %+v", ManageID(category, a), route)
			}
		}

		if err == nil {
			for _, label := range labels {
				route, ok := r.Resolve(CreateID(category, label))
				if !ok || route.Kind != RouteCreate || route.Label != label {
					t.Fatalf("label %q resolved to %+v", label, route)
				}
			}
		}
	})
}

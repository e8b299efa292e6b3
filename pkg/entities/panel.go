package entities

const (
	// CategoryPlex is the category for Plex support tickets.
	CategoryPlex = "plex"

	// CategoryTV is the category for live TV tickets.
	CategoryTV = "tv"

	// CategoryGeneric is the category for everything else.
	CategoryGeneric = "generic"
)

// MaxPanelLabels is the number of buttons a panel can carry.
const MaxPanelLabels = 3

// TicketPanel is the ticket panel configuration for a guild and category.
type TicketPanel struct {
	// GuildID is the ID of the guild.
	GuildID string `json:"guild_id" bson:"guild_id"`

	// Category is the ticket category this panel opens tickets for.
	Category string `json:"category" bson:"category"`

	// CreationChannelID is the ID of the channel the panel message is posted in.
	CreationChannelID string `json:"creation_channel_id" bson:"creation_channel_id"`

	// PanelMessageID is the ID of the panel message.
	PanelMessageID string `json:"panel_message_id" bson:"panel_message_id"`

	// ParentCategoryID is the ID of the channel category new tickets are created under.
	ParentCategoryID string `json:"parent_category_id" bson:"parent_category_id"`

	// TranscriptChannelID is the ID of the channel transcripts are posted to.
	TranscriptChannelID string `json:"transcript_channel_id" bson:"transcript_channel_id"`

	// HelperRoleID is the ID of the role that handles tickets.
	HelperRoleID string `json:"helper_role_id" bson:"helper_role_id"`

	// EveryoneRoleID is the ID of the @everyone role. This is the guild ID on Discord.
	EveryoneRoleID string `json:"everyone_role_id" bson:"everyone_role_id"`

	// Description is shown on the panel message.
	Description string `json:"description" bson:"description"`

	// ButtonLabels are the labels of the ticket buttons, in display order.
	ButtonLabels []string `json:"button_labels" bson:"button_labels"`
}

// HasLabel reports whether label is one of the panel's buttons.
func (p *TicketPanel) HasLabel(label string) bool {
	for _, l := range p.ButtonLabels {
		if l == label {
			return true
		}
	}
	return false
}

package entry

import (
	"time"

	"github.com/google/uuid"
)

type EntryType string

const (
	EntryPhoto EntryType = "photo"
	EntryVideo EntryType = "video"
	EntryAudio EntryType = "audio"
)

type AttachmentType string

const (
	AttachmentText     AttachmentType = "text"
	AttachmentSticker  AttachmentType = "sticker"
	AttachmentMusic    AttachmentType = "music"
	AttachmentLocation AttachmentType = "location"
)

type MusicTag struct {
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
}

// Attachment is one rendered item on the media canvas, stored as JSONB.
type Attachment struct {
	Type     AttachmentType `json:"type"`
	Text     string         `json:"text,omitempty"`
	MusicTag *MusicTag      `json:"music_tag,omitempty"`
	Location string         `json:"location,omitempty"`
}

type Entry struct {
	ID                 uuid.UUID    `json:"id" db:"id"`
	UserID             uuid.UUID    `json:"user_id" db:"user_id"`
	Type               EntryType    `json:"type" db:"type"`
	ContentURL         *string      `json:"content_url,omitempty" db:"content_url"`
	TextContent        *string      `json:"text_content,omitempty" db:"text_content"`
	Attachments        []Attachment `json:"attachments" db:"attachments"`
	MusicTag           *string      `json:"music_tag,omitempty" db:"music_tag"`
	LocationTag        *string      `json:"location_tag,omitempty" db:"location_tag"`
	IsPrivate          bool         `json:"is_private" db:"is_private"`
	SharedWithEveryone bool         `json:"shared_with_everyone" db:"shared_with_everyone"`
	SharedWith         []uuid.UUID  `json:"shared_with,omitempty"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at" db:"updated_at"`
}

type CreateEntryRequest struct {
	Type               EntryType    `json:"type"`
	ContentURL         *string      `json:"content_url,omitempty"`
	TextContent        *string      `json:"text_content,omitempty"`
	Attachments        []Attachment `json:"attachments,omitempty"`
	MusicTag           *string      `json:"music_tag,omitempty"`
	LocationTag        *string      `json:"location_tag,omitempty"`
	IsPrivate          bool         `json:"is_private"`
	SharedWithEveryone bool         `json:"shared_with_everyone"`
	SharedWith         []uuid.UUID  `json:"shared_with,omitempty"`
	// CreatedAt lets the client backfill an entry captured offline.
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// FeedItem is an entry annotated with its author, as shown in the friends feed.
type FeedItem struct {
	Entry
	AuthorUsername  string `json:"author_username"`
	AuthorFullName  string `json:"author_full_name,omitempty"`
	AuthorAvatarURL string `json:"author_avatar_url,omitempty"`
}

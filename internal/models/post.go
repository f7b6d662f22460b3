package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post is a single feed entry stored in MongoDB.
type Post struct {
	ID        primitive.ObjectID `json:"id"         bson:"_id,omitempty"`
	Title     string             `json:"title"      bson:"title"`
	Content   string             `json:"content"    bson:"content"`
	ImageURL  string             `json:"imageUrl"   bson:"image_url"`
	CreatorID string             `json:"creatorId"  bson:"creator_id"`
	CreatedAt time.Time          `json:"createdAt"  bson:"created_at"`
	UpdatedAt time.Time          `json:"updatedAt"  bson:"updated_at"`
}

// PostView is a post with its creator resolved, as returned to clients and
// carried in broadcast events.
type PostView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl"`
	Creator   Creator   `json:"creator"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// View combines p with its creator summary.
func (p *Post) View(creator Creator) *PostView {
	return &PostView{
		ID:        p.ID.Hex(),
		Title:     p.Title,
		Content:   p.Content,
		ImageURL:  p.ImageURL,
		Creator:   creator,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// PostPage is one page of the feed plus the total count across all pages.
type PostPage struct {
	Posts      []*PostView `json:"posts"`
	TotalItems int64       `json:"totalItems"`
}

// PostInput carries the client supplied fields of a create or update.
// ImageURL is nil when the client did not send one.
type PostInput struct {
	Title    string
	Content  string
	ImageURL *string
}

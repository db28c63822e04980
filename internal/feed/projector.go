package feed

import (
	"fmt"
	"strings"
	"time"

	"reviewfeed/internal/models"
)

const anonymousName = "Anonymous"

// Viewer is the requesting user's identity and reaction sets, loaded once per request.
type Viewer struct {
	UserID    uint
	Liked     map[uint]struct{}
	Favorites map[uint]struct{}
}

// Anonymous is a viewer without identity.
var Anonymous = Viewer{}

// NewViewer builds a viewer from the ids of liked and favorited products.
func NewViewer(userID uint, liked, favorites []uint) Viewer {
	return Viewer{UserID: userID, Liked: toSet(liked), Favorites: toSet(favorites)}
}

func toSet(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Authenticated reports whether the viewer has an identity.
func (v Viewer) Authenticated() bool { return v.UserID != 0 }

func (v Viewer) likes(productID uint) bool {
	_, ok := v.Liked[productID]
	return ok
}

func (v Viewer) favors(productID uint) bool {
	_, ok := v.Favorites[productID]
	return ok
}

// FileView is a resolved media link.
type FileView struct {
	Link   string          `json:"link"`
	Type   models.FileType `json:"type"`
	Stream bool            `json:"stream"`
}

// ProductView is the API shape of a product.
type ProductView struct {
	ID       uint      `json:"id"`
	Title    string    `json:"title"`
	Category *uint     `json:"category"`
	SourceID *int64    `json:"source_id"`
	Liked    bool      `json:"liked"`
	Favorite bool      `json:"favorite"`
	Likes    int       `json:"likes"`
	Image    *FileView `json:"image"`
	Link     *string   `json:"link"`
}

// CommentView is the API shape of a feedback or reply.
type CommentView struct {
	ID              uint          `json:"id"`
	Files           []FileView    `json:"files"`
	User            string        `json:"user"`
	SourceDate      time.Time     `json:"source_date"`
	IsOwn           bool          `json:"is_own"`
	Promo           bool          `json:"promo"`
	Product         *uint         `json:"product"`
	SourceID        *int64        `json:"source_id"`
	Content         string        `json:"content"`
	Rating          int           `json:"rating"`
	FileType        string        `json:"file_type"`
	ReplyTo         *uint         `json:"reply_to"`
	RepliedComments []CommentView `json:"replied_comments"`

	// Set only for the author's own listings.
	Status       string    `json:"status,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	ProductName  *string   `json:"product_name,omitempty"`
	ProductImage *FileView `json:"product_image,omitempty"`
}

// Projector turns cached records into API views. It resolves stored media
// paths against the public domain.
type Projector struct {
	Domain      string
	MediaPrefix string
}

// NewProjector normalizes the domain and media prefix.
func NewProjector(domain, mediaPrefix string) Projector {
	prefix := "/" + strings.Trim(mediaPrefix, "/") + "/"
	if prefix == "//" {
		prefix = "/"
	}
	return Projector{Domain: strings.TrimRight(domain, "/"), MediaPrefix: prefix}
}

// ResolveLink makes a stored link absolute. Absolute URLs pass through.
func (p Projector) ResolveLink(link string) string {
	switch {
	case link == "":
		return ""
	case strings.HasPrefix(link, "http://"), strings.HasPrefix(link, "https://"):
		return link
	case strings.HasPrefix(link, p.MediaPrefix):
		return p.Domain + link
	default:
		return p.Domain + p.MediaPrefix + strings.TrimLeft(link, "/")
	}
}

func (p Projector) file(f *FileRecord) *FileView {
	if f == nil || f.Link == "" {
		return nil
	}
	link := p.ResolveLink(f.Link)
	return &FileView{Link: link, Type: f.Type, Stream: IsStream(link)}
}

// ProductLink is the marketplace page of a product, or nil without a source id.
func ProductLink(sourceID *int64) *string {
	if sourceID == nil {
		return nil
	}
	link := fmt.Sprintf("https://wildberries.ru/catalog/%d/detail.aspx", *sourceID)
	return &link
}

// ProjectProduct renders a product for a viewer.
func (p Projector) ProjectProduct(rec ProductRecord, viewer Viewer) ProductView {
	return ProductView{
		ID:       rec.ID,
		Title:    rec.Title,
		Category: rec.CategoryID,
		SourceID: rec.SourceID,
		Liked:    viewer.likes(rec.ID),
		Favorite: viewer.favors(rec.ID),
		Likes:    rec.Likes,
		Image:    p.file(rec.Image),
		Link:     ProductLink(rec.SourceID),
	}
}

// ProjectProducts renders a page of products.
func (p Projector) ProjectProducts(recs []ProductRecord, viewer Viewer) []ProductView {
	out := make([]ProductView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, p.ProjectProduct(rec, viewer))
	}
	return out
}

// ProjectComment renders a comment. With includeReplies its flattened thread
// is rendered too; replies never nest further.
func (p Projector) ProjectComment(rec CommentRecord, viewer Viewer, includeReplies bool) CommentView {
	view := CommentView{
		ID:              rec.ID,
		Files:           p.files(rec.Files),
		User:            DisplayName(rec),
		SourceDate:      rec.EffectiveDate,
		IsOwn:           viewer.Authenticated() && rec.UserID != nil && *rec.UserID == viewer.UserID,
		Promo:           rec.Promo,
		Product:         rec.ProductID,
		SourceID:        rec.SourceID,
		Content:         rec.Content,
		Rating:          rec.Rating,
		FileType:        string(rec.FileType()),
		ReplyTo:         rec.ReplyTo,
		RepliedComments: []CommentView{},
	}
	if includeReplies {
		for _, r := range rec.Replies {
			view.RepliedComments = append(view.RepliedComments, p.ProjectComment(r, viewer, false))
		}
	}
	return view
}

// ProjectComments renders a page of comments.
func (p Projector) ProjectComments(recs []CommentRecord, viewer Viewer, includeReplies bool) []CommentView {
	out := make([]CommentView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, p.ProjectComment(rec, viewer, includeReplies))
	}
	return out
}

// ProjectOwnComment renders a comment in its author's listing, with moderation
// state and product details.
func (p Projector) ProjectOwnComment(rec CommentRecord, viewer Viewer) CommentView {
	view := p.ProjectComment(rec, viewer, false)
	view.Status = string(rec.Status)
	view.Reason = rec.Reason
	if rec.ProductID != nil {
		name := rec.ProductTitle
		view.ProductName = &name
		view.ProductImage = p.file(rec.ProductImage)
	}
	return view
}

func (p Projector) files(files []FileRecord) []FileView {
	out := make([]FileView, 0, len(files))
	seen := make(map[FileRecord]struct{}, len(files))
	for _, f := range files {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		if v := p.file(&f); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// DisplayName picks the marketplace reviewer name, then the account's full
// name, then its email.
func DisplayName(rec CommentRecord) string {
	for _, name := range []string{rec.WbUser, rec.UserFullName, rec.UserEmail} {
		if strings.TrimSpace(name) != "" {
			return name
		}
	}
	return anonymousName
}

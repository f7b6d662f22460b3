// Package feed implements the post lifecycle: queries, the create/update/
// delete mutations with their effects on the owning user and the attached
// image, and the broadcast of every change.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayush/livefeed/backend/internal/apperr"
	"github.com/ayush/livefeed/backend/internal/assets"
	"github.com/ayush/livefeed/backend/internal/auth"
	"github.com/ayush/livefeed/backend/internal/broadcast"
	"github.com/ayush/livefeed/backend/internal/metrics"
	"github.com/ayush/livefeed/backend/internal/models"
	"github.com/ayush/livefeed/backend/internal/store"
	"github.com/ayush/livefeed/backend/internal/validation"
)

// DefaultPageSize is the number of posts per feed page.
const DefaultPageSize = 2

// PostStore defines the interface for post persistence.
type PostStore interface {
	Insert(ctx context.Context, post *models.Post) (string, error)
	List(ctx context.Context, skip, limit int64) ([]models.Post, error)
	Count(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id string) error
	// ImageInUse reports whether a post other than exceptID references path.
	ImageInUse(ctx context.Context, path, exceptID string) (bool, error)
}

// UserStore is the part of user persistence the feed needs.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	AppendPost(ctx context.Context, userID, postID string) error
}

// Uploads records who stored each image.
type Uploads interface {
	RecordUpload(ctx context.Context, path, ownerID string) error
	UploadOwner(ctx context.Context, path string) (string, error)
}

// Releaser schedules removal of an image without waiting for it.
type Releaser interface {
	Release(path string)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Posts       PostStore
	Users       UserStore
	Uploads     Uploads
	Credentials *auth.Service
	Assets      assets.Store
	Images      Releaser
	Events      broadcast.Publisher
}

// Options tune the service.
type Options struct {
	PageSize int
	// DeleteRequiresOwner rejects deletes by anyone but the creator.
	DeleteRequiresOwner bool
}

// Service is the feed. It is the only writer of posts.
type Service struct {
	posts       PostStore
	users       UserStore
	uploads     Uploads
	credentials *auth.Service
	assets      assets.Store
	images      Releaser
	events      broadcast.Publisher
	opts        Options
	now         func() time.Time
	log         *logrus.Entry
}

func NewService(deps Deps, opts Options, log logrus.FieldLogger) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Service{
		posts:       deps.Posts,
		users:       deps.Users,
		uploads:     deps.Uploads,
		credentials: deps.Credentials,
		assets:      deps.Assets,
		images:      deps.Images,
		events:      deps.Events,
		opts:        opts,
		now:         time.Now,
		log:         log.WithField("component", "feed"),
	}
}

type postFields struct {
	Title   string `json:"title"   validate:"min=5"`
	Content string `json:"content" validate:"min=5"`
}

type createFields struct {
	Title    string `json:"title"    validate:"min=5"`
	Content  string `json:"content"  validate:"min=5"`
	ImageURL string `json:"imageUrl" validate:"required"`
}

// ListPosts returns one page of posts, newest first, and the total count.
// Pages start at 1; a page past the end is empty.
func (s *Service) ListPosts(ctx context.Context, page int) (*models.PostPage, error) {
	if page < 1 {
		page = 1
	}
	total, err := s.posts.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}
	size := int64(s.opts.PageSize)
	posts, err := s.posts.List(ctx, int64(page-1)*size, size)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.CreatorID)
	}
	creators, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load creators: %w", err)
	}

	views := make([]*models.PostView, 0, len(posts))
	for i := range posts {
		views = append(views, posts[i].View(creatorOf(creators, posts[i].CreatorID)))
	}
	return &models.PostPage{Posts: views, TotalItems: total}, nil
}

// GetPost returns one post with its creator.
func (s *Service) GetPost(ctx context.Context, id string) (*models.PostView, error) {
	post, err := s.loadPost(ctx, id)
	if err != nil {
		return nil, err
	}
	return post.View(s.creator(ctx, post.CreatorID)), nil
}

// CreatePost stores a new post owned by the caller, records it on the
// caller's user and announces it. The post and the user are written
// separately: if the second write fails the post stays.
func (s *Service) CreatePost(ctx context.Context, ac auth.AuthContext, in models.PostInput) (view *models.PostView, err error) {
	defer s.record(broadcast.ActionCreate, &err)

	if !ac.Authenticated() {
		return nil, apperr.Unauthorized("Not authenticated")
	}
	base := trimmed(in)
	fields := createFields{Title: base.Title, Content: base.Content}
	if in.ImageURL != nil {
		fields.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	if err := validation.Struct(fields); err != nil {
		return nil, err
	}
	imageURL, err := s.imageRef(ctx, ac, fields.ImageURL, "")
	if err != nil {
		return nil, err
	}

	now := s.now()
	post := &models.Post{
		Title:     fields.Title,
		Content:   fields.Content,
		ImageURL:  imageURL,
		CreatorID: ac.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	postID, err := s.posts.Insert(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	log := s.log.WithFields(logrus.Fields{"post_id": postID, "user_id": ac.UserID})

	user, err := s.users.GetUserByID(ctx, ac.UserID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("post stored but its creator does not exist")
		return nil, apperr.Unauthorized("Invalid user")
	}
	if err != nil {
		log.WithError(err).Warn("post stored but creator lookup failed")
		return nil, fmt.Errorf("load creator: %w", err)
	}
	if err := s.users.AppendPost(ctx, user.ID, postID); err != nil {
		log.WithError(err).Warn("post stored but not recorded on its creator")
		return nil, fmt.Errorf("append post to user: %w", err)
	}

	view = post.View(user.Summary())
	s.events.Publish(ctx, broadcast.Event{Action: broadcast.ActionCreate, Post: view})
	log.Info("post created")
	return view, nil
}

// UpdatePost rewrites title, content and image of a post the caller owns.
// A new image must be one the caller uploaded; it replaces the stored one,
// which is released before the post is saved. Without a new image the
// stored one is kept.
func (s *Service) UpdatePost(ctx context.Context, ac auth.AuthContext, id string, in models.PostInput) (view *models.PostView, err error) {
	defer s.record(broadcast.ActionUpdate, &err)

	if !ac.Authenticated() {
		return nil, apperr.Unauthorized("Not authenticated")
	}
	fields := trimmed(in)
	if err := validation.Struct(fields); err != nil {
		return nil, err
	}

	post, err := s.loadPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.CreatorID != ac.UserID {
		return nil, apperr.Forbidden("Not authorized")
	}

	imageURL := post.ImageURL
	if in.ImageURL != nil {
		if ref := strings.TrimSpace(*in.ImageURL); ref != "" && ref != post.ImageURL {
			imageURL, err = s.imageRef(ctx, ac, ref, id)
			if err != nil {
				return nil, err
			}
		}
	}
	if imageURL == "" {
		return nil, apperr.Validation("No file picked", []apperr.FieldError{
			{Field: "imageUrl", Message: "is required"},
		})
	}
	if imageURL != post.ImageURL {
		s.images.Release(post.ImageURL)
	}

	post.Title = fields.Title
	post.Content = fields.Content
	post.ImageURL = imageURL
	post.UpdatedAt = s.now()
	if err := s.posts.Update(ctx, post); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Cannot find post")
		}
		return nil, fmt.Errorf("update post: %w", err)
	}

	view = post.View(s.creator(ctx, post.CreatorID))
	s.events.Publish(ctx, broadcast.Event{Action: broadcast.ActionUpdate, Post: view})
	s.log.WithFields(logrus.Fields{"post_id": id, "user_id": ac.UserID}).Info("post updated")
	return view, nil
}

// DeletePost removes a post and releases its image. The id stays in the
// creator's post list.
func (s *Service) DeletePost(ctx context.Context, ac auth.AuthContext, id string) (err error) {
	defer s.record(broadcast.ActionDelete, &err)

	if !ac.Authenticated() {
		return apperr.Unauthorized("Not authenticated")
	}
	post, err := s.loadPost(ctx, id)
	if err != nil {
		return err
	}
	if s.opts.DeleteRequiresOwner && post.CreatorID != ac.UserID {
		return apperr.Forbidden("Not authorized")
	}

	s.images.Release(post.ImageURL)
	if err := s.posts.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Cannot find post")
		}
		return fmt.Errorf("delete post: %w", err)
	}

	s.events.Publish(ctx, broadcast.Event{Action: broadcast.ActionDelete, PostID: id})
	s.log.WithFields(logrus.Fields{"post_id": id, "user_id": ac.UserID}).Info("post deleted")
	return nil
}

// StoreImage saves an uploaded image and records the caller as its owner.
// A non-empty oldPath is released when the caller uploaded it and no post
// references it; otherwise it is left alone.
func (s *Service) StoreImage(ctx context.Context, ac auth.AuthContext, filename string, r io.Reader, size int64, contentType, oldPath string) (string, error) {
	if !ac.Authenticated() {
		return "", apperr.Unauthorized("Not authenticated")
	}
	path, err := s.assets.Save(ctx, assets.GenerateName(filename), r, size, contentType)
	if err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	if err := s.uploads.RecordUpload(ctx, path, ac.UserID); err != nil {
		s.images.Release(path)
		return "", fmt.Errorf("record upload: %w", err)
	}
	if oldPath != "" && oldPath != path {
		s.releaseUpload(ctx, ac, oldPath)
	}
	s.log.WithFields(logrus.Fields{"path": path, "user_id": ac.UserID}).Info("image stored")
	return path, nil
}

// Signup registers a user.
func (s *Service) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	return s.credentials.Signup(ctx, req)
}

// Login issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*models.AuthData, error) {
	return s.credentials.Login(ctx, email, password)
}

// CurrentUser returns the caller.
func (s *Service) CurrentUser(ctx context.Context, ac auth.AuthContext) (*models.User, error) {
	if !ac.Authenticated() {
		return nil, apperr.Unauthorized("Not authenticated")
	}
	return s.credentials.User(ctx, ac.UserID)
}

// UpdateStatus replaces the caller's status.
func (s *Service) UpdateStatus(ctx context.Context, ac auth.AuthContext, status string) (*models.User, error) {
	if !ac.Authenticated() {
		return nil, apperr.Unauthorized("Not authenticated")
	}
	return s.credentials.UpdateStatus(ctx, ac.UserID, status)
}

func (s *Service) loadPost(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Cannot find post")
	}
	if err != nil {
		return nil, fmt.Errorf("load post: %w", err)
	}
	return post, nil
}

// imageRef checks that ref names an image the caller uploaded, that the
// image is still stored and that no post other than exceptID uses it. It
// returns the canonical path.
func (s *Service) imageRef(ctx context.Context, ac auth.AuthContext, ref, exceptID string) (string, error) {
	path, err := canonicalImage(ref)
	if err != nil {
		return "", invalidImage("is not a stored image")
	}
	owner, err := s.uploads.UploadOwner(ctx, path)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "", invalidImage("is not a stored image")
	case err != nil:
		return "", fmt.Errorf("load upload owner: %w", err)
	case owner != ac.UserID:
		return "", invalidImage("was uploaded by another user")
	}
	if err := s.assets.Stat(ctx, path); err != nil {
		if errors.Is(err, assets.ErrNotExist) {
			return "", invalidImage("is not a stored image")
		}
		return "", fmt.Errorf("stat image: %w", err)
	}
	inUse, err := s.posts.ImageInUse(ctx, path, exceptID)
	if err != nil {
		return "", fmt.Errorf("check image refs: %w", err)
	}
	if inUse {
		return "", invalidImage("is used by another post")
	}
	return path, nil
}

// releaseUpload releases an image the caller uploaded and no post uses.
func (s *Service) releaseUpload(ctx context.Context, ac auth.AuthContext, ref string) {
	log := s.log.WithFields(logrus.Fields{"path": ref, "user_id": ac.UserID})
	path, err := canonicalImage(ref)
	if err != nil {
		log.Debug("old image kept: not an image path")
		return
	}
	owner, err := s.uploads.UploadOwner(ctx, path)
	if err != nil || owner != ac.UserID {
		log.Debug("old image kept: not uploaded by caller")
		return
	}
	inUse, err := s.posts.ImageInUse(ctx, path, "")
	if err != nil || inUse {
		log.Debug("old image kept: still referenced")
		return
	}
	s.images.Release(path)
}

// creator resolves a creator summary. A creator that cannot be loaded keeps
// its id and loses its name rather than failing the request.
func (s *Service) creator(ctx context.Context, userID string) models.Creator {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.WithError(err).WithField("user_id", userID).Warn("creator lookup failed")
		}
		return models.Creator{ID: userID}
	}
	return user.Summary()
}

func (s *Service) record(action string, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = kindLabel(apperr.As(*errp).Kind)
	}
	metrics.RecordMutation(action, outcome)
}

func creatorOf(users map[string]*models.User, id string) models.Creator {
	if u, ok := users[id]; ok {
		return u.Summary()
	}
	return models.Creator{ID: id}
}

func canonicalImage(ref string) (string, error) {
	key, err := assets.Key(ref)
	if err != nil {
		return "", err
	}
	return assets.Prefix + key, nil
}

func invalidImage(msg string) error {
	return apperr.Validation("Invalid image", []apperr.FieldError{
		{Field: "imageUrl", Message: msg},
	})
}

func trimmed(in models.PostInput) postFields {
	return postFields{
		Title:   strings.TrimSpace(in.Title),
		Content: strings.TrimSpace(in.Content),
	}
}

func kindLabel(k apperr.Kind) string {
	switch k {
	case apperr.KindValidation:
		return "invalid"
	case apperr.KindUnauthorized:
		return "unauthorized"
	case apperr.KindForbidden:
		return "forbidden"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindConflict:
		return "conflict"
	default:
		return "error"
	}
}

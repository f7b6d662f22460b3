// Package memstore keeps posts, users and upload records in process memory.
// It backs local runs without databases and the service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/livefeed/backend/internal/models"
	"github.com/ayush/livefeed/backend/internal/store"
)

// Posts is an in-memory post collection.
type Posts struct {
	mu    sync.RWMutex
	posts map[string]*models.Post
}

func NewPosts() *Posts {
	return &Posts{posts: make(map[string]*models.Post)}
}

func (s *Posts) Insert(ctx context.Context, post *models.Post) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = post.CreatedAt
	}
	post.ID = primitive.NewObjectID()
	cp := *post
	s.posts[post.ID.Hex()] = &cp
	return post.ID.Hex(), nil
}

// List returns posts newest first; ties keep insertion order, newest first.
func (s *Posts) List(ctx context.Context, skip, limit int64) ([]models.Post, error) {
	s.mu.RLock()
	all := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		all = append(all, *p)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.Hex() > all[j].ID.Hex()
	})

	if skip >= int64(len(all)) {
		return []models.Post{}, nil
	}
	end := skip + limit
	if end > int64(len(all)) {
		end = int64(len(all))
	}
	return all[skip:end], nil
}

func (s *Posts) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.posts)), nil
}

func (s *Posts) GetByID(ctx context.Context, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Posts) Update(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.posts[post.ID.Hex()]
	if !ok {
		return store.ErrNotFound
	}
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = time.Now()
	}
	existing.Title = post.Title
	existing.Content = post.Content
	existing.ImageURL = post.ImageURL
	existing.UpdatedAt = post.UpdatedAt
	return nil
}

func (s *Posts) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

// ImageInUse reports whether a post other than exceptID references path.
func (s *Posts) ImageInUse(ctx context.Context, path, exceptID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, p := range s.posts {
		if id != exceptID && p.ImageURL == path {
			return true, nil
		}
	}
	return false, nil
}

// Uploads remembers which user stored each image.
type Uploads struct {
	mu     sync.RWMutex
	owners map[string]string
}

func NewUploads() *Uploads {
	return &Uploads{owners: make(map[string]string)}
}

func (s *Uploads) RecordUpload(ctx context.Context, path, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.owners[path]; taken {
		return store.ErrDuplicate
	}
	s.owners[path] = ownerID
	return nil
}

func (s *Uploads) UploadOwner(ctx context.Context, path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, ok := s.owners[path]
	if !ok {
		return "", store.ErrNotFound
	}
	return owner, nil
}

// Users is an in-memory user table with a unique email index.
type Users struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byEmail map[string]string
}

func NewUsers() *Users {
	return &Users{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]string),
	}
}

func (s *Users) CreateUser(ctx context.Context, email, name, hashedPw string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[email]; taken {
		return nil, store.ErrDuplicate
	}
	u := &models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Password:  hashedPw,
		Status:    models.DefaultStatus,
		PostIDs:   []string{},
		CreatedAt: time.Now(),
	}
	s.byID[u.ID] = u
	s.byEmail[email] = u.ID
	return copyUser(u), nil
}

func (s *Users) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyUser(s.byID[id]), nil
}

func (s *Users) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Users) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.byID[id]; ok {
			out[id] = copyUser(u)
		}
	}
	return out, nil
}

func (s *Users) AppendPost(ctx context.Context, userID, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.PostIDs = append(u.PostIDs, postID)
	return nil
}

func (s *Users) UpdateStatus(ctx context.Context, userID, status string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	u.Status = status
	return copyUser(u), nil
}

// Delete removes a user. The feed never deletes users; tests use it to
// produce posts whose creator no longer resolves.
func (s *Users) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.byID[id]; ok {
		delete(s.byEmail, u.Email)
		delete(s.byID, id)
	}
}

func copyUser(u *models.User) *models.User {
	cp := *u
	cp.PostIDs = append([]string(nil), u.PostIDs...)
	return &cp
}

package feed

import (
	"context"
	"time"

	"github.com/graph-gophers/graphql-go"

	"github.com/ayush/livefeed/backend/internal/auth"
	"github.com/ayush/livefeed/backend/internal/models"
)

// Resolver is the root of both Query and Mutation. Each resolver reads the
// AuthContext the HTTP middleware stored and hands it to the service.
type Resolver struct {
	svc *Service
}

type userInput struct {
	Email    string
	Name     string
	Password string
}

type postInput struct {
	Title    string
	Content  string
	ImageURL *string
}

func (in postInput) model() models.PostInput {
	return models.PostInput{Title: in.Title, Content: in.Content, ImageURL: in.ImageURL}
}

func (r *Resolver) Login(ctx context.Context, args struct {
	Email    string
	Password string
}) (*authDataResolver, error) {
	data, err := r.svc.Login(ctx, args.Email, args.Password)
	if err != nil {
		return nil, err
	}
	return &authDataResolver{data}, nil
}

func (r *Resolver) Posts(ctx context.Context, args struct{ Page *int32 }) (*postDataResolver, error) {
	page := 1
	if args.Page != nil {
		page = int(*args.Page)
	}
	result, err := r.svc.ListPosts(ctx, page)
	if err != nil {
		return nil, err
	}
	return &postDataResolver{result}, nil
}

func (r *Resolver) Post(ctx context.Context, args struct{ ID graphql.ID }) (*postResolver, error) {
	view, err := r.svc.GetPost(ctx, string(args.ID))
	if err != nil {
		return nil, err
	}
	return &postResolver{view}, nil
}

func (r *Resolver) User(ctx context.Context) (*userResolver, error) {
	user, err := r.svc.CurrentUser(ctx, auth.FromContext(ctx))
	if err != nil {
		return nil, err
	}
	return &userResolver{user}, nil
}

func (r *Resolver) CreateUser(ctx context.Context, args struct{ UserInput userInput }) (*userResolver, error) {
	user, err := r.svc.Signup(ctx, models.SignupRequest{
		Email:    args.UserInput.Email,
		Name:     args.UserInput.Name,
		Password: args.UserInput.Password,
	})
	if err != nil {
		return nil, err
	}
	return &userResolver{user}, nil
}

func (r *Resolver) CreatePost(ctx context.Context, args struct{ PostInput postInput }) (*postResolver, error) {
	view, err := r.svc.CreatePost(ctx, auth.FromContext(ctx), args.PostInput.model())
	if err != nil {
		return nil, err
	}
	return &postResolver{view}, nil
}

func (r *Resolver) UpdatePost(ctx context.Context, args struct {
	ID        graphql.ID
	PostInput postInput
}) (*postResolver, error) {
	view, err := r.svc.UpdatePost(ctx, auth.FromContext(ctx), string(args.ID), args.PostInput.model())
	if err != nil {
		return nil, err
	}
	return &postResolver{view}, nil
}

func (r *Resolver) DeletePost(ctx context.Context, args struct{ ID graphql.ID }) (bool, error) {
	if err := r.svc.DeletePost(ctx, auth.FromContext(ctx), string(args.ID)); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Resolver) UpdateStatus(ctx context.Context, args struct{ Status string }) (*userResolver, error) {
	user, err := r.svc.UpdateStatus(ctx, auth.FromContext(ctx), args.Status)
	if err != nil {
		return nil, err
	}
	return &userResolver{user}, nil
}

type authDataResolver struct{ d *models.AuthData }

func (r *authDataResolver) Token() string  { return r.d.Token }
func (r *authDataResolver) UserID() string { return r.d.UserID }

type postDataResolver struct{ p *models.PostPage }

func (r *postDataResolver) Posts() []*postResolver {
	out := make([]*postResolver, 0, len(r.p.Posts))
	for _, v := range r.p.Posts {
		out = append(out, &postResolver{v})
	}
	return out
}

func (r *postDataResolver) TotalPosts() int32 { return int32(r.p.TotalItems) }

type postResolver struct{ v *models.PostView }

func (r *postResolver) ID() graphql.ID            { return graphql.ID(r.v.ID) }
func (r *postResolver) Title() string             { return r.v.Title }
func (r *postResolver) Content() string           { return r.v.Content }
func (r *postResolver) ImageURL() string          { return r.v.ImageURL }
func (r *postResolver) Creator() *creatorResolver { return &creatorResolver{r.v.Creator} }
func (r *postResolver) CreatedAt() string         { return r.v.CreatedAt.UTC().Format(time.RFC3339) }
func (r *postResolver) UpdatedAt() string         { return r.v.UpdatedAt.UTC().Format(time.RFC3339) }

type creatorResolver struct{ c models.Creator }

func (r *creatorResolver) ID() graphql.ID { return graphql.ID(r.c.ID) }
func (r *creatorResolver) Name() string   { return r.c.Name }

type userResolver struct{ u *models.User }

func (r *userResolver) ID() graphql.ID { return graphql.ID(r.u.ID) }
func (r *userResolver) Email() string  { return r.u.Email }
func (r *userResolver) Name() string   { return r.u.Name }
func (r *userResolver) Status() string { return r.u.Status }

func (r *userResolver) Posts() []graphql.ID {
	out := make([]graphql.ID, 0, len(r.u.PostIDs))
	for _, id := range r.u.PostIDs {
		out = append(out, graphql.ID(id))
	}
	return out
}

package feed

import (
	"context"
	"fmt"

	"github.com/graph-gophers/graphql-go"
	"github.com/sirupsen/logrus"
)

const schemaSDL = `
	schema {
		query: Query
		mutation: Mutation
	}

	type Creator {
		id: ID!
		name: String!
	}

	type Post {
		id: ID!
		title: String!
		content: String!
		imageUrl: String!
		creator: Creator!
		createdAt: String!
		updatedAt: String!
	}

	type User {
		id: ID!
		email: String!
		name: String!
		status: String!
		posts: [ID!]!
	}

	type AuthData {
		token: String!
		userId: String!
	}

	type PostData {
		posts: [Post!]!
		totalPosts: Int!
	}

	input UserInputData {
		email: String!
		name: String!
		password: String!
	}

	input PostInputData {
		title: String!
		content: String!
		imageUrl: String
	}

	type Query {
		login(email: String!, password: String!): AuthData!
		posts(page: Int): PostData!
		post(id: ID!): Post!
		user: User!
	}

	type Mutation {
		createUser(userInput: UserInputData!): User!
		createPost(postInput: PostInputData!): Post!
		updatePost(id: ID!, postInput: PostInputData!): Post!
		deletePost(id: ID!): Boolean!
		updateStatus(status: String!): User!
	}
`

// maxQueryDepth bounds nesting; the deepest legal query is posts.posts.creator.
const maxQueryDepth = 8

// NewSchema binds the feed schema to svc.
func NewSchema(svc *Service, log logrus.FieldLogger) (*graphql.Schema, error) {
	schema, err := graphql.ParseSchema(schemaSDL, &Resolver{svc: svc},
		graphql.MaxDepth(maxQueryDepth),
		graphql.Logger(panicLogger{log: log.WithField("component", "graphql")}),
	)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return schema, nil
}

// panicLogger routes resolver panics into logrus.
type panicLogger struct {
	log *logrus.Entry
}

func (l panicLogger) LogPanic(_ context.Context, value interface{}) {
	l.log.WithField("panic", value).Error("graphql resolver panicked")
}

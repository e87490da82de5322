package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"socialfeed/internal/identity"
	"socialfeed/internal/models"
)

// Operation is a closed set of feed requests. Each variant carries its own
// input; Execute dispatches it.
type Operation interface {
	OperationName() string
	execute(ctx context.Context, s *FeedService, caller *identity.Caller) (Result, error)
}

// Result holds whichever output the executed operation produces.
type Result struct {
	Operation     string         `json:"operation"`
	Post          *models.Post   `json:"post,omitempty"`
	Posts         []*models.Post `json:"posts,omitempty"`
	User          *models.User   `json:"user,omitempty"`
	DeletedPostID string         `json:"deleted_post_id,omitempty"`
}

// MarshalJSON always emits posts for listPosts, so an empty feed encodes as
// an empty array rather than a missing key.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	if r.Operation != (ListPostsQuery{}).OperationName() {
		return json.Marshal(plain(r))
	}
	posts := r.Posts
	if posts == nil {
		posts = []*models.Post{}
	}
	return json.Marshal(struct {
		plain
		Posts []*models.Post `json:"posts"`
	}{plain(r), posts})
}

type CreatePostOp struct {
	Body string `json:"body"`
}

type DeletePostOp struct {
	PostID string `json:"post_id"`
}

type CreateCommentOp struct {
	PostID string `json:"post_id"`
	Body   string `json:"body"`
}

type DeleteCommentOp struct {
	PostID    string `json:"post_id"`
	CommentID string `json:"comment_id"`
}

type LikePostOp struct {
	PostID string `json:"post_id"`
}

type RegisterUserOp struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type UpdateUsernameOp struct {
	Username string `json:"username"`
}

type ListPostsQuery struct{}

type GetPostQuery struct {
	PostID string `json:"post_id"`
}

type GetUserQuery struct {
	UserID string `json:"user_id"`
}

type GetUserByIdentityQuery struct {
	IdentityID string `json:"identity_id"`
}

func (CreatePostOp) OperationName() string           { return "createPost" }
func (DeletePostOp) OperationName() string           { return "deletePost" }
func (CreateCommentOp) OperationName() string        { return "createComment" }
func (DeleteCommentOp) OperationName() string        { return "deleteComment" }
func (LikePostOp) OperationName() string             { return "likePost" }
func (RegisterUserOp) OperationName() string         { return "registerUser" }
func (UpdateUsernameOp) OperationName() string       { return "updateUsername" }
func (ListPostsQuery) OperationName() string         { return "listPosts" }
func (GetPostQuery) OperationName() string           { return "getPost" }
func (GetUserQuery) OperationName() string           { return "getUser" }
func (GetUserByIdentityQuery) OperationName() string { return "getUserByIdentity" }

func (op CreatePostOp) execute(ctx context.Context, s *FeedService, caller *identity.Caller) (Result, error) {
	post, err := s.CreatePost(ctx, caller, op.Body)
	return Result{Post: post}, err
}

func (op DeletePostOp) execute(ctx context.Context, s *FeedService, caller *identity.Caller) (Result, error) {
	id, err := s.DeletePost(ctx, caller, op.PostID)
	return Result{DeletedPostID: id}, err
}

func (op CreateCommentOp) execute(ctx context.Context, s *FeedService, caller *identity.Caller) (Result, error) {
	post, err := s.CreateComment(ctx, caller, op.PostID, op.Body)
	return Result{Post: post}, err
}

func (op DeleteCommentOp) execute(ctx context.Context, s *FeedService, caller *identity.Caller) (Result, error) {
	post, err := s.DeleteComment(ctx, caller, op.PostID, op.CommentID)
	return Result{Post: post}, err
}

func (op LikePostOp) execute(ctx context.Context, s *FeedService, caller *identity.Caller) (Result, error) {
	post, err := s.LikePost(ctx, caller, op.PostID)
	return Result{Post: post}, err
}

func (op RegisterUserOp) execute(ctx context.Context, s *FeedService, caller *identity.Caller) (Result, error) {
	user, err := s.RegisterUser(ctx, caller, op.Username, op.Email)
	return Result{User: user}, err
}

func (op UpdateUsernameOp) execute(ctx context.Context, s *FeedService, caller *identity.Caller) (Result, error) {
	user, err := s.UpdateUsername(ctx, caller, op.Username)
	return Result{User: user}, err
}

func (ListPostsQuery) execute(ctx context.Context, s *FeedService, _ *identity.Caller) (Result, error) {
	posts, err := s.ListPosts(ctx)
	return Result{Posts: posts}, err
}

func (op GetPostQuery) execute(ctx context.Context, s *FeedService, _ *identity.Caller) (Result, error) {
	post, err := s.GetPost(ctx, op.PostID)
	return Result{Post: post}, err
}

func (op GetUserQuery) execute(ctx context.Context, s *FeedService, _ *identity.Caller) (Result, error) {
	user, err := s.GetUser(ctx, op.UserID)
	return Result{User: user}, err
}

func (op GetUserByIdentityQuery) execute(ctx context.Context, s *FeedService, _ *identity.Caller) (Result, error) {
	user, err := s.GetUserByIdentity(ctx, op.IdentityID)
	return Result{User: user}, err
}

// Execute runs op on behalf of caller, which may be nil for anonymous requests.
func (s *FeedService) Execute(ctx context.Context, caller *identity.Caller, op Operation) (Result, error) {
	if op == nil {
		return Result{}, models.NewValidationError("operation is required")
	}
	res, err := op.execute(ctx, s, caller)
	if err != nil {
		return Result{}, err
	}
	res.Operation = op.OperationName()
	return res, nil
}

var operationDecoders = map[string]func(json.RawMessage) (Operation, error){
	"createPost":        decodeAs[CreatePostOp],
	"deletePost":        decodeAs[DeletePostOp],
	"createComment":     decodeAs[CreateCommentOp],
	"deleteComment":     decodeAs[DeleteCommentOp],
	"likePost":          decodeAs[LikePostOp],
	"registerUser":      decodeAs[RegisterUserOp],
	"updateUsername":    decodeAs[UpdateUsernameOp],
	"listPosts":         decodeAs[ListPostsQuery],
	"getPost":           decodeAs[GetPostQuery],
	"getUser":           decodeAs[GetUserQuery],
	"getUserByIdentity": decodeAs[GetUserByIdentityQuery],
}

// DecodeOperation builds the operation variant called name from its JSON input.
func DecodeOperation(name string, input json.RawMessage) (Operation, error) {
	decode, ok := operationDecoders[name]
	if !ok {
		return nil, models.NewValidationError(fmt.Sprintf("unknown operation %q", name))
	}
	return decode(input)
}

func decodeAs[T Operation](input json.RawMessage) (Operation, error) {
	var op T
	trimmed := bytes.TrimSpace(input)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return op, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&op); err != nil {
		return nil, models.NewValidationError(fmt.Sprintf("invalid input for %s: %v", op.OperationName(), err))
	}
	return op, nil
}

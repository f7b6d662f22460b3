package feed

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/livefeed/backend/internal/auth"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 32)...)

type testServer struct {
	*fixture
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	f := newFixture(t, Options{PageSize: 2, DeleteRequiresOwner: true})
	log, _ := test.NewNullLogger()

	schema, err := NewSchema(f.svc, log)
	require.NoError(t, err)
	h := NewHandler(schema, f.svc, f.disk, 1<<20, log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := f.gate.Authenticate(r.Header.Get("Authorization"))
			next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), ac)))
		})
	})
	r.Get("/graphql", h.GraphQL)
	r.Post("/graphql", h.GraphQL)
	r.Put("/post-image", h.UploadImage)
	r.Get("/images/{name}", h.ServeImage)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{fixture: f, srv: srv}
}

type gqlResult struct {
	status int
	Data   map[string]json.RawMessage `json:"data"`
	Errors []graphqlError             `json:"errors"`
}

func (s *testServer) graphql(t *testing.T, token, query string, vars map[string]interface{}) gqlResult {
	t.Helper()
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/graphql", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := gqlResult{status: resp.StatusCode}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *testServer) signupAndLogin(t *testing.T, email string) (token, userID string) {
	t.Helper()
	res := s.graphql(t, "", `mutation($in: UserInputData!) { createUser(userInput: $in) { id email status } }`,
		map[string]interface{}{"in": map[string]interface{}{"email": email, "name": "Max", "password": "secret"}})
	require.Empty(t, res.Errors)

	res = s.graphql(t, "", `query($e: String!, $p: String!) { login(email: $e, password: $p) { token userId } }`,
		map[string]interface{}{"e": email, "p": "secret"})
	require.Empty(t, res.Errors)
	var data struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(res.Data["login"], &data))
	return data.Token, data.UserID
}

func (s *testServer) upload(t *testing.T, token, filename string, content []byte, oldPath string) (*http.Response, map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if content != nil {
		part, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	if oldPath != "" {
		require.NoError(t, mw.WriteField("oldPath", oldPath))
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPut, s.srv.URL+"/post-image", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

const createPostMutation = `mutation($in: PostInputData!) {
	createPost(postInput: $in) { id title imageUrl creator { id name } createdAt }
}`

func TestGraphQL_PostLifecycle(t *testing.T) {
	s := newTestServer(t)
	token, userID := s.signupAndLogin(t, "max@test.com")

	resp, body := s.upload(t, token, "photo.png", pngBytes, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	imagePath := body["filePath"]

	res := s.graphql(t, token, createPostMutation, map[string]interface{}{
		"in": map[string]interface{}{"title": "First post", "content": "Hello there", "imageUrl": imagePath},
	})
	require.Empty(t, res.Errors)
	var created struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		ImageURL string `json:"imageUrl"`
		Creator  struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"creator"`
		CreatedAt string `json:"createdAt"`
	}
	require.NoError(t, json.Unmarshal(res.Data["createPost"], &created))
	assert.Equal(t, "First post", created.Title)
	assert.Equal(t, imagePath, created.ImageURL)
	assert.Equal(t, userID, created.Creator.ID)
	assert.Equal(t, "Max", created.Creator.Name)
	assert.NotEmpty(t, created.CreatedAt)

	res = s.graphql(t, "", `{ posts { totalPosts posts { id title } } }`, nil)
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"totalPosts":1,"posts":[{"id":"`+created.ID+`","title":"First post"}]}`, string(res.Data["posts"]))

	res = s.graphql(t, token, `query { user { id posts } }`, nil)
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"id":"`+userID+`","posts":["`+created.ID+`"]}`, string(res.Data["user"]))

	res = s.graphql(t, token, `mutation($id: ID!) { deletePost(id: $id) }`, map[string]interface{}{"id": created.ID})
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `true`, string(res.Data["deletePost"]))

	res = s.graphql(t, "", `query($id: ID!) { post(id: $id) { id } }`, map[string]interface{}{"id": created.ID})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, http.StatusNotFound, res.Errors[0].Status)
	assert.Equal(t, []interface{}{"post"}, res.Errors[0].Path)
}

func TestGraphQL_ErrorMapping(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signupAndLogin(t, "max@test.com")

	res := s.graphql(t, token, createPostMutation, map[string]interface{}{
		"in": map[string]interface{}{"title": "abc", "content": "x"},
	})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, http.StatusUnprocessableEntity, res.status)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Errors[0].Status)
	assert.Len(t, res.Errors[0].Data, 3)

	res = s.graphql(t, "", `{ user { id } }`, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, http.StatusUnauthorized, res.Errors[0].Status)

	res = s.graphql(t, "not-a-valid-token", `{ user { id } }`, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, http.StatusUnauthorized, res.Errors[0].Status)

	res = s.graphql(t, "", `mutation($in: UserInputData!) { createUser(userInput: $in) { id } }`,
		map[string]interface{}{"in": map[string]interface{}{"email": "max@test.com", "name": "Max", "password": "secret"}})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, http.StatusConflict, res.Errors[0].Status)

	res = s.graphql(t, "", `{ posts { nope } }`, nil)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, http.StatusBadRequest, res.status)
}

func TestGraphQL_GetAndBadRequests(t *testing.T) {
	s := newTestServer(t)

	q := url.Values{"query": {`{ posts(page: 1) { totalPosts } }`}}
	resp, err := http.Get(s.srv.URL + "/graphql?" + q.Encode())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"data":{"posts":{"totalPosts":0}}}`, string(body))

	resp, err = http.Post(s.srv.URL+"/graphql", "application/json", bytes.NewReader([]byte(`{"query":""}`)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, err = http.Post(s.srv.URL+"/graphql", "application/json", bytes.NewReader([]byte(`{`)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUploadImage(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signupAndLogin(t, "max@test.com")

	resp, _ := s.upload(t, "", "photo.png", pngBytes, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := s.upload(t, token, "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "No file", body["message"])

	resp, body = s.upload(t, token, "notes.png", []byte("just some text, not an image"), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "No file", body["message"])

	resp, body = s.upload(t, token, "../../photo.png", pngBytes, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "File stored", body["message"])
	first := body["filePath"]
	assert.Regexp(t, `^images/[0-9a-f-]{36}-photo\.png$`, first)
	assert.True(t, s.imageExists(t, first))

	resp, body = s.upload(t, token, "second.png", pngBytes, first)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	s.releaser.Wait()
	assert.False(t, s.imageExists(t, first), "oldPath released")
	second := body["filePath"]
	assert.True(t, s.imageExists(t, second))

	otherToken, _ := s.signupAndLogin(t, "eve@test.com")
	resp, _ = s.upload(t, otherToken, "third.png", pngBytes, second)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	s.releaser.Wait()
	assert.True(t, s.imageExists(t, second), "another user's upload is kept")
}

func TestServeImage(t *testing.T) {
	s := newTestServer(t)
	path := s.image(t, s.login(t, "max@test.com", "Max"), "served.png")

	resp, err := http.Get(s.srv.URL + "/" + path)
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "img", string(data))
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp, err = http.Get(s.srv.URL + "/images/missing.png")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

package cloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ocsOK(data string) string {
	return fmt.Sprintf(`{"ocs":{"meta":{"status":"ok","statuscode":100,"message":"OK"},"data":%s}}`, data)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL, "teacher", "secret")
	require.NoError(t, err)
	return client
}

func TestCreateDirectory_Created(t *testing.T) {
	var method, path string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusCreated)
	}))

	err := client.CreateDirectory(context.Background(), "Quizzes/2A/")
	require.NoError(t, err)
	assert.Equal(t, "MKCOL", method)
	assert.Equal(t, "/remote.php/webdav/Quizzes/2A", path)
}

func TestCreateDirectory_AlreadyExists(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))

	err := client.CreateDirectory(context.Background(), "Quizzes/")
	assert.ErrorIs(t, err, ErrExists)
}

func TestCreateDirectory_Idempotent(t *testing.T) {
	existing := make(map[string]bool)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if existing[r.URL.Path] {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		existing[r.URL.Path] = true
		w.WriteHeader(http.StatusCreated)
	}))

	require.NoError(t, client.CreateDirectory(context.Background(), "Quizzes/"))
	err := client.CreateDirectory(context.Background(), "Quizzes/")
	assert.ErrorIs(t, err, ErrExists)
	assert.Len(t, existing, 1)
}

func TestCreateDirectory_OtherError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	err := client.CreateDirectory(context.Background(), "Quizzes/deep/")
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusConflict, reqErr.StatusCode)
	assert.Equal(t, "Quizzes/deep/", reqErr.Path)
}

func TestUploadFile(t *testing.T) {
	local := filepath.Join(t.TempDir(), "quiz_001.pdf")
	require.NoError(t, os.WriteFile(local, []byte("pdf bytes"), 0o644))

	var gotBody []byte
	var gotPath, gotAuthUser string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuthUser, _, _ = r.BasicAuth()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))

	err := client.UploadFile(context.Background(), "Quizzes/2A/Doe Jane (001)/Quiz 3 - Doe Jane (001).pdf", local)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(gotBody))
	assert.Equal(t, "teacher", gotAuthUser)
	assert.Equal(t, "/remote.php/webdav/Quizzes/2A/Doe Jane (001)/Quiz 3 - Doe Jane (001).pdf", gotPath)
}

func TestUploadFile_Rejected(t *testing.T) {
	local := filepath.Join(t.TempDir(), "quiz.pdf")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o644))

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInsufficientStorage)
	}))

	err := client.UploadFile(context.Background(), "Quizzes/quiz.pdf", local)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusInsufficientStorage, reqErr.StatusCode)
}

func TestListShares(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.Header.Get("OCS-APIRequest"))
		assert.Equal(t, "/Quizzes/2A/Doe Jane (001)", r.URL.Query().Get("path"))
		fmt.Fprint(w, ocsOK(`[
			{"id":1,"share_type":0,"share_with":"jdoe"},
			{"id":2,"share_type":3,"url":"https://cloud/s/abc"}
		]`))
	}))

	shares, err := client.ListShares(context.Background(), "Quizzes/2A/Doe Jane (001)/")
	require.NoError(t, err)
	require.Len(t, shares, 2)
	assert.Equal(t, "jdoe", shares[0].ShareWith)
	assert.False(t, shares[0].IsLink())
	assert.Equal(t, "https://cloud/s/abc", shares[1].URL)
	assert.True(t, shares[1].IsLink())
}

func TestShareWithUser_Local(t *testing.T) {
	var form map[string][]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		fmt.Fprint(w, ocsOK(`{"id":10}`))
	}))

	err := client.ShareWithUser(context.Background(), "Quizzes/2A/Doe Jane (001)/", "jdoe", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, form["shareType"])
	assert.Equal(t, []string{"jdoe"}, form["shareWith"])
	assert.Equal(t, []string{"/Quizzes/2A/Doe Jane (001)"}, form["path"])
}

func TestShareWithUser_FederatedAppendsSlash(t *testing.T) {
	var form map[string][]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		fmt.Fprint(w, ocsOK(`{"id":11}`))
	}))

	err := client.ShareWithUser(context.Background(), "Quizzes/folder/", "jane@other.example.org", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"6"}, form["shareType"])
	assert.Equal(t, []string{"jane@other.example.org/"}, form["shareWith"])
}

func TestShareByLink(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "3", r.PostForm.Get("shareType"))
		fmt.Fprint(w, ocsOK(`{"id":12,"share_type":3,"url":"https://cloud/s/xyz"}`))
	}))

	link, err := client.ShareByLink(context.Background(), "Quizzes/folder/")
	require.NoError(t, err)
	assert.Equal(t, "https://cloud/s/xyz", link)
}

func TestShareByLink_OCSFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"ocs":{"meta":{"status":"failure","statuscode":404,"message":"wrong path"},"data":[]}}`)
	}))

	_, err := client.ShareByLink(context.Background(), "Quizzes/missing/")
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Contains(t, reqErr.Error(), "wrong path")
}

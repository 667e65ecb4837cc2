package export

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	sink := &DirSink{Dir: dir}

	require.NoError(t, sink.Save(context.Background(), Blob{Name: "p1.csv", Data: []byte("a,b\n")}))
	got, err := os.ReadFile(filepath.Join(dir, "p1.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(got))

	// Overwrite keeps only the latest content.
	require.NoError(t, sink.Save(context.Background(), Blob{Name: "p1.csv", Data: []byte("c\n")}))
	got, _ = os.ReadFile(filepath.Join(dir, "p1.csv"))
	assert.Equal(t, "c\n", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestDirSink_RejectsTraversal(t *testing.T) {
	sink := &DirSink{Dir: t.TempDir()}
	for _, name := range []string{"../x.csv", "a/b.csv", "", "..", `a\b.csv`} {
		err := sink.Save(context.Background(), Blob{Name: name})
		assert.ErrorIs(t, err, ErrPermanent, name)
	}
}

func TestHTTPSink(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		got = map[string]string{
			"data_dir":  r.PostForm.Get("data_dir"),
			"file_name": r.PostForm.Get("file_name"),
			"exp_data":  r.PostForm.Get("exp_data"),
		}
	}))
	defer srv.Close()

	sink := &HTTPSink{Client: srv.Client(), SaveURL: srv.URL + "/save_data", DataDir: "data"}
	require.NoError(t, sink.Save(context.Background(), Blob{Name: "p1.csv", Data: []byte("x,y")}))
	assert.Equal(t, map[string]string{"data_dir": "data", "file_name": "p1.csv", "exp_data": "x,y"}, got)
}

func TestHTTPSink_StatusClasses(t *testing.T) {
	tests := []struct {
		status    int
		permanent bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusForbidden, true},
		{http.StatusTooManyRequests, false},
		{http.StatusBadGateway, false},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.status)
		}))
		sink := &HTTPSink{Client: srv.Client(), SaveURL: srv.URL}
		err := sink.Save(context.Background(), Blob{Name: "p.csv"})
		require.Error(t, err)
		assert.Equal(t, tt.permanent, errors.Is(err, ErrPermanent), "status %d", tt.status)
		srv.Close()
	}
}

func TestHTTPNotifierAndUploader(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		mu.Lock()
		calls[r.URL.Path] = r.PostForm.Get("file_name")
		mu.Unlock()
	}))
	defer srv.Close()

	n := &HTTPNotifier{Client: srv.Client(), MailURL: srv.URL + "/mail"}
	require.NoError(t, n.Mail(context.Background(), "p1.csv"))
	u := &HTTPUploader{Client: srv.Client(), UploadURL: srv.URL + "/upload", DataDir: "data"}
	require.NoError(t, u.Save(context.Background(), Blob{Name: "p1.csv"}))

	assert.Equal(t, map[string]string{"/mail": "p1.csv", "/upload": "p1.csv"}, calls)
}

type memLog struct {
	names []string
}

func (m *memLog) RecordExport(_ context.Context, _, name, _ string, _ []byte) error {
	m.names = append(m.names, name)
	return nil
}

func TestMulti(t *testing.T) {
	log := &memLog{}
	failing := &flakyPersister{failures: 10, err: errors.New("down")}
	m := Multi{&StoreSink{Log: log, SessionID: "s"}, failing}

	err := m.Save(context.Background(), Blob{Name: "a.csv"})
	assert.Error(t, err)
	assert.Equal(t, []string{"a.csv"}, log.names, "other sinks still run")
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "a.csv", objectName("", "a.csv"))
	assert.Equal(t, "study/a.csv", objectName("/study/", "a.csv"))
}

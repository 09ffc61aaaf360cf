package bitbucketserver //nolint:testpackage // tests unexported functions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rios0rios0/repoinventory/domain"
	"github.com/rios0rios0/repoinventory/infrastructure/credential"
	"github.com/rios0rios0/repoinventory/infrastructure/platform"
)

func newTestPlatform(t *testing.T, handler http.Handler) *Platform {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	rotator, err := credential.NewRotator([]string{"bbs-token"})
	require.NoError(t, err)

	return New(platform.Deps{
		Rotator:    rotator,
		BaseURL:    server.URL,
		Heuristics: domain.DefaultHeuristics(),
	}).(*Platform)
}

func writePage[T any](t *testing.T, w http.ResponseWriter, values []T, isLast bool, nextStart int) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"values":        values,
		"size":          len(values),
		"isLastPage":    isLast,
		"nextPageStart": nextStart,
	}))
}

func TestPlatform_ListProjects(t *testing.T) {
	t.Parallel()

	t.Run("should page through projects until isLastPage", func(t *testing.T) {
		t.Parallel()

		// given
		mux := http.NewServeMux()
		mux.HandleFunc("/rest/api/1.0/projects", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("start") == "0" {
				writePage(t, w, []bbsProject{{ID: 1, Key: "WID", Name: "Widgets"}}, false, 1)
				return
			}
			writePage(t, w, []bbsProject{{ID: 2, Key: "GEA", Name: "Gears"}}, true, 0)
		})
		p := newTestPlatform(t, mux)

		// when
		projects, err := p.ListProjects(context.Background(), "bbs-prod")

		// then
		require.NoError(t, err)
		require.Len(t, projects, 2)
		assert.Equal(t, "WID", projects[0].Key)
		assert.Equal(t, "Gears", projects[1].Name)
		assert.Equal(t, "bbs-prod", projects[0].Organization)
	})

	t.Run("should authenticate with a bearer token", func(t *testing.T) {
		t.Parallel()

		// given
		var gotAuth string
		mux := http.NewServeMux()
		mux.HandleFunc("/rest/api/1.0/projects", func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			writePage(t, w, []bbsProject{}, true, 0)
		})
		p := newTestPlatform(t, mux)

		// when
		_, err := p.ListProjects(context.Background(), "bbs-prod")

		// then
		require.NoError(t, err)
		assert.Equal(t, "Bearer bbs-token", gotAuth)
	})
}

func TestPlatform_ProbeBackends(t *testing.T) {
	t.Parallel()

	widgets := domain.Project{Organization: "bbs-prod", Name: "Widgets", Key: "WID"}

	t.Run("should expose a single git candidate with sampled signals", func(t *testing.T) {
		t.Parallel()

		// given
		mux := http.NewServeMux()
		mux.HandleFunc("/rest/api/1.0/projects/WID/repos", func(w http.ResponseWriter, _ *http.Request) {
			writePage(t, w, []bbsRepository{{ID: 10, Slug: "widgets-api", Name: "widgets-api"}}, true, 0)
		})
		mux.HandleFunc("/rest/api/1.0/projects/WID/repos/widgets-api/files", func(w http.ResponseWriter, _ *http.Request) {
			writePage(t, w, []string{"README.md", "main.go"}, true, 0)
		})
		mux.HandleFunc("/rest/api/1.0/projects/WID/repos/widgets-api/commits", func(w http.ResponseWriter, _ *http.Request) {
			writePage(t, w, []bbsCommit{{ID: "abc", CommitterTimestamp: 1712000000000}}, true, 0)
		})
		p := newTestPlatform(t, mux)

		// when
		probes := p.ProbeBackends(context.Background(), widgets)

		// then
		require.Len(t, probes, 1)
		git := probes[domain.ModernVCS]
		assert.True(t, git.HasContent)
		assert.Equal(t, int64(2), git.ItemCount.Int64())
		activity, known := git.LastActivity.Time()
		assert.True(t, known)
		assert.Equal(t, time.UnixMilli(1712000000000), activity)
	})

	t.Run("should report an empty project without error", func(t *testing.T) {
		t.Parallel()

		// given
		mux := http.NewServeMux()
		mux.HandleFunc("/rest/api/1.0/projects/WID/repos", func(w http.ResponseWriter, _ *http.Request) {
			writePage(t, w, []bbsRepository{}, true, 0)
		})
		p := newTestPlatform(t, mux)

		// when
		probes := p.ProbeBackends(context.Background(), widgets)

		// then
		git := probes[domain.ModernVCS]
		assert.False(t, git.HasContent)
		assert.NoError(t, git.Err)
		assert.Equal(t, domain.MetricEmpty, git.ItemCount.State())
	})

	t.Run("should degrade with forbidden marked on 403", func(t *testing.T) {
		t.Parallel()

		// given
		mux := http.NewServeMux()
		mux.HandleFunc("/rest/api/1.0/projects/WID/repos", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
		p := newTestPlatform(t, mux)

		// when
		probes := p.ProbeBackends(context.Background(), widgets)

		// then
		git := probes[domain.ModernVCS]
		require.Error(t, git.Err)
		assert.True(t, git.Forbidden)
	})
}

func TestPlatform_CollectRecords(t *testing.T) {
	t.Parallel()

	widgets := domain.Project{Organization: "bbs-prod", Name: "Widgets", Key: "WID"}

	t.Run("should project repository sizes from file counts", func(t *testing.T) {
		t.Parallel()

		// given
		mux := http.NewServeMux()
		mux.HandleFunc("/rest/api/1.0/projects/WID/repos", func(w http.ResponseWriter, _ *http.Request) {
			writePage(t, w, []bbsRepository{{ID: 10, Slug: "widgets-api", Name: "widgets-api"}}, true, 0)
		})
		mux.HandleFunc("/rest/api/1.0/projects/WID/repos/widgets-api/branches", func(w http.ResponseWriter, _ *http.Request) {
			writePage(t, w, []bbsBranch{{DisplayID: "main"}, {DisplayID: "dev"}}, true, 0)
		})
		mux.HandleFunc("/rest/api/1.0/projects/WID/repos/widgets-api/files", func(w http.ResponseWriter, _ *http.Request) {
			writePage(t, w, []string{"README.md", "main.go", "go.mod"}, true, 0)
		})
		mux.HandleFunc("/rest/api/1.0/projects/WID/repos/widgets-api/commits", func(w http.ResponseWriter, _ *http.Request) {
			writePage(t, w, []bbsCommit{{ID: "abc", CommitterTimestamp: 1712000000000}}, true, 0)
		})
		p := newTestPlatform(t, mux)

		// when
		records, err := p.CollectRecords(context.Background(), widgets, domain.ModernVCS, nil)

		// then
		require.NoError(t, err)
		require.Len(t, records, 1)
		record := records[0]
		assert.Equal(t, int64(2), record.BranchCount.Int64())
		assert.Equal(t, int64(3), record.FileCount.Int64())
		assert.Equal(t, int64(3*3*1024), record.SizeBytes.Int64())
		assert.Equal(t, domain.TierEstimated, record.SizeTier)
	})

	t.Run("should emit a fallback row for projects without git content", func(t *testing.T) {
		t.Parallel()

		// given
		p := newTestPlatform(t, http.NotFoundHandler())

		// when
		records, err := p.CollectRecords(context.Background(), widgets, domain.GenericFileStore, nil)

		// then
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, domain.GenericFileStore, records[0].Kind)
		assert.False(t, records[0].FileCount.Determined())
	})
}

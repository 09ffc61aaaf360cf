package github //nolint:testpackage // tests unexported functions

import (
	"context"
	"fmt"
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

// the client rewrites the enterprise base URL onto /api/v3/
const apiPrefix = "/api/v3"

func newTestPlatform(t *testing.T, tokens []string, handler http.Handler) *Platform {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	rotator, err := credential.NewRotator(tokens)
	require.NoError(t, err)

	return New(platform.Deps{
		Rotator:    rotator,
		BaseURL:    server.URL,
		Heuristics: domain.DefaultHeuristics(),
	}).(*Platform)
}

func TestPlatform_ListProjects(t *testing.T) {
	t.Parallel()

	t.Run("should map each repository to a synthetic project", func(t *testing.T) {
		t.Parallel()

		// given
		mux := http.NewServeMux()
		mux.HandleFunc(apiPrefix+"/orgs/acme/repos", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `[{"id":1,"name":"widgets"},{"id":2,"name":"gears"}]`)
		})
		p := newTestPlatform(t, []string{"gh-token"}, mux)

		// when
		projects, err := p.ListProjects(context.Background(), "acme")

		// then
		require.NoError(t, err)
		require.Len(t, projects, 2)
		assert.Equal(t, "widgets", projects[0].Name)
		assert.Equal(t, "acme", projects[0].Organization)
		assert.Equal(t, "1", projects[0].ID)
	})

	t.Run("should fall back to user repositories when org listing fails", func(t *testing.T) {
		t.Parallel()

		// given
		mux := http.NewServeMux()
		mux.HandleFunc(apiPrefix+"/orgs/someuser/repos", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		mux.HandleFunc(apiPrefix+"/users/someuser/repos", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `[{"id":7,"name":"dotfiles"}]`)
		})
		p := newTestPlatform(t, []string{"gh-token"}, mux)

		// when
		projects, err := p.ListProjects(context.Background(), "someuser")

		// then
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, "dotfiles", projects[0].Name)
	})

	t.Run("should rotate tokens across requests", func(t *testing.T) {
		t.Parallel()

		// given
		var seen []string
		mux := http.NewServeMux()
		mux.HandleFunc(apiPrefix+"/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.Header.Get("Authorization"))
			if len(seen) == 1 {
				w.Header().Set("Link",
					fmt.Sprintf(`<%s/orgs/acme/repos?page=2>; rel="next"`, apiPrefix))
			}
			fmt.Fprint(w, `[{"id":1,"name":"widgets"}]`)
		})
		p := newTestPlatform(t, []string{"token-a", "token-b"}, mux)

		// when
		_, err := p.ListProjects(context.Background(), "acme")

		// then
		require.NoError(t, err)
		require.Len(t, seen, 2)
		assert.Equal(t, "Bearer token-a", seen[0])
		assert.Equal(t, "Bearer token-b", seen[1])
	})
}

func TestPlatform_ProbeBackends(t *testing.T) {
	t.Parallel()

	widgets := domain.Project{Organization: "acme", Name: "widgets", ID: "1"}

	t.Run("should treat the reported size as authoritative content", func(t *testing.T) {
		t.Parallel()

		// given - GitHub reports sizes in kilobytes
		mux := http.NewServeMux()
		mux.HandleFunc(apiPrefix+"/repos/acme/widgets", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"id":1,"name":"widgets","size":1024,"pushed_at":"2025-03-10T09:30:00Z"}`)
		})
		p := newTestPlatform(t, []string{"gh-token"}, mux)

		// when
		probes := p.ProbeBackends(context.Background(), widgets)

		// then
		require.Len(t, probes, 1)
		git := probes[domain.ModernVCS]
		assert.True(t, git.HasContent)
		assert.Equal(t, int64(1024*1024), git.TotalSize.Int64())
		activity, known := git.LastActivity.Time()
		assert.True(t, known)
		assert.Equal(t, time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC), activity.UTC())
	})

	t.Run("should report an empty repository without content", func(t *testing.T) {
		t.Parallel()

		// given
		mux := http.NewServeMux()
		mux.HandleFunc(apiPrefix+"/repos/acme/widgets", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"id":1,"name":"widgets","size":0}`)
		})
		p := newTestPlatform(t, []string{"gh-token"}, mux)

		// when
		probes := p.ProbeBackends(context.Background(), widgets)

		// then
		git := probes[domain.ModernVCS]
		assert.False(t, git.HasContent)
		assert.Equal(t, domain.MetricEmpty, git.TotalSize.State())
	})

	t.Run("should degrade with forbidden marked on 403", func(t *testing.T) {
		t.Parallel()

		// given
		mux := http.NewServeMux()
		mux.HandleFunc(apiPrefix+"/repos/acme/widgets", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
		p := newTestPlatform(t, []string{"gh-token"}, mux)

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

	widgets := domain.Project{Organization: "acme", Name: "widgets", ID: "1"}

	t.Run("should measure branches, tree, and authoritative size", func(t *testing.T) {
		t.Parallel()

		// given
		mux := http.NewServeMux()
		mux.HandleFunc(apiPrefix+"/repos/acme/widgets", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"id":1,"name":"widgets","size":2048,"default_branch":"main","pushed_at":"2025-03-10T09:30:00Z"}`)
		})
		mux.HandleFunc(apiPrefix+"/repos/acme/widgets/branches", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `[{"name":"main"},{"name":"dev"},{"name":"release"}]`)
		})
		mux.HandleFunc(apiPrefix+"/repos/acme/widgets/git/trees/main", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"sha":"abc","tree":[
				{"path":"main.go","type":"blob","size":4000},
				{"path":"README.md","type":"blob","size":900},
				{"path":"internal","type":"tree"}
			]}`)
		})
		p := newTestPlatform(t, []string{"gh-token"}, mux)

		// when
		records, err := p.CollectRecords(context.Background(), widgets, domain.ModernVCS, nil)

		// then
		require.NoError(t, err)
		require.Len(t, records, 1)
		record := records[0]
		assert.Equal(t, int64(3), record.BranchCount.Int64())
		assert.Equal(t, int64(2048*1024), record.SizeBytes.Int64())
		assert.Equal(t, domain.TierAuthoritative, record.SizeTier)
		assert.Equal(t, int64(2), record.FileCount.Int64())
		assert.Equal(t, int64(4000), record.LargestFileSize.Int64())
	})

	t.Run("should keep unknown cells when the tree cannot be listed", func(t *testing.T) {
		t.Parallel()

		// given
		mux := http.NewServeMux()
		mux.HandleFunc(apiPrefix+"/repos/acme/widgets", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"id":1,"name":"widgets","size":10,"default_branch":"main"}`)
		})
		mux.HandleFunc(apiPrefix+"/repos/acme/widgets/branches", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `[{"name":"main"}]`)
		})
		p := newTestPlatform(t, []string{"gh-token"}, mux)

		// when
		records, err := p.CollectRecords(context.Background(), widgets, domain.ModernVCS, nil)

		// then
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.False(t, records[0].FileCount.Determined())
		assert.Equal(t, domain.TierAuthoritative, records[0].SizeTier)
	})
}

func TestRotatorTransport_Observe(t *testing.T) {
	t.Parallel()

	t.Run("should feed rate headers back to the rotator", func(t *testing.T) {
		t.Parallel()

		// given - the server reports an exhausted budget
		reset := time.Now().Add(time.Hour).Unix()
		mux := http.NewServeMux()
		mux.HandleFunc(apiPrefix+"/orgs/acme/repos", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("X-RateLimit-Remaining", "42")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprint(reset))
			fmt.Fprint(w, `[]`)
		})
		p := newTestPlatform(t, []string{"gh-token"}, mux)

		// when
		_, err := p.ListProjects(context.Background(), "acme")

		// then - 42 remaining is above the safety margin, so a second
		// request proceeds without waiting
		require.NoError(t, err)
		_, err = p.ListProjects(context.Background(), "acme")
		require.NoError(t, err)
	})
}

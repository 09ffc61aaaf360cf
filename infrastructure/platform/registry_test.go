package platform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rios0rios0/repoinventory/domain"
	"github.com/rios0rios0/repoinventory/infrastructure/platform"
	testdoubles "github.com/rios0rios0/repoinventory/test"
)

func TestPlatformRegistry(t *testing.T) {
	t.Parallel()

	t.Run("should register and retrieve a platform by name", func(t *testing.T) {
		t.Parallel()

		// given
		reg := platform.NewRegistry()
		factory := func(_ platform.Deps) domain.Platform {
			return &testdoubles.SpyPlatform{PlatformName: "test-platform"}
		}
		reg.Register("test-platform", factory)

		// when
		plat, err := reg.Get("test-platform", platform.Deps{})

		// then
		require.NoError(t, err)
		assert.NotNil(t, plat)
		assert.Equal(t, "test-platform", plat.Name())
	})

	t.Run("should return error for unknown platform", func(t *testing.T) {
		t.Parallel()

		// given
		reg := platform.NewRegistry()

		// when
		plat, err := reg.Get("nonexistent", platform.Deps{})

		// then
		require.Error(t, err)
		assert.Nil(t, plat)
		assert.Contains(t, err.Error(), "unknown platform type")
	})

	t.Run("should list registered platform names", func(t *testing.T) {
		t.Parallel()

		// given
		reg := platform.NewRegistry()
		reg.Register("azuredevops", func(_ platform.Deps) domain.Platform {
			return &testdoubles.SpyPlatform{PlatformName: "azuredevops"}
		})
		reg.Register("github", func(_ platform.Deps) domain.Platform {
			return &testdoubles.SpyPlatform{PlatformName: "github"}
		})

		// when
		names := reg.Names()

		// then
		assert.Len(t, names, 2)
		assert.ElementsMatch(t, []string{"azuredevops", "github"}, names)
	})

	t.Run("should pass deps to factory function", func(t *testing.T) {
		t.Parallel()

		// given
		var receivedURL string
		reg := platform.NewRegistry()
		reg.Register("custom", func(deps platform.Deps) domain.Platform {
			receivedURL = deps.BaseURL
			return &testdoubles.SpyPlatform{PlatformName: "custom"}
		})

		// when
		_, err := reg.Get("custom", platform.Deps{BaseURL: "https://scm.example.test"})

		// then
		require.NoError(t, err)
		assert.Equal(t, "https://scm.example.test", receivedURL)
	})

	t.Run("should return empty names for empty registry", func(t *testing.T) {
		t.Parallel()

		// given
		reg := platform.NewRegistry()

		// when
		names := reg.Names()

		// then
		assert.Empty(t, names)
	})
}

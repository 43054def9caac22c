package bootstrap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/missedcall-flow/internal/catalog"
	"github.com/wolfman30/missedcall-flow/internal/category"
	appconfig "github.com/wolfman30/missedcall-flow/internal/config"
	"github.com/wolfman30/missedcall-flow/internal/conversation"
)

func TestBuildResolverStrict(t *testing.T) {
	resolver, err := BuildResolver(&appconfig.Config{CategoryStrict: true}, catalog.Default())
	require.NoError(t, err)

	_, err = resolver.Resolve("astronaut")
	assert.True(t, errors.Is(err, category.ErrUnknownCategory))
}

func TestBuildResolverLenientFallback(t *testing.T) {
	resolver, err := BuildResolver(&appconfig.Config{CategoryFallback: "business_query"}, catalog.Default())
	require.NoError(t, err)

	key, err := resolver.Resolve("astronaut")
	require.NoError(t, err)
	assert.Equal(t, catalog.CategoryKey("business_query"), key)
}

func TestBuildResolverRejectsUnknownFallback(t *testing.T) {
	_, err := BuildResolver(&appconfig.Config{CategoryFallback: "nope"}, catalog.Default())
	assert.Error(t, err)
}

func TestConversationConfig(t *testing.T) {
	cfg, err := ConversationConfig(&appconfig.Config{IntroTextPolicy: "ignore", BatchConcurrency: 3})
	require.NoError(t, err)
	assert.Equal(t, conversation.IntroTextIgnore, cfg.IntroTextPolicy)
	assert.Equal(t, 3, cfg.BatchConcurrency)

	_, err = ConversationConfig(&appconfig.Config{IntroTextPolicy: "sometimes"})
	assert.Error(t, err)

	_, err = ConversationConfig(nil)
	assert.Error(t, err)
}

package bootstrap

import (
	"fmt"

	"github.com/wolfman30/missedcall-flow/internal/catalog"
	"github.com/wolfman30/missedcall-flow/internal/category"
	appconfig "github.com/wolfman30/missedcall-flow/internal/config"
	"github.com/wolfman30/missedcall-flow/internal/conversation"
)

// BuildResolver builds the profession resolver over reg using the configured policy.
func BuildResolver(cfg *appconfig.Config, reg *catalog.Registry) (*category.Resolver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	policy := category.StrictPolicy()
	if !cfg.CategoryStrict {
		policy = category.Policy{Fallback: catalog.CategoryKey(cfg.CategoryFallback)}
	}
	resolver, err := category.NewFromCatalog(reg, policy)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: category resolver: %w", err)
	}
	return resolver, nil
}

// ConversationConfig translates environment settings into orchestrator switches.
func ConversationConfig(cfg *appconfig.Config) (conversation.Config, error) {
	if cfg == nil {
		return conversation.Config{}, fmt.Errorf("bootstrap: config is required")
	}
	policy, err := conversation.ParseIntroTextPolicy(cfg.IntroTextPolicy)
	if err != nil {
		return conversation.Config{}, fmt.Errorf("bootstrap: %w", err)
	}
	return conversation.Config{
		IntroTextPolicy:  policy,
		BatchConcurrency: cfg.BatchConcurrency,
	}, nil
}

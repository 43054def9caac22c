package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/missedcall-flow/internal/business"
	"github.com/wolfman30/missedcall-flow/internal/catalog"
)

// ErrUnknownPlaceholder is returned when a template names a placeholder the
// orchestrator cannot fill.
var ErrUnknownPlaceholder = errors.New("conversation: unknown template placeholder")

// Placeholder names a template may declare.
const (
	PlaceholderBusinessName = "business_name"
	PlaceholderCallerPhone  = "caller_phone"
	PlaceholderSelection    = "selection"
	PlaceholderRequestText  = "request_text"
)

type placeholderSource struct {
	callerID    string
	businessRef string
	category    catalog.CategoryKey
	selection   string
	payload     string
}

// placeholders fills tmpl's declared placeholders in order. The business is
// looked up only when a template needs its name.
func (o *Orchestrator) placeholders(ctx context.Context, tmpl catalog.Template, src placeholderSource) ([]string, error) {
	if len(tmpl.Placeholders) == 0 {
		return nil, nil
	}
	values := make([]string, 0, len(tmpl.Placeholders))
	for _, name := range tmpl.Placeholders {
		switch name {
		case PlaceholderBusinessName:
			values = append(values, o.businessName(ctx, src.businessRef))
		case PlaceholderCallerPhone:
			values = append(values, src.callerID)
		case PlaceholderSelection:
			values = append(values, src.selection)
		case PlaceholderRequestText:
			values = append(values, src.payload)
		default:
			return nil, fmt.Errorf("%w: %q in template %s", ErrUnknownPlaceholder, name, tmpl.Name)
		}
	}
	return values, nil
}

func (o *Orchestrator) businessName(ctx context.Context, ref string) string {
	if o.businesses == nil || ref == "" {
		return ""
	}
	b, err := o.businesses.Get(ctx, ref)
	if err != nil {
		if !errors.Is(err, business.ErrBusinessNotFound) {
			o.logger.Warn("business lookup failed", "business_ref", ref, "error", err)
		}
		return ""
	}
	return b.Name
}

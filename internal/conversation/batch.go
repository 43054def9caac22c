package conversation

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/missedcall-flow/internal/messaging"
)

// HandleInboundBatch processes a webhook batch. Replies from different callers
// run concurrently; replies from the same caller run in batch order. Results
// are returned in input order and one failure never stops the others.
func (o *Orchestrator) HandleInboundBatch(ctx context.Context, replies []InboundReply) []ReplyResult {
	results := make([]ReplyResult, len(replies))

	byCaller := make(map[string][]int)
	order := make([]string, 0)
	for i, r := range replies {
		results[i].Reply = r
		key := messaging.NormalizeE164(r.From)
		if _, ok := byCaller[key]; !ok {
			order = append(order, key)
		}
		byCaller[key] = append(byCaller[key], i)
	}

	var g errgroup.Group
	g.SetLimit(o.cfg.BatchConcurrency)
	for _, key := range order {
		idxs := byCaller[key]
		g.Go(func() error {
			for _, i := range idxs {
				out, err := o.HandleInboundReply(ctx, replies[i])
				results[i].Outcome = out
				results[i].Err = err
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

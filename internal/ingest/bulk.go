package ingest

import (
	"context"
	"fmt"

	"github.com/kestrel-ai/kestrel/internal/document"
)

// BulkAction tags one operation in a mixed bulk request.
type BulkAction string

const (
	ActionIndex  BulkAction = "index"
	ActionUpdate BulkAction = "update"
	ActionDelete BulkAction = "delete"
)

// BulkOp is one entry in a bulk request. Exactly one payload field is read,
// chosen by Action: Document for index, Patch for update, nothing extra
// for delete (ID alone suffices).
type BulkOp struct {
	Action   BulkAction
	ID       string
	Document document.Document
	Patch    Patch
}

// BulkResult counts outcomes per action kind.
type BulkResult struct {
	Indexed int
	Updated int
	Deleted int
	Failed  int
	Errors  []ItemError
}

// Bulk executes a mixed sequence of index, update, and delete operations in
// order. Failures are collected per item; later operations still run.
func (p *Pipeline) Bulk(ctx context.Context, ops []BulkOp, opts Options) *BulkResult {
	result := &BulkResult{}

	for _, op := range ops {
		if err := p.bulkOne(ctx, op, opts, result); err != nil {
			id := op.ID
			if id == "" {
				id = op.Document.ID
			}
			result.Failed++
			result.Errors = append(result.Errors, ItemError{ID: id, Err: err.Error()})
		}
	}

	p.logger.Info("bulk finished", "tenant", p.tenantID,
		"indexed", result.Indexed, "updated", result.Updated,
		"deleted", result.Deleted, "failed", result.Failed)
	return result
}

func (p *Pipeline) bulkOne(ctx context.Context, op BulkOp, opts Options, result *BulkResult) error {
	switch op.Action {
	case ActionIndex:
		if err := p.ingestOne(ctx, op.Document, opts.AgentID); err != nil {
			return err
		}
		result.Indexed++
		return nil

	case ActionUpdate:
		if err := p.Update(ctx, op.ID, op.Patch, opts); err != nil {
			return err
		}
		result.Updated++
		return nil

	case ActionDelete:
		n, err := p.Delete(ctx, []string{op.ID}, opts)
		if err != nil {
			return err
		}
		result.Deleted += n
		return nil

	default:
		return fmt.Errorf("unknown bulk action %q", op.Action)
	}
}

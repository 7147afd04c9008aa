package reconciliation

import (
	"context"
	"sort"

	"github.com/kaspanet/reorgkeeper/domain/model/externalapi"
	"github.com/kaspanet/reorgkeeper/domain/trackeditem"
	"github.com/kaspanet/reorgkeeper/infrastructure/logger"
)

// claim is a recorded assertion that a block with hash was canonical at
// height
type claim struct {
	height  uint64
	hash    *externalapi.DomainHash
	item    *trackeditem.TrackedItem
	isSpend bool
}

func collectClaims(items []*trackeditem.TrackedItem) []*claim {
	var claims []*claim
	for _, item := range items {
		if item.Status.State == trackeditem.StateSpent {
			claims = append(claims, &claim{
				height:  item.Status.SpentHeight,
				hash:    item.Status.SpentInBlock,
				item:    item,
				isSpend: true,
			})
		}
		if item.Status.IsMined() {
			claims = append(claims, &claim{
				height: item.Status.MinedHeight,
				hash:   item.Status.MinedInBlock,
				item:   item,
			})
		}
	}
	// Spend claims sort before mined claims of the same height so that an
	// item is unspent before it is unmined.
	sort.SliceStable(claims, func(i, j int) bool {
		if claims[i].height != claims[j].height {
			return claims[i].height > claims[j].height
		}
		return claims[i].isSpend && !claims[j].isSpend
	})
	return claims
}

// reorgCheck walks the recorded claims from the highest down and reverts
// every claim the oracle disagrees with. It returns all tracked items with
// the reverts applied, and the hash of the first claim the oracle agrees
// with, if any.
func (r *validationRun) reorgCheck(ctx context.Context) ([]*trackeditem.TrackedItem, *externalapi.DomainHash, error) {
	onEnd := logger.LogAndMeasureExecutionTime(log, r.phaseName("ReorgCheck"))
	defer onEnd()

	items, err := r.engine.store.FetchAll()
	if err != nil {
		return nil, nil, r.fail(ErrStorage, err)
	}

	claims := collectClaims(items)
	log.Debugf("Validation %d: checking %d claims of %d items for reorgs", r.operationID, len(claims), len(items))

	stagingArea := trackeditem.NewStagingArea()
	headers := make(map[uint64]*externalapi.DomainHash)
	var anchor *externalapi.DomainHash
	for _, c := range claims {
		header, ok := headers[c.height]
		if !ok {
			err := r.callOracle(ctx, func(ctx context.Context) error {
				var err error
				header, err = r.oracle.HeaderAtHeight(ctx, c.height)
				return err
			})
			if err != nil {
				return nil, nil, err
			}
			headers[c.height] = header
		}

		if header != nil && header.Equal(c.hash) {
			anchor = header
			break
		}
		r.revert(stagingArea, c)
	}

	if !stagingArea.IsEmpty() {
		log.Infof("Validation %d: reorg detected, reverted %d items", r.operationID, stagingArea.Len())
	}
	err = r.commit(stagingArea)
	if err != nil {
		return nil, nil, err
	}
	return items, anchor, nil
}

func (r *validationRun) revert(stagingArea *trackeditem.StagingArea, c *claim) {
	item := c.item
	if c.isSpend {
		if item.Status.State != trackeditem.StateSpent || !item.Status.SpentInBlock.Equal(c.hash) {
			return
		}
		updateItem(stagingArea, item, item.Status.Unspend(r.engine.config.RequiredConfirmations), item.MMRPosition)
		return
	}
	if !item.Status.IsMined() {
		return
	}
	updateItem(stagingArea, item, trackeditem.PendingUnmined(), item.MMRPosition)
}

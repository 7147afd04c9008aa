package reconciliation

import (
	"context"

	"github.com/kaspanet/reorgkeeper/domain/model/externalapi"
	"github.com/kaspanet/reorgkeeper/domain/oracle"
	"github.com/kaspanet/reorgkeeper/domain/trackeditem"
	"github.com/kaspanet/reorgkeeper/infrastructure/logger"
)

func needsSpentStatus(item *trackeditem.TrackedItem) bool {
	if item.Kind != trackeditem.KindOutput || item.MMRPosition == nil {
		return false
	}
	switch item.Status.State {
	case trackeditem.StateMinedUnconfirmed, trackeditem.StateMinedConfirmed:
		return true
	case trackeditem.StateSpent:
		return !item.Status.SpentConfirmed
	}
	return false
}

// spentStatusQuery asks the oracle which mined outputs have been spent,
// relative to anchor
func (r *validationRun) spentStatusQuery(ctx context.Context, items []*trackeditem.TrackedItem,
	anchor *externalapi.DomainHash) error {

	onEnd := logger.LogAndMeasureExecutionTime(log, r.phaseName("SpentStatusQuery"))
	defer onEnd()

	var candidates []*trackeditem.TrackedItem
	for _, item := range items {
		if needsSpentStatus(item) {
			candidates = append(candidates, item)
		}
	}
	log.Debugf("Validation %d: querying spent status of %d outputs", r.operationID, len(candidates))

	for _, bounds := range batches(len(candidates), r.engine.config.BatchSize) {
		err := r.spentStatusQueryBatch(ctx, candidates[bounds[0]:bounds[1]], anchor)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *validationRun) spentStatusQueryBatch(ctx context.Context, batch []*trackeditem.TrackedItem,
	anchor *externalapi.DomainHash) error {

	positions := make([]uint64, 0, len(batch))
	byPosition := make(map[uint64][]*trackeditem.TrackedItem, len(batch))
	for _, item := range batch {
		position := *item.MMRPosition
		if _, ok := byPosition[position]; !ok {
			positions = append(positions, position)
		}
		byPosition[position] = append(byPosition[position], item)
	}

	var response *oracle.DeletedResponse
	err := r.callOracle(ctx, func(ctx context.Context) error {
		var err error
		response, err = r.oracle.QueryDeleted(ctx, positions, anchor)
		return err
	})
	if err != nil {
		return err
	}

	err = validateDeletedResponse(response, byPosition)
	if err != nil {
		return r.fail(ErrInconsistentData, err)
	}

	requiredConfirmations := r.engine.config.RequiredConfirmations
	stagingArea := trackeditem.NewStagingArea()
	for i, position := range response.DeletedPositions {
		height := response.HeightsDeletedAt[i]
		confirmed := response.TipHeight-height >= requiredConfirmations
		for _, item := range byPosition[position] {
			status := item.Status.Spend(height, response.BlocksDeletedIn[i], confirmed)
			updateItem(stagingArea, item, status, item.MMRPosition)
		}
	}
	for _, position := range response.NotDeletedPositions {
		for _, item := range byPosition[position] {
			if item.Status.State != trackeditem.StateSpent {
				continue
			}
			updateItem(stagingArea, item, item.Status.Unspend(requiredConfirmations), item.MMRPosition)
		}
	}
	return r.commit(stagingArea)
}

// validateDeletedResponse checks the parallel arrays of response and that it
// only mentions requested positions, each at most once
func validateDeletedResponse(response *oracle.DeletedResponse,
	requested map[uint64][]*trackeditem.TrackedItem) error {

	if response == nil {
		return inconsistentData("empty deleted response")
	}
	deletedCount := len(response.DeletedPositions)
	if len(response.HeightsDeletedAt) != deletedCount || len(response.BlocksDeletedIn) != deletedCount {
		return inconsistentData("deleted response arrays differ in length: %d positions, %d heights, %d blocks",
			deletedCount, len(response.HeightsDeletedAt), len(response.BlocksDeletedIn))
	}

	seen := make(map[uint64]struct{}, deletedCount+len(response.NotDeletedPositions))
	checkPosition := func(position uint64) error {
		if _, ok := requested[position]; !ok {
			return inconsistentData("unrequested position %d in deleted response", position)
		}
		if _, ok := seen[position]; ok {
			return inconsistentData("duplicate position %d in deleted response", position)
		}
		seen[position] = struct{}{}
		return nil
	}

	for i, position := range response.DeletedPositions {
		err := checkPosition(position)
		if err != nil {
			return err
		}
		if response.BlocksDeletedIn[i] == nil {
			return inconsistentData("position %d deleted in nil block", position)
		}
		if response.HeightsDeletedAt[i] > response.TipHeight {
			return inconsistentData("position %d deleted at height %d above tip %d",
				position, response.HeightsDeletedAt[i], response.TipHeight)
		}
	}
	for _, position := range response.NotDeletedPositions {
		err := checkPosition(position)
		if err != nil {
			return err
		}
	}
	return nil
}

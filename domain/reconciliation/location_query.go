package reconciliation

import (
	"context"

	"github.com/kaspanet/reorgkeeper/domain/oracle"
	"github.com/kaspanet/reorgkeeper/domain/trackeditem"
	"github.com/kaspanet/reorgkeeper/infrastructure/logger"
)

func needsLocation(item *trackeditem.TrackedItem) bool {
	switch item.Status.State {
	case trackeditem.StatePendingUnmined, trackeditem.StateMinedUnconfirmed, trackeditem.StateAbandoned:
		return true
	}
	return false
}

// locationQuery refreshes the location of every item that is not yet
// confirmed
func (r *validationRun) locationQuery(ctx context.Context, items []*trackeditem.TrackedItem) error {
	onEnd := logger.LogAndMeasureExecutionTime(log, r.phaseName("LocationQuery"))
	defer onEnd()

	var candidates []*trackeditem.TrackedItem
	for _, item := range items {
		if needsLocation(item) {
			candidates = append(candidates, item)
		}
	}
	log.Debugf("Validation %d: querying locations of %d items", r.operationID, len(candidates))

	for _, bounds := range batches(len(candidates), r.engine.config.BatchSize) {
		err := r.locationQueryBatch(ctx, candidates[bounds[0]:bounds[1]])
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *validationRun) locationQueryBatch(ctx context.Context, batch []*trackeditem.TrackedItem) error {
	ids := make([]trackeditem.ItemID, len(batch))
	byID := make(map[string]*trackeditem.TrackedItem, len(batch))
	for i, item := range batch {
		ids[i] = item.ID
		byID[item.ID.Key()] = item
	}

	var response *oracle.LocationsResponse
	err := r.callOracle(ctx, func(ctx context.Context) error {
		var err error
		response, err = r.oracle.QueryLocations(ctx, ids)
		return err
	})
	if err != nil {
		return err
	}

	err = validateLocationsResponse(response, byID)
	if err != nil {
		return r.fail(ErrInconsistentData, err)
	}

	config := r.engine.config
	stagingArea := trackeditem.NewStagingArea()
	for _, location := range response.Locations {
		item := byID[location.ID.Key()]

		if location.Location == oracle.Mined {
			mmrPosition := item.MMRPosition
			if item.Kind == trackeditem.KindOutput {
				mmrPosition = location.MMRPosition
			}
			status := trackeditem.Mined(location.Height, location.BlockHash, location.Confirmations,
				config.RequiredConfirmations)
			updateItem(stagingArea, item, status, mmrPosition)
			continue
		}

		if item.IsCoinbase() && *item.CoinbaseHeight+config.CoinbaseAbandonDepth <= response.TipHeight {
			updateItem(stagingArea, item, trackeditem.Abandoned(), item.MMRPosition)
			continue
		}
		updateItem(stagingArea, item, trackeditem.PendingUnmined(), item.MMRPosition)
	}
	return r.commit(stagingArea)
}

// validateLocationsResponse makes sure every requested item is answered
// exactly once and that every mined answer is complete
func validateLocationsResponse(response *oracle.LocationsResponse,
	requested map[string]*trackeditem.TrackedItem) error {

	if response == nil {
		return inconsistentData("empty locations response")
	}
	if len(response.Locations) != len(requested) {
		return inconsistentData("requested %d locations but got %d", len(requested), len(response.Locations))
	}
	seen := make(map[string]struct{}, len(response.Locations))
	for _, location := range response.Locations {
		if location == nil {
			return inconsistentData("nil location in response")
		}
		key := location.ID.Key()
		item, ok := requested[key]
		if !ok {
			return inconsistentData("location of unrequested item %s", location.ID)
		}
		if _, ok := seen[key]; ok {
			return inconsistentData("duplicate location of item %s", location.ID)
		}
		seen[key] = struct{}{}

		if location.Location != oracle.Mined {
			continue
		}
		if location.BlockHash == nil {
			return inconsistentData("mined item %s has no block hash", location.ID)
		}
		if location.Height > response.TipHeight {
			return inconsistentData("item %s mined at height %d above tip %d",
				location.ID, location.Height, response.TipHeight)
		}
		if item.Kind == trackeditem.KindOutput && location.MMRPosition == nil {
			return inconsistentData("mined output %s has no commitment position", location.ID)
		}
	}
	return nil
}

package events

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/infinity/internal/addressing"
	"github.com/roach88/infinity/internal/model"
)

// ErrInconsistentBatch is returned by Adapt when a batch carries state
// changes but no block-commit event to attribute them to.
var ErrInconsistentBatch = errors.New("state delta without block commit")

// View is the typed form of one delivered batch.
type View struct {
	// HasBlock is false when the batch carried no block-commit event.
	HasBlock bool
	Block    model.Checkpoint
	// Changes are the namespace-scoped state changes, in delivery order.
	Changes []StateChange
	// Dropped counts changes that belonged to other families.
	Dropped int
}

// ParseBlock extracts the block identity from the first block-commit event.
// ok is false when the batch has none.
func ParseBlock(evts []Event) (cp model.Checkpoint, ok bool, err error) {
	for _, evt := range evts {
		if evt.Type != BlockCommitType {
			continue
		}
		id, found := evt.Attr(BlockIDKey)
		if !found || id == "" {
			return model.Checkpoint{}, false, fmt.Errorf("block commit: missing %s", BlockIDKey)
		}
		raw, found := evt.Attr(BlockNumKey)
		if !found {
			return model.Checkpoint{}, false, fmt.Errorf("block commit %s: missing %s", model.ShortID(id), BlockNumKey)
		}
		num, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || num < 0 {
			return model.Checkpoint{}, false, fmt.Errorf("block commit %s: invalid %s %q", model.ShortID(id), BlockNumKey, raw)
		}
		return model.Checkpoint{BlockNum: num, BlockID: id}, true, nil
	}
	return model.Checkpoint{}, false, nil
}

// ParseStateChanges decodes every state-delta event in the batch and keeps
// the changes whose address lies in namespace. The rest are counted in
// dropped.
func ParseStateChanges(evts []Event, namespace string) (changes []StateChange, dropped int, err error) {
	changes = []StateChange{}
	for _, evt := range evts {
		if evt.Type != StateDeltaType {
			continue
		}
		all, err := UnmarshalStateChangeList(evt.Data)
		if err != nil {
			return nil, 0, err
		}
		for _, sc := range all {
			if !addressing.InNamespace(sc.Address, namespace) {
				dropped++
				continue
			}
			changes = append(changes, sc)
		}
	}
	return changes, dropped, nil
}

// Adapt normalizes a batch into a View. A batch with changes but no block is
// rejected with ErrInconsistentBatch; a batch with neither yields an empty
// View.
func Adapt(evts []Event, namespace string) (View, error) {
	if namespace == "" {
		namespace = addressing.Namespace
	}

	block, ok, err := ParseBlock(evts)
	if err != nil {
		return View{}, err
	}

	changes, dropped, err := ParseStateChanges(evts, namespace)
	if err != nil {
		return View{}, err
	}

	if !ok {
		if len(changes) > 0 {
			return View{Changes: changes, Dropped: dropped}, ErrInconsistentBatch
		}
		return View{Dropped: dropped}, nil
	}

	return View{
		HasBlock: true,
		Block:    block,
		Changes:  changes,
		Dropped:  dropped,
	}, nil
}

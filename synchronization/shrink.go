package synchronization

import (
	"encoding/json"

	"github.com/jupiterone/integration-sdk-go/common/gerror"
	"github.com/jupiterone/integration-sdk-go/common/models"
)

// truncatedPlaceholder replaces the largest raw data field repeatedly
// shrunk away. Its own serialized size is accounted for in the running
// total, so shrinkRawData's size bookkeeping stays exact (spec.md §4.5).
const truncatedPlaceholder = "TRUNCATED"

// ShrinkResult reports what shrinkRawData did to a batch (spec.md §4.5,
// §8 "shrink produces a monotonically smaller payload").
type ShrinkResult struct {
	InitialSize  int
	FinalSize    int
	FieldsShrunk int
}

// shrinkRawData truncates the largest rawData field of the largest entity
// in batch, repeatedly, until the batch's serialized size is at or under
// maxSize or nothing more can be shrunk (spec.md §4.5 "adaptive payload
// shrinking"). It mutates batch in place; entities are addressed by index
// so mutations to their RawData entries are visible to the caller.
func shrinkRawData(batch []models.Entity, maxSize int) (ShrinkResult, error) {
	total, err := serializedSize(batch)
	if err != nil {
		return ShrinkResult{}, err
	}
	result := ShrinkResult{InitialSize: total, FinalSize: total}

	for total > maxSize {
		entityIdx, entitySize, ok := largestEntity(batch)
		if !ok {
			return result, gerror.NewUploadFailedError("batch is empty but still exceeds the size limit")
		}
		entryIdx, fieldKey, ok := largestRawDataField(batch[entityIdx])
		if !ok {
			return result, gerror.NewUploadFailedError("cannot shrink further: largest entity carries no raw data")
		}

		batch[entityIdx].RawData[entryIdx].RawData[fieldKey] = truncatedPlaceholder

		newEntitySize, err := serializedSize(batch[entityIdx])
		if err != nil {
			return result, err
		}
		if newEntitySize >= entitySize {
			return result, gerror.NewUploadFailedError("cannot shrink further: largest raw data field is no larger than the placeholder")
		}
		total = total - entitySize + newEntitySize

		result.FieldsShrunk++
		result.FinalSize = total
	}

	return result, nil
}

// largestEntity returns the index and serialized size of the largest entity
// in batch.
func largestEntity(batch []models.Entity) (idx int, size int, ok bool) {
	largest := -1
	for i := range batch {
		s, err := serializedSize(batch[i])
		if err != nil {
			continue
		}
		if s > largest {
			largest = s
			idx = i
			ok = true
		}
	}
	return idx, largest, ok
}

// largestRawDataField finds the single largest value across every
// RawDataEntry of e, returning its entry index and field key.
func largestRawDataField(e models.Entity) (entryIdx int, fieldKey string, ok bool) {
	largest := -1
	for i, entry := range e.RawData {
		for k, v := range entry.RawData {
			s, err := serializedSize(v)
			if err != nil {
				continue
			}
			if s > largest {
				largest = s
				entryIdx = i
				fieldKey = k
				ok = true
			}
		}
	}
	return entryIdx, fieldKey, ok
}

func serializedSize(v interface{}) (int, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return len(buf), nil
}

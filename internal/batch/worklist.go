package batch

import (
	"encoding/json"
	"fmt"
	"os"

	"meeting-insights-go/internal/types"
)

// LoadWorkList reads the platform export listing the recordings to process.
// Ids must be unique in the list by contract; duplicates are not removed
// here, the progress check is the only guard.
func LoadWorkList(path string) ([]types.WorkItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read work list: %w", err)
	}
	var items []types.WorkItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse work list: %w", err)
	}
	for i, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("work list entry %d has no id", i)
		}
		if item.URL == "" {
			return nil, fmt.Errorf("work list entry %d (%s) has no url", i, item.ID)
		}
	}
	return items, nil
}

package obs

import (
	"context"
	"sync"

	"github.com/obsmirror/obsmirror/internal/mirror"
)

type sceneItemInfo struct {
	ID         int    `json:"sceneItemId"`
	Index      int    `json:"sceneItemIndex"`
	Enabled    bool   `json:"sceneItemEnabled"`
	SourceName string `json:"sourceName"`
	SourceUUID string `json:"sourceUuid"`
}

// SceneItem is one source placed in a scene.
type SceneItem struct {
	mirror.Readiness
	client *Client

	SceneUUID  string
	ItemID     int
	Index      int
	SourceName string
	SourceUUID string

	mu      sync.RWMutex
	enabled bool
}

func newSceneItem(c *Client, sceneUUID string, info sceneItemInfo) *SceneItem {
	return &SceneItem{
		client:     c,
		SceneUUID:  sceneUUID,
		ItemID:     info.ID,
		Index:      info.Index,
		SourceName: info.SourceName,
		SourceUUID: info.SourceUUID,
		enabled:    info.Enabled,
	}
}

func (i *SceneItem) ID() string { return i.SourceUUID }

// Init has nothing to pull: the item listing already carries the
// enabled state.
func (i *SceneItem) Init(context.Context) error {
	i.MarkReady()
	return nil
}

// Enabled is the cached visibility.
func (i *SceneItem) Enabled() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.enabled
}

func (i *SceneItem) setEnabled(enabled bool) {
	i.mu.Lock()
	i.enabled = enabled
	i.mu.Unlock()
}

func (i *SceneItem) params() map[string]any {
	return map[string]any{"sceneUuid": i.SceneUUID, "sceneItemId": i.ItemID}
}

// IsEnabled asks OBS whether the item is visible.
func (i *SceneItem) IsEnabled(ctx context.Context) (bool, error) {
	var resp struct {
		Enabled bool `json:"sceneItemEnabled"`
	}
	err := i.client.request(ctx, "GetSceneItemEnabled", i.params(), &resp)
	return resp.Enabled, err
}

// SetEnabled shows or hides the item. The cached value follows the
// resulting SceneItemEnableStateChanged event.
func (i *SceneItem) SetEnabled(ctx context.Context, enabled bool) error {
	params := i.params()
	params["sceneItemEnabled"] = enabled
	return i.client.request(ctx, "SetSceneItemEnabled", params, nil)
}

// Toggle flips the item's visibility as currently reported by OBS.
func (i *SceneItem) Toggle(ctx context.Context) error {
	enabled, err := i.IsEnabled(ctx)
	if err != nil {
		return err
	}
	return i.SetEnabled(ctx, !enabled)
}

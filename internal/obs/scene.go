package obs

import (
	"context"

	"github.com/obsmirror/obsmirror/internal/mirror"
	"github.com/obsmirror/obsmirror/internal/poll"
)

type sceneInfo struct {
	Name  string `json:"sceneName"`
	UUID  string `json:"sceneUuid"`
	Index int    `json:"sceneIndex"`
}

// Scene is a container handle: it is ready once its items are.
type Scene struct {
	mirror.Readiness
	client *Client

	UUID  string
	Name  string
	Index int

	// items is keyed by source uuid.
	items *mirror.Mirror[*SceneItem]
}

type children interface {
	WaitReady(ctx context.Context, opts poll.Options) error
}

// waitChildren waits for a container's handles, bounded by Options.Poll.
func (c *Client) waitChildren(ctx context.Context, ch children) error {
	return ch.WaitReady(ctx, c.opts.Poll)
}

func newScene(c *Client, info sceneInfo) *Scene {
	return &Scene{
		client: c,
		UUID:   info.UUID,
		Name:   info.Name,
		Index:  info.Index,
		items:  mirror.New[*SceneItem](),
	}
}

func (s *Scene) ID() string { return s.UUID }

// Init lists the scene's items and waits for them to be ready.
func (s *Scene) Init(ctx context.Context) error {
	var resp struct {
		SceneItems []sceneItemInfo `json:"sceneItems"`
	}
	if err := s.client.call(ctx, "GetSceneItemList", map[string]string{"sceneUuid": s.UUID}, &resp); err != nil {
		return err
	}

	items := make([]*SceneItem, len(resp.SceneItems))
	for i, info := range resp.SceneItems {
		items[i] = newSceneItem(s.client, s.UUID, info)
	}
	s.items.Populate(ctx, items)

	if err := s.client.waitChildren(ctx, s.items); err != nil {
		return err
	}
	s.MarkReady()
	return nil
}

// Items returns the scene items sorted by source uuid.
func (s *Scene) Items() []*SceneItem { return s.items.Values() }

// Item returns the item showing the given source.
func (s *Scene) Item(sourceUUID string) (*SceneItem, bool) { return s.items.Get(sourceUUID) }

// ItemByID returns the item with the given numeric scene item id.
func (s *Scene) ItemByID(id int) (*SceneItem, bool) {
	return s.items.Find(func(item *SceneItem) bool { return item.ItemID == id })
}

// IsProgram reports whether this is the current program scene.
func (s *Scene) IsProgram() bool {
	return s.client.ProgramSceneUUID() == s.UUID
}

// SetCurrent makes this the program scene.
func (s *Scene) SetCurrent(ctx context.Context) error {
	return s.client.request(ctx, "SetCurrentProgramScene", map[string]string{"sceneUuid": s.UUID}, nil)
}

package obs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/obsmirror/obsmirror/internal/obsws"
	"github.com/obsmirror/obsmirror/internal/poll"
)

// load rebuilds every mirror and waits until all handles are ready.
func (c *Client) load(ctx context.Context) error {
	c.streams.Populate(ctx, []*Stream{newStream(c)})

	var sceneList struct {
		CurrentProgramSceneUUID string      `json:"currentProgramSceneUuid"`
		Scenes                  []sceneInfo `json:"scenes"`
	}
	if err := c.call(ctx, "GetSceneList", nil, &sceneList); err != nil {
		return err
	}
	scenes := make([]*Scene, len(sceneList.Scenes))
	for i, info := range sceneList.Scenes {
		scenes[i] = newScene(c, info)
	}
	c.scenes.Populate(ctx, scenes)
	c.setProgramScene(sceneList.CurrentProgramSceneUUID)

	inputs, err := c.listAudioInputs(ctx)
	if err != nil {
		return err
	}
	c.inputs.Populate(ctx, inputs)

	return poll.WaitFor(ctx, func(context.Context) (bool, error) {
		for _, check := range []func() (bool, error){c.streams.Check, c.scenes.Check, c.inputs.Check} {
			if ok, err := check(); !ok || err != nil {
				return false, err
			}
		}
		return true, nil
	}, c.readyPoll())
}

// listAudioInputs enumerates every configured input kind in one batch and
// concatenates the results in request order.
func (c *Client) listAudioInputs(ctx context.Context) ([]*AudioInput, error) {
	requests := make([]obsws.Request, len(c.opts.AudioInputKinds))
	for i, kind := range c.opts.AudioInputKinds {
		requests[i] = obsws.Request{
			Type: "GetInputList",
			Data: map[string]string{"inputKind": kind},
		}
	}

	results, err := c.transport.CallBatch(ctx, requests)
	if err != nil {
		return nil, err
	}

	var inputs []*AudioInput
	for _, res := range results {
		if err := res.Err(); err != nil {
			return nil, err
		}
		var list struct {
			Inputs []inputInfo `json:"inputs"`
		}
		if len(res.Data) > 0 {
			if err := json.Unmarshal(res.Data, &list); err != nil {
				return nil, fmt.Errorf("%s: decode response: %w", res.Type, err)
			}
		}
		for _, info := range list.Inputs {
			inputs = append(inputs, newAudioInput(c, info))
		}
	}
	return inputs, nil
}

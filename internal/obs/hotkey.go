package obs

import "context"

// Hotkey is an OBS hotkey addressed by its internal name, for example
// "OBSBasic.StartRecording".
type Hotkey struct {
	client *Client
	Name   string
}

// Hotkey returns a handle for the named hotkey. The name is not checked
// against OBS.
func (c *Client) Hotkey(name string) *Hotkey {
	return &Hotkey{client: c, Name: name}
}

// Trigger fires the hotkey.
func (h *Hotkey) Trigger(ctx context.Context) error {
	return h.client.request(ctx, "TriggerHotkeyByName", map[string]string{"hotkeyName": h.Name}, nil)
}

// HotkeyNames lists every hotkey name OBS knows.
func (c *Client) HotkeyNames(ctx context.Context) ([]string, error) {
	var resp struct {
		Hotkeys []string `json:"hotkeys"`
	}
	if err := c.request(ctx, "GetHotkeyList", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Hotkeys, nil
}

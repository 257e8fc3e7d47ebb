package obs

// Snapshot is a point-in-time copy of the mirror's cached state.
type Snapshot struct {
	State        string               `yaml:"state" json:"state"`
	Connected    bool                 `yaml:"connected" json:"connected"`
	ProgramScene string               `yaml:"program_scene,omitempty" json:"programScene,omitempty"`
	Streaming    bool                 `yaml:"streaming" json:"streaming"`
	Scenes       []SceneSnapshot      `yaml:"scenes" json:"scenes"`
	AudioInputs  []AudioInputSnapshot `yaml:"audio_inputs" json:"audioInputs"`
}

// SceneSnapshot is a scene and its items, sorted by source uuid.
type SceneSnapshot struct {
	UUID  string              `yaml:"uuid" json:"uuid"`
	Name  string              `yaml:"name" json:"name"`
	Items []SceneItemSnapshot `yaml:"items,omitempty" json:"items,omitempty"`
}

// SceneItemSnapshot is one source placed in a scene.
type SceneItemSnapshot struct {
	ID         int    `yaml:"id" json:"id"`
	SourceUUID string `yaml:"source_uuid" json:"sourceUuid"`
	SourceName string `yaml:"source_name" json:"sourceName"`
	Enabled    bool   `yaml:"enabled" json:"enabled"`
}

// AudioInputSnapshot is an audio input's cached mute state and volume.
// VolumeDB is -Inf when the input is silenced.
type AudioInputSnapshot struct {
	UUID     string  `yaml:"uuid" json:"uuid"`
	Name     string  `yaml:"name" json:"name"`
	Kind     string  `yaml:"kind" json:"kind"`
	Muted    bool    `yaml:"muted" json:"muted"`
	VolumeDB float64 `yaml:"volume_db" json:"volumeDb"`
}

// Snapshot copies the cached state. Scenes are ordered by their OBS
// index, everything else by uuid.
func (c *Client) Snapshot() Snapshot {
	snap := Snapshot{
		State:        c.State().String(),
		Connected:    c.IsConnected(),
		ProgramScene: c.ProgramSceneUUID(),
	}
	if stream, ok := c.Stream(); ok {
		snap.Streaming = stream.Active()
	}

	for _, scene := range c.ScenesByIndex() {
		s := SceneSnapshot{UUID: scene.UUID, Name: scene.Name}
		for _, item := range scene.Items() {
			s.Items = append(s.Items, SceneItemSnapshot{
				ID:         item.ItemID,
				SourceUUID: item.SourceUUID,
				SourceName: item.SourceName,
				Enabled:    item.Enabled(),
			})
		}
		snap.Scenes = append(snap.Scenes, s)
	}

	for _, input := range c.AudioInputs() {
		snap.AudioInputs = append(snap.AudioInputs, AudioInputSnapshot{
			UUID:     input.UUID,
			Name:     input.Name,
			Kind:     input.Kind,
			Muted:    input.Muted(),
			VolumeDB: input.VolumeDB(),
		})
	}
	return snap
}

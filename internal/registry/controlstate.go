package registry

// ControlColor is the overlay/top-bar colour derived from session state
// (spec §4.3, invariant P7: a pure function of
// (controlled, learning_active, incident_open, agent_online)).
type ControlColor string

const (
	ColorRed    ControlColor = "red"
	ColorOrange ControlColor = "orange"
	ColorBlue   ControlColor = "blue"
	ColorGreen  ControlColor = "green"
	ColorGray   ControlColor = "gray"
)

// ControlState is the derived overlay state.
type ControlState struct {
	Color ControlColor `json:"color"`
	Label string       `json:"label"`
}

// DeriveControlState applies the first-match-wins rule from spec §4.3:
// red if incident_open, else orange if learning_active, else blue if
// controlled, else green if agent_online && !controlled, else gray.
func DeriveControlState(controlled, learningActive, incidentOpen, agentOnline bool) ControlState {
	switch {
	case incidentOpen:
		return ControlState{Color: ColorRed, Label: "incident"}
	case learningActive:
		return ControlState{Color: ColorOrange, Label: "learning"}
	case controlled:
		return ControlState{Color: ColorBlue, Label: "controlled"}
	case agentOnline && !controlled:
		return ControlState{Color: ColorGreen, Label: "idle"}
	default:
		return ControlState{Color: ColorGray, Label: "offline"}
	}
}

// InstallOverlay reports whether the control overlay should be installed
// on the page, per invariant I6: iff controlled, learning_active, or
// incident_open.
func InstallOverlay(controlled, learningActive, incidentOpen bool) bool {
	return controlled || learningActive || incidentOpen
}

package models

// Role is an agent's faction. Assigned at game start, immutable after.
type Role string

const (
	RoleVillager Role = "villager"
	RoleMafia    Role = "mafia"
)

// Agent is a simulated player. There is exactly one behavioral variant,
// so role is a field rather than a type.
type Agent struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	Alive        bool   `json:"alive"`
	LastSpokeAt  int    `json:"last_spoke_at"` // log length when the agent last spoke
	MessageCount int    `json:"message_count"`
}

// Active returns the agents still in the game, preserving input order.
func Active(agents []*Agent) []*Agent {
	active := make([]*Agent, 0, len(agents))
	for _, a := range agents {
		if a.Alive {
			active = append(active, a)
		}
	}
	return active
}

// Names returns the agent names in input order.
func Names(agents []*Agent) []string {
	names := make([]string, 0, len(agents))
	for _, a := range agents {
		names = append(names, a.Name)
	}
	return names
}

// ByName returns the agent with the given name, or nil.
func ByName(agents []*Agent, name string) *Agent {
	for _, a := range agents {
		if a.Name == name {
			return a
		}
	}
	return nil
}
